// Package storage provides the string key-value stores behind the persistent cache.
//
// Every backend distinguishes a capacity failure (ErrQuotaExceeded) from any
// other write failure, so the cache can purge its namespace and retry.
package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the backend has no room for the value.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: backend closed")
)

// Backend is a namespaced string key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys lists the stored keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Close releases b if it holds resources.
func Close(b Backend) error {
	if closer, ok := b.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func filterPrefix(keys []string, prefix string) []string {
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
