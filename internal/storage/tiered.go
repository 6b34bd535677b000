package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Tiered layers a fast local store over a shared remote one. The remote
// store is authoritative: its errors are returned, local failures are only
// logged, and Keys lists the remote namespace. Local copies are dropped only
// by this process; removals or rewrites made by another process stay
// invisible here until the local store evicts the key.
type Tiered struct {
	local  Backend
	remote Backend
	logger *zap.Logger
}

// NewTiered creates a Tiered store reading through local to remote.
func NewTiered(local, remote Backend, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{local: local, remote: remote, logger: logger}
}

// Get 先查本地，再查遠端並回填本地
func (t *Tiered) Get(ctx context.Context, key string) (string, error) {
	value, err := t.local.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		t.logger.Warn("Local store read failed", zap.String("key", key), zap.Error(err))
	}

	value, err = t.remote.Get(ctx, key)
	if err != nil {
		return "", err
	}

	if err := t.local.Set(ctx, key, value); err != nil {
		t.logger.Debug("Failed to populate local store", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// Set writes the remote store first, then the local one.
func (t *Tiered) Set(ctx context.Context, key, value string) error {
	if err := t.remote.Set(ctx, key, value); err != nil {
		return err
	}
	if err := t.local.Set(ctx, key, value); err != nil {
		t.logger.Debug("Failed to set local store", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Remove deletes key from both stores.
func (t *Tiered) Remove(ctx context.Context, key string) error {
	if err := t.local.Remove(ctx, key); err != nil {
		t.logger.Warn("Failed to remove from local store", zap.String("key", key), zap.Error(err))
	}
	return t.remote.Remove(ctx, key)
}

// Keys lists the remote keys starting with prefix.
func (t *Tiered) Keys(ctx context.Context, prefix string) ([]string, error) {
	return t.remote.Keys(ctx, prefix)
}

// Close closes both stores.
func (t *Tiered) Close() error {
	return errors.Join(Close(t.local), Close(t.remote))
}
