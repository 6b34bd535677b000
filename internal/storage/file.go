package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/klauspost/compress/zstd"

	"goflare.io/pokedex/internal/utils"
)

const (
	fileShards = 64
	// Hex-encoded names must fit common filesystem name limits.
	maxFileKeyLen = 120

	markerRaw  byte = 'r'
	markerZstd byte = 'z'
)

// File persists each key in its own file under a sharded directory tree.
// Values larger than 1KB are zstd-compressed when a compression level is set.
// Capacity bounds the bytes on disk; exceeding it, or running out of disk
// space, is reported as ErrQuotaExceeded.
type File struct {
	basePath string
	capacity int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.RWMutex
	index map[string]int64 // key -> size on disk
	size  int64
}

// NewFile opens (or creates) a file store rooted at basePath.
func NewFile(basePath string, capacity int64, compressionLevel int) (*File, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	f := &File{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]int64),
	}

	if compressionLevel > 0 {
		var err error
		f.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	var err error
	f.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := f.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to index cache directory: %w", err)
	}

	return f, nil
}

// Get returns the value stored under key.
func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	_, ok := f.index[key]
	f.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.forget(key)
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read cache file: %w", err)
	}

	value, err := f.decode(data)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Set writes value under key.
func (f *File) Set(_ context.Context, key, value string) error {
	if len(key) > maxFileKeyLen {
		return fmt.Errorf("key too long for file store: %d bytes (max %d)", len(key), maxFileKeyLen)
	}
	data := f.encode([]byte(value))
	diskSize := int64(len(data))

	f.mu.Lock()
	defer f.mu.Unlock()

	newSize := f.size + diskSize - f.index[key]
	if f.capacity > 0 && newSize > f.capacity {
		return ErrQuotaExceeded
	}

	if err := writeFileAtomic(f.path(key), data); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	f.index[key] = diskSize
	f.size = newSize
	return nil
}

// Remove deletes the file holding key.
func (f *File) Remove(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	f.forget(key)
	return nil
}

// Keys returns the stored keys starting with prefix.
func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	keys := make([]string, 0, len(f.index))
	for k := range f.index {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	f.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Size returns the bytes on disk.
func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Close releases the zstd coders.
func (f *File) Close() error {
	if f.encoder != nil {
		if err := f.encoder.Close(); err != nil {
			return err
		}
	}
	f.decoder.Close()
	return nil
}

func (f *File) forget(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size, ok := f.index[key]; ok {
		f.size -= size
		delete(f.index, key)
	}
}

func (f *File) path(key string) string {
	shard := utils.ShardIndex(fileShards, key)
	return filepath.Join(f.basePath, fmt.Sprintf("%02x", shard), hex.EncodeToString([]byte(key)))
}

func (f *File) encode(value []byte) []byte {
	if f.encoder != nil && len(value) > 1024 {
		compressed := f.encoder.EncodeAll(value, []byte{markerZstd})
		if len(compressed) < len(value)+1 {
			return compressed
		}
	}
	return append([]byte{markerRaw}, value...)
}

func (f *File) decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty cache file")
	}
	switch data[0] {
	case markerRaw:
		return data[1:], nil
	case markerZstd:
		out, err := f.decoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress cache file: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown cache file marker %q", data[0])
	}
}

func (f *File) loadIndex() error {
	return filepath.WalkDir(f.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		raw, err := hex.DecodeString(d.Name())
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		f.index[string(raw)] = info.Size()
		f.size += info.Size()
		return nil
	})
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
