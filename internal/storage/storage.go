// Package storage persists creative artifacts and exposes them through
// time-limited signed URLs. Objects are write-once: keys embed a UUID and
// are never overwritten.
package storage

import (
	"context"
	"time"
)

// BlobStore is the write-once artifact store.
type BlobStore interface {
	// Put stores data under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// SignedURL returns a read-only URL valid for the given duration.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// DefaultURLExpiry covers downstream campaign launch without leaving
// artifacts readable indefinitely.
const DefaultURLExpiry = 72 * time.Hour
