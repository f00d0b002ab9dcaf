// Package store persists session snapshots so a viewer can resume after a
// reconnect or a server restart.
//
// A snapshot is an opaque byte slice with an expiry. MemoryStore keeps
// snapshots in process; BoltStore writes them to a bbolt file.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load for a missing or expired snapshot.
var ErrNotFound = errors.New("store: snapshot not found")

// Store saves session snapshots by session ID.
type Store interface {
	// Save stores data under id until expiresAt, replacing any previous
	// snapshot.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes the snapshot for id. Deleting a missing id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Sweep removes every snapshot that expired before now and reports how
	// many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	Close() error
}
