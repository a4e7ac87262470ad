// Package storage persists the seen post ids and the destination registry.
package storage

import (
	"context"
	"errors"
	"time"

	"plug-herald/internal/model"
)

var (
	// ErrLocked is returned by AcquireLock when another holder owns the lock.
	ErrLocked = errors.New("storage: lock is held by another process")
	// ErrLockLost means a held lock expired or was taken over before release.
	ErrLockLost = errors.New("storage: lock lost")
)

// Store is implemented by every backend.
type Store interface {
	// SeenIDs returns all seen ids, descending, without duplicates.
	SeenIDs(ctx context.Context) ([]int64, error)
	// AddSeen adds ids to the seen set. Ids are never removed.
	AddSeen(ctx context.Context, ids []int64) error

	SetTarget(ctx context.Context, group string, channelID int64) error
	// ClearTarget keeps the group registered without a target.
	ClearTarget(ctx context.Context, group string) error
	// Destinations lists every known group ordered by group id.
	Destinations(ctx context.Context) ([]model.Destination, error)

	Close() error
}

// Locker is implemented by backends shared between processes.
type Locker interface {
	// AcquireLock takes the named lock for ttl. The lease keeps it alive
	// until released.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Lost is closed when the lock could not be renewed in time.
	Lost() <-chan struct{}
	// Release stops renewal and frees the lock if this holder still owns it.
	Release(ctx context.Context) error
}
