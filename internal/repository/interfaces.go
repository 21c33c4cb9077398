package repository

import (
	"context"
	"time"

	"tneaboard/internal/model"
)

// SessionRegistry is the durable identity -> SessionRecord mapping, the
// single source of truth across restarts. It is a pure storage abstraction:
// expiry and device comparison belong to the service layer. Every mutation is
// durable before the call returns.
type SessionRegistry interface {
	// Get returns the record for an identity, or model.ErrSessionNotFound.
	Get(ctx context.Context, identity string) (*model.SessionRecord, error)

	// Put unconditionally overwrites the record for an identity.
	Put(ctx context.Context, rec model.SessionRecord) error

	// Remove deletes the record for an identity. Removing an absent record
	// is not an error.
	Remove(ctx context.Context, identity string) error

	// Swap atomically replaces the record for an identity iff the stored
	// state still matches prev. prev == nil means the identity must be
	// absent; next == nil deletes the record. When the stored state no
	// longer matches, Swap leaves it untouched and returns
	// model.ErrRecordChanged. This is the primitive that serializes the
	// login/heartbeat read-modify-write cycle per identity.
	Swap(ctx context.Context, identity string, prev, next *model.SessionRecord) error

	// PruneExpired removes records whose LastSeen is older than olderThan
	// and returns how many were removed. Garbage collection only: liveness
	// is still decided lazily by the caller.
	PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SheetSource fetches one remote spreadsheet and returns its sheets raw.
// Implementations must bound the fetch with a timeout; a failure is a
// degraded view for the caller, never a crash.
type SheetSource interface {
	Fetch(ctx context.Context) ([]model.Sheet, error)
}
