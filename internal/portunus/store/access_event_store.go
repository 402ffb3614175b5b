package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// AccessEventStore persists Entry/Exit transitions as an append-only audit
// log.  There is deliberately no update or delete.
type AccessEventStore interface {
	// AppendNext reads the latest event for identityID, derives the next
	// kind with types.NextKind and appends it, all as one serialized unit
	// of work.  Concurrent calls for the same identity must never observe
	// the same "last" event.
	AppendNext(ctx context.Context, identityID int64, channel string, at time.Time) (types.AccessEvent, error)

	// LastEvent returns the most recent event for identityID.  found is
	// false when the identity has no events yet.
	LastEvent(ctx context.Context, identityID int64) (ev types.AccessEvent, found bool, err error)

	// ListEvents returns every event joined with its identity, most recent first.
	ListEvents(ctx context.Context) ([]types.EventRow, error)
}
