package service

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// ToggleResolver derives the next event kind for an identity from its last
// stored event.
//
// NextEvent is a read-only preview.  Recording goes through
// store.AccessEventStore.AppendNext, which applies the same rule
// (types.NextKind) inside the store's serialized write so that two
// concurrent detections can never both read the same "last" event.
type ToggleResolver struct {
	events store.AccessEventStore
}

func NewToggleResolver(events store.AccessEventStore) *ToggleResolver {
	return &ToggleResolver{events: events}
}

func (r *ToggleResolver) NextEvent(ctx context.Context, identityID int64) (types.EventKind, error) {
	last, found, err := r.events.LastEvent(ctx, identityID)
	if err != nil {
		return "", err
	}
	return types.NextKind(last.Kind, found), nil
}
