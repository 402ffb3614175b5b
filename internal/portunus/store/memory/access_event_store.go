package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func (s *Store) AppendNext(_ context.Context, identityID int64, channel string, at time.Time) (types.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return types.AccessEvent{}, &types.StorageError{Op: "AppendNext", Err: s.FailWrites}
	}
	if identityID <= 0 || int(identityID) > len(s.identities) {
		return types.AccessEvent{}, &types.StorageError{
			Op:  "AppendNext",
			Err: fmt.Errorf("identity %d does not exist", identityID),
		}
	}

	last, found := s.lastLocked(identityID)
	if at.IsZero() {
		at = time.Now()
	}
	if channel == "" {
		channel = types.ChannelBadge
	}

	ev := types.AccessEvent{
		ID:         int64(len(s.events) + 1),
		IdentityID: identityID,
		OccurredAt: at.UTC().Truncate(time.Second),
		Kind:       types.NextKind(last.Kind, found),
		Channel:    channel,
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) LastEvent(_ context.Context, identityID int64) (types.AccessEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, found := s.lastLocked(identityID)
	return ev, found, nil
}

func (s *Store) ListEvents(_ context.Context) ([]types.EventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.EventRow, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		out = append(out, types.EventRow{
			Event:    ev,
			Identity: s.identities[ev.IdentityID-1],
		})
	}
	return out, nil
}

// Events returns a copy of all recorded events in insertion order.
// Test-only helper.
func (s *Store) Events() []types.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}

// lastLocked must be called with s.mu held.
func (s *Store) lastLocked(identityID int64) (types.AccessEvent, bool) {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].IdentityID == identityID {
			return s.events[i], true
		}
	}
	return types.AccessEvent{}, false
}
