package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// BadgeGenerator produces the printable badge for a code and returns a
// reference to it (a file path for the QR generator).
type BadgeGenerator interface {
	Generate(code string) (string, error)
}

// EventStore is the engine's view of persistence: the identity registry plus
// the append-only access log.  Registration and admin reads call it
// directly; the detection path reaches it through DetectionRouter.
type EventStore struct {
	identities store.IdentityStore
	events     store.AccessEventStore
	badges     BadgeGenerator
	clock      Clock
	logger     *log.Logger
	metrics    *metrics.Metrics
}

type EventStoreDeps struct {
	Identities store.IdentityStore
	Events     store.AccessEventStore
	Badges     BadgeGenerator
	Clock      Clock
	Logger     *log.Logger
	Metrics    *metrics.Metrics // optional
}

func NewEventStore(d EventStoreDeps) *EventStore {
	if d.Clock == nil {
		d.Clock = SystemClock()
	}
	return &EventStore{
		identities: d.Identities,
		events:     d.Events,
		badges:     d.Badges,
		clock:      d.Clock,
		logger:     d.Logger,
		metrics:    d.Metrics,
	}
}

// RegisterIdentity creates a new identity and its badge.  A code that is
// already registered fails with types.ErrDuplicateCode and leaves the
// registry untouched.
//
// Cancelling ctx does not abort a registration once input is valid: the
// badge file and the row are produced together, and the returned result
// always matches what was stored.
func (s *EventStore) RegisterIdentity(ctx context.Context, name, category, code string) (types.Identity, error) {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)
	code = types.NormalizeCode(code)
	if name == "" || category == "" || code == "" {
		return types.Identity{}, types.ErrInvalidIdentity
	}
	ctx = context.WithoutCancel(ctx)

	// Check first so a duplicate never reaches the badge generator.
	_, err := s.identities.FindByCode(ctx, code)
	switch {
	case err == nil:
		return types.Identity{}, types.ErrDuplicateCode
	case !errors.Is(err, types.ErrNotFound):
		return types.Identity{}, err
	}

	badgeRef, err := s.badges.Generate(code)
	if err != nil {
		return types.Identity{}, fmt.Errorf("generate badge for %s: %w", code, err)
	}

	id, err := s.identities.CreateIdentity(ctx, types.Identity{
		Name:      name,
		Category:  category,
		Code:      code,
		BadgeRef:  badgeRef,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return types.Identity{}, err
	}

	if s.metrics != nil {
		s.metrics.IdentitiesAdded.Inc()
	}
	s.logger.Printf("identity registered id=%d code=%s name=%q badge=%s", id.ID, id.Code, id.Name, id.BadgeRef)
	return id, nil
}

func (s *EventStore) FindByCode(ctx context.Context, code string) (types.Identity, error) {
	code = types.NormalizeCode(code)
	if code == "" {
		return types.Identity{}, types.ErrNotFound
	}
	return s.identities.FindByCode(ctx, code)
}

// RecordEvent appends the next Entry/Exit event for id.  The toggle decision
// and the append are one serialized unit of work in the store.
func (s *EventStore) RecordEvent(ctx context.Context, id types.Identity, channel string) (types.AccessEvent, error) {
	return s.events.AppendNext(ctx, id.ID, channel, s.clock.Now())
}

// ListEvents returns the whole log, most recent first.  Admin path only.
func (s *EventStore) ListEvents(ctx context.Context) ([]types.EventRow, error) {
	return s.events.ListEvents(ctx)
}

func (s *EventStore) ListIdentities(ctx context.Context) ([]types.Identity, error) {
	return s.identities.ListIdentities(ctx)
}
