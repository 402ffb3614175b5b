package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// Store is an in-memory identity registry and access log.  It implements
// both store.IdentityStore and store.AccessEventStore and is intended for
// tests and dev environments.
//
// A single mutex covers the registry and the log, so AppendNext is
// serialized for every identity.
type Store struct {
	mu         sync.Mutex
	identities []types.Identity
	byCode     map[string]int
	events     []types.AccessEvent

	// FailWrites, when non-nil, is returned (wrapped) from every write.
	// Test-only hook for exercising the storage-failure path.
	FailWrites error
}

func New() *Store {
	return &Store{byCode: make(map[string]int)}
}

func (s *Store) CreateIdentity(_ context.Context, id types.Identity) (types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return types.Identity{}, &types.StorageError{Op: "CreateIdentity", Err: s.FailWrites}
	}
	if _, ok := s.byCode[id.Code]; ok {
		return types.Identity{}, types.ErrDuplicateCode
	}

	id.ID = int64(len(s.identities) + 1)
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	s.identities = append(s.identities, id)
	s.byCode[id.Code] = len(s.identities) - 1
	return id, nil
}

func (s *Store) FindByCode(_ context.Context, code string) (types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byCode[code]
	if !ok {
		return types.Identity{}, types.ErrNotFound
	}
	return s.identities[i], nil
}

func (s *Store) ListIdentities(_ context.Context) ([]types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Identity, len(s.identities))
	copy(out, s.identities)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
