package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// IdentityStore is the identity registry.  Identities are created once and
// never mutated or deleted.
type IdentityStore interface {
	// CreateIdentity persists id (ID is assigned by the store).  It returns
	// types.ErrDuplicateCode when id.Code already exists.
	CreateIdentity(ctx context.Context, id types.Identity) (types.Identity, error)

	// FindByCode returns types.ErrNotFound for unregistered codes.
	FindByCode(ctx context.Context, code string) (types.Identity, error)

	ListIdentities(ctx context.Context) ([]types.Identity, error)
}
