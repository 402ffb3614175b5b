package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func (s *Store) CreateIdentity(ctx context.Context, id types.Identity) (types.Identity, error) {
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	createdMs := id.CreatedAt.UTC().UnixMilli()

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `
SELECT identity_id FROM identities WHERE code = ?;
`, id.Code).Scan(&existing)
		if err == nil {
			return types.ErrDuplicateCode
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("CreateIdentity check code: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO identities(name, category, code, badge_ref, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`, id.Name, id.Category, id.Code, id.BadgeRef, createdMs)
		if err != nil {
			if isUniqueViolation(err) {
				return types.ErrDuplicateCode
			}
			return fmt.Errorf("CreateIdentity insert: %w", err)
		}

		id.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateIdentity last id: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, types.ErrDuplicateCode) {
			return types.Identity{}, err
		}
		return types.Identity{}, storageErr("CreateIdentity", err)
	}

	id.CreatedAt = time.UnixMilli(createdMs).UTC()
	return id, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (types.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT identity_id, name, category, code, badge_ref, created_at_ms
FROM identities
WHERE code = ?;
`, code)

	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Identity{}, types.ErrNotFound
	}
	if err != nil {
		return types.Identity{}, storageErr("FindByCode", err)
	}
	return id, nil
}

func (s *Store) ListIdentities(ctx context.Context) ([]types.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT identity_id, name, category, code, badge_ref, created_at_ms
FROM identities
ORDER BY identity_id;
`)
	if err != nil {
		return nil, storageErr("ListIdentities", err)
	}
	defer rows.Close()

	var out []types.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, storageErr("ListIdentities", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListIdentities", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(r rowScanner) (types.Identity, error) {
	var (
		id        types.Identity
		createdMs int64
	)
	if err := r.Scan(&id.ID, &id.Name, &id.Category, &id.Code, &id.BadgeRef, &createdMs); err != nil {
		return types.Identity{}, err
	}
	id.CreatedAt = time.UnixMilli(createdMs).UTC()
	return id, nil
}
