package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func (s *Store) AppendNext(ctx context.Context, identityID int64, channel string, at time.Time) (types.AccessEvent, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	at = at.UTC().Truncate(time.Second)
	if channel == "" {
		channel = types.ChannelBadge
	}

	ev := types.AccessEvent{
		IdentityID: identityID,
		OccurredAt: at,
		Channel:    channel,
	}

	// Read-last, decide and insert run inside one job on the single writer,
	// so no other append can interleave.
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireIdentity(ctx, tx, identityID); err != nil {
			return err
		}

		var last string
		err := tx.QueryRowContext(ctx, `
SELECT event_kind FROM access_events
WHERE identity_id = ?
ORDER BY event_id DESC
LIMIT 1;
`, identityID).Scan(&last)
		found := true
		if errors.Is(err, sql.ErrNoRows) {
			found = false
		} else if err != nil {
			return fmt.Errorf("AppendNext read last: %w", err)
		}

		ev.Kind = types.NextKind(types.EventKind(last), found)

		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(identity_id, occurred_at, event_kind, channel)
VALUES (?, ?, ?, ?);
`, identityID, at.Format(types.TimestampLayout), string(ev.Kind), channel)
		if err != nil {
			return fmt.Errorf("AppendNext insert: %w", err)
		}

		ev.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("AppendNext last id: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.AccessEvent{}, storageErr("AppendNext", err)
	}
	return ev, nil
}

func (s *Store) LastEvent(ctx context.Context, identityID int64) (types.AccessEvent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT event_id, identity_id, occurred_at, event_kind, channel
FROM access_events
WHERE identity_id = ?
ORDER BY event_id DESC
LIMIT 1;
`, identityID)

	var (
		ev         types.AccessEvent
		occurredAt string
		kind       string
	)
	err := row.Scan(&ev.ID, &ev.IdentityID, &occurredAt, &kind, &ev.Channel)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessEvent{}, false, nil
	}
	if err != nil {
		return types.AccessEvent{}, false, storageErr("LastEvent", err)
	}
	if ev.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
		return types.AccessEvent{}, false, storageErr("LastEvent", err)
	}
	ev.Kind = types.EventKind(kind)
	return ev, true, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]types.EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT e.event_id, e.identity_id, e.occurred_at, e.event_kind, e.channel,
       i.name, i.category, i.code, i.badge_ref, i.created_at_ms
FROM access_events e
JOIN identities i ON i.identity_id = e.identity_id
ORDER BY e.event_id DESC;
`)
	if err != nil {
		return nil, storageErr("ListEvents", err)
	}
	defer rows.Close()

	var out []types.EventRow
	for rows.Next() {
		var (
			r          types.EventRow
			occurredAt string
			kind       string
			createdMs  int64
		)
		if err := rows.Scan(
			&r.Event.ID, &r.Event.IdentityID, &occurredAt, &kind, &r.Event.Channel,
			&r.Identity.Name, &r.Identity.Category, &r.Identity.Code, &r.Identity.BadgeRef, &createdMs,
		); err != nil {
			return nil, storageErr("ListEvents", err)
		}
		if r.Event.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
			return nil, storageErr("ListEvents", err)
		}
		r.Event.Kind = types.EventKind(kind)
		r.Identity.ID = r.Event.IdentityID
		r.Identity.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListEvents", err)
	}
	return out, nil
}

// Timestamps are written in UTC.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(types.TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse occurred_at %q: %w", s, err)
	}
	return t, nil
}
