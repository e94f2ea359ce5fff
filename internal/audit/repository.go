package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Store persists and reads audit entries. Implementations must never mutate
// or remove an entry once appended.
type Store interface {
	Append(ctx context.Context, entry NewEntry) (Entry, error)
	ListRecent(ctx context.Context, scope TenantScope, limit int) ([]Entry, error)
}

// Querier is the subset of pgxpool.Pool used by PGStore.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore is the Postgres backed Store.
type PGStore struct {
	db Querier
}

// NewPGStore constructs the repository.
func NewPGStore(db Querier) *PGStore {
	return &PGStore{db: db}
}

const insertEntrySQL = `INSERT INTO audit_entries
	(tenant_id, actor_id, actor_name, action, entity_type, entity_id, details)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`

const listRecentSQL = `SELECT id, tenant_id, actor_id, actor_name, action, entity_type, entity_id, details, created_at
FROM audit_entries
WHERE tenant_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// Append inserts one entry; the database assigns id and created_at.
func (s *PGStore) Append(ctx context.Context, entry NewEntry) (Entry, error) {
	details := entry.Details.Clone()
	raw, err := json.Marshal(details)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: encode details: %w", err)
	}
	var (
		id        uuid.UUID
		createdAt pgtype.Timestamptz
	)
	err = s.db.QueryRow(ctx, insertEntrySQL,
		entry.TenantID,
		entry.ActorID,
		entry.ActorName,
		string(entry.Action),
		string(entry.EntityType),
		optionalText(entry.EntityID),
		raw,
	).Scan(&id, &createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert entry: %w", err)
	}
	return Entry{
		ID:         id,
		TenantID:   entry.TenantID,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    details,
		CreatedAt:  createdAt.Time,
	}, nil
}

// ListRecent returns up to limit entries of the scoped tenant, newest first.
func (s *PGStore) ListRecent(ctx context.Context, scope TenantScope, limit int) ([]Entry, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("audit: list recent: %w", shared.ErrMissingTenantScope)
	}
	rows, err := s.db.Query(ctx, listRecentSQL, scope.TenantID(), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list recent: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			action     string
			entityType string
			entityID   pgtype.Text
			raw        []byte
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.ActorName, &action, &entityType, &entityID, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Action = Action(action)
		e.EntityType = EntityType(entityType)
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		e.Details = Details{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details: %w", err)
			}
			if e.Details == nil {
				e.Details = Details{}
			}
		}
		e.CreatedAt = createdAt.Time
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list recent: %w", err)
	}
	return entries, nil
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
