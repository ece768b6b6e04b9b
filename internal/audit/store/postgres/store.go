// Package postgres persists audit entries in PostgreSQL. The table is
// insert-only; seq is a BIGSERIAL so storage order is insertion order even
// when two entries share a createdAt.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"certreg/internal/audit"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	txcontext "certreg/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the entry, joining the context transaction when one is
// present so the caller's domain write and its audit record commit together.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, application_id, actor_id, action, entity_type, entity_id, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ApplicationID),
		uuid.UUID(entry.ActorID),
		string(entry.Action),
		string(entry.EntityType),
		entry.EntityID,
		nullString(entry.Notes),
		entry.CreatedAt,
	)
	if err := row.Scan(&entry.Seq); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "insert audit entry")
	}
	return nil
}

// History returns the application's entries latest-first; seq breaks
// createdAt ties.
func (s *Store) History(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error) {
	query := `
		SELECT id, seq, application_id, actor_id, action, entity_type, entity_id, notes, created_at
		FROM audit_entries
		WHERE application_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, query, uuid.UUID(applicationID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "query audit entries")
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry         audit.Entry
			entryID       uuid.UUID
			applicationID uuid.UUID
			actorID       uuid.UUID
			notes         sql.NullString
		)
		err := rows.Scan(
			&entryID,
			&entry.Seq,
			&applicationID,
			&actorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.ApplicationID = id.ApplicationID(applicationID)
		entry.ActorID = id.ActorID(actorID)
		entry.Notes = notes.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
