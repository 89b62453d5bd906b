package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "bloodlink/pkg/domain"
)

// PostgresStore persists activity events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_log (activity_type, title, description, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(event.Type), event.Title, event.Description,
		uuid.UUID(event.UserID), metadata, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append activity event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_type, title, description, user_id, metadata, created_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event    Event
			rawUser  uuid.UUID
			metadata []byte
		)
		if err := rows.Scan(&event.Type, &event.Title, &event.Description, &rawUser, &metadata, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		event.UserID = id.UserID(rawUser)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal activity metadata: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
