package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bloodlink/internal/blood"
	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists blood requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, institution_id, blood_group, units_required, units_fulfilled,
	priority, required_by, latitude, longitude, location_label, status, unit_ids,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, request *models.BloodRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blood_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(request.ID), uuid.UUID(request.Institution), request.Group.String(),
		request.UnitsRequired, request.UnitsFulfilled, string(request.Priority),
		request.RequiredBy, request.Location.Latitude, request.Location.Longitude,
		request.LocationLabel, string(request.Status), pq.Array(unitIDStrings(request.Units)),
		request.CreatedAt, request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create blood request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM blood_requests WHERE id = $1`, uuid.UUID(requestID))
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find blood request by id: %w", err)
	}
	return request, nil
}

// Execute validates and mutates one request inside a row-locked transaction.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin request update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM blood_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(requestID))
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock blood request: %w", err)
	}

	if err := validate(request); err != nil {
		return nil, err
	}
	mutate(request)

	_, err = tx.ExecContext(ctx, `
		UPDATE blood_requests
		SET units_fulfilled = $2, status = $3, unit_ids = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(request.ID), request.UnitsFulfilled, string(request.Status),
		pq.Array(unitIDStrings(request.Units)), request.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update blood request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request update: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) ListPendingByGroups(ctx context.Context, groups []blood.Group) ([]*models.BloodRequest, error) {
	tokens := make([]string, 0, len(groups))
	for _, g := range groups {
		tokens = append(tokens, g.String())
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM blood_requests
		WHERE status = 'pending' AND blood_group = ANY($1)
		ORDER BY required_by`, pq.Array(tokens))
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []*models.BloodRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood request: %w", err)
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

// ListOverdue returns open requests whose required-by deadline has passed,
// oldest deadline first.
func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.BloodRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM blood_requests
		WHERE status IN ('pending', 'approved') AND required_by < $1
		ORDER BY required_by`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue requests: %w", err)
	}
	defer rows.Close()

	var out []*models.BloodRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood request: %w", err)
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.BloodRequest, error) {
	var (
		request     models.BloodRequest
		requestID   uuid.UUID
		institution uuid.UUID
		groupToken  string
		priority    string
		status      string
		unitIDs     pq.StringArray
	)
	err := row.Scan(&requestID, &institution, &groupToken, &request.UnitsRequired,
		&request.UnitsFulfilled, &priority, &request.RequiredBy,
		&request.Location.Latitude, &request.Location.Longitude, &request.LocationLabel,
		&status, &unitIDs, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, err
	}

	request.ID = id.RequestID(requestID)
	request.Institution = id.InstitutionID(institution)
	group, err := blood.ParseGroup(groupToken)
	if err != nil {
		return nil, fmt.Errorf("stored request blood group %q: %w", groupToken, err)
	}
	request.Group = group
	request.Priority = models.Priority(priority)
	request.Status = models.Status(status)
	for _, raw := range unitIDs {
		unitID, err := id.ParseUnitID(raw)
		if err != nil {
			return nil, fmt.Errorf("stored unit id %q: %w", raw, err)
		}
		request.Units = append(request.Units, unitID)
	}
	return &request, nil
}

func unitIDStrings(unitIDs []id.UnitID) []string {
	out := make([]string, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		out = append(out, unitID.String())
	}
	return out
}
