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
	"bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// PostgresStore persists blood units in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed inventory store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const unitColumns = `id, donor_id, blood_bank_id, blood_group, product, volume_ml,
	collected_at, donation_status, status, expiry_date, reserved_for,
	dispatch_destination, dispatch_at, dispatch_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, unit *models.BloodUnit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blood_units (`+unitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		uuid.UUID(unit.ID), uuid.UUID(unit.Donor), uuid.UUID(unit.BloodBank),
		unit.Group.String(), string(unit.Product), unit.VolumeML,
		unit.CollectedAt, string(unit.DonationStatus), string(unit.Status),
		nullTime(unit.ExpiryDate), nullRequestID(unit.ReservedFor),
		dispatchDestination(unit), dispatchAt(unit), dispatchReason(unit),
		unit.CreatedAt, unit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create blood unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM blood_units WHERE id = $1`, uuid.UUID(unitID))
	unit, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find blood unit by id: %w", err)
	}
	return unit, nil
}

// Execute validates and mutates one unit inside a transaction holding a row
// lock, so two concurrent status writers serialize and the loser observes the
// winner's state in its validate callback.
func (s *PostgresStore) Execute(ctx context.Context, unitID id.UnitID, validate func(*models.BloodUnit) error, mutate func(*models.BloodUnit)) (*models.BloodUnit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unit update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM blood_units WHERE id = $1 FOR UPDATE`, uuid.UUID(unitID))
	unit, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock blood unit: %w", err)
	}

	if err := validate(unit); err != nil {
		return nil, err
	}
	mutate(unit)

	_, err = tx.ExecContext(ctx, `
		UPDATE blood_units
		SET status = $2, expiry_date = $3, reserved_for = $4,
			dispatch_destination = $5, dispatch_at = $6, dispatch_reason = $7,
			updated_at = $8
		WHERE id = $1`,
		uuid.UUID(unit.ID), string(unit.Status), nullTime(unit.ExpiryDate),
		nullRequestID(unit.ReservedFor),
		dispatchDestination(unit), dispatchAt(unit), dispatchReason(unit),
		unit.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update blood unit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unit update: %w", err)
	}
	return unit, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.BloodUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM blood_units
		WHERE donation_status = 'completed' AND status = $1
		ORDER BY collected_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list units by status: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*models.BloodUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM blood_units
		WHERE donation_status = 'completed'
		  AND status IN ('in_inventory', 'reserved')
		  AND expiry_date < $1
		ORDER BY collected_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired units: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*models.BloodUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM blood_units
		WHERE donation_status = 'completed'
		  AND status IN ('in_inventory', 'reserved')
		  AND expiry_date >= $1 AND expiry_date <= $2
		ORDER BY collected_at`, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list expiring units: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) ListAvailable(ctx context.Context, groups []blood.Group, bank *id.BloodBankID, limit int) ([]*models.BloodUnit, error) {
	now := requestcontext.Now(ctx)
	tokens := make([]string, 0, len(groups))
	for _, g := range groups {
		tokens = append(tokens, g.String())
	}

	query := `
		SELECT ` + unitColumns + ` FROM blood_units
		WHERE donation_status = 'completed'
		  AND status = 'in_inventory'
		  AND blood_group = ANY($1)
		  AND (expiry_date IS NULL OR expiry_date >= $2)`
	args := []any{pq.Array(tokens), now}
	if bank != nil {
		query += ` AND blood_bank_id = $3`
		args = append(args, uuid.UUID(*bank))
	}
	query += ` ORDER BY collected_at`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available units: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) CountCompletedByMonth(ctx context.Context, year int) (map[time.Month]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM collected_at)::int, COUNT(*)
		FROM blood_units
		WHERE donation_status = 'completed'
		  AND EXTRACT(YEAR FROM collected_at)::int = $1
		GROUP BY 1`, year)
	if err != nil {
		return nil, fmt.Errorf("count donations by month: %w", err)
	}
	defer rows.Close()

	counts := make(map[time.Month]int)
	for rows.Next() {
		var month, count int
		if err := rows.Scan(&month, &count); err != nil {
			return nil, fmt.Errorf("scan donation month count: %w", err)
		}
		counts[time.Month(month)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*models.BloodUnit, error) {
	var (
		unit        models.BloodUnit
		unitID      uuid.UUID
		donorID     uuid.UUID
		bankID      uuid.UUID
		groupToken  string
		product     string
		donation    string
		status      string
		expiry      sql.NullTime
		reservedFor sql.NullString
		dispatchTo  sql.NullString
		dispatchTs  sql.NullTime
		dispatchWhy sql.NullString
	)
	err := row.Scan(&unitID, &donorID, &bankID, &groupToken, &product, &unit.VolumeML,
		&unit.CollectedAt, &donation, &status, &expiry, &reservedFor,
		&dispatchTo, &dispatchTs, &dispatchWhy, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, err
	}

	unit.ID = id.UnitID(unitID)
	unit.Donor = id.DonorID(donorID)
	unit.BloodBank = id.BloodBankID(bankID)
	group, err := blood.ParseGroup(groupToken)
	if err != nil {
		return nil, fmt.Errorf("stored blood group %q: %w", groupToken, err)
	}
	unit.Group = group
	unit.Product = blood.ProductType(product)
	unit.DonationStatus = models.DonationStatus(donation)
	unit.Status = models.Status(status)
	if expiry.Valid {
		t := expiry.Time
		unit.ExpiryDate = &t
	}
	if reservedFor.Valid {
		requestID, err := id.ParseRequestID(reservedFor.String)
		if err != nil {
			return nil, fmt.Errorf("stored reservation id %q: %w", reservedFor.String, err)
		}
		unit.ReservedFor = &requestID
	}
	if dispatchTo.Valid || dispatchTs.Valid || dispatchWhy.Valid {
		unit.Dispatch = &models.Disposition{
			Destination: dispatchTo.String,
			At:          dispatchTs.Time,
			Reason:      dispatchWhy.String,
		}
	}
	return &unit, nil
}

func scanUnits(rows *sql.Rows) ([]*models.BloodUnit, error) {
	defer rows.Close()
	var out []*models.BloodUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood unit: %w", err)
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullRequestID(requestID *id.RequestID) sql.NullString {
	if requestID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: requestID.String(), Valid: true}
}

func dispatchDestination(unit *models.BloodUnit) sql.NullString {
	if unit.Dispatch == nil || unit.Dispatch.Destination == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: unit.Dispatch.Destination, Valid: true}
}

func dispatchAt(unit *models.BloodUnit) sql.NullTime {
	if unit.Dispatch == nil || unit.Dispatch.At.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: unit.Dispatch.At, Valid: true}
}

func dispatchReason(unit *models.BloodUnit) sql.NullString {
	if unit.Dispatch == nil || unit.Dispatch.Reason == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: unit.Dispatch.Reason, Valid: true}
}
