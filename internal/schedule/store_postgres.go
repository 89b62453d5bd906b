package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists appointments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scheduleColumns = `id, donor_id, blood_bank_id, scheduled_date, slot_start, slot_end,
	status, unit_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, schedule *DonationSchedule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_schedules (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(schedule.ID), uuid.UUID(schedule.Donor), uuid.UUID(schedule.BloodBank),
		schedule.Date, schedule.Slot.Start, schedule.Slot.End,
		string(schedule.Status), nullUnitID(schedule.Unit),
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create donation schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM donation_schedules WHERE id = $1`, uuid.UUID(scheduleID))
	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donation schedule by id: %w", err)
	}
	return schedule, nil
}

// Execute validates and mutates one appointment inside a row-locked transaction.
func (s *PostgresStore) Execute(ctx context.Context, scheduleID id.ScheduleID, validate func(*DonationSchedule) error, mutate func(*DonationSchedule)) (*DonationSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schedule update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM donation_schedules WHERE id = $1 FOR UPDATE`, uuid.UUID(scheduleID))
	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock donation schedule: %w", err)
	}

	if err := validate(schedule); err != nil {
		return nil, err
	}
	mutate(schedule)

	_, err = tx.ExecContext(ctx, `
		UPDATE donation_schedules
		SET scheduled_date = $2, slot_start = $3, slot_end = $4, status = $5,
			unit_id = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(schedule.ID), schedule.Date, schedule.Slot.Start, schedule.Slot.End,
		string(schedule.Status), nullUnitID(schedule.Unit), schedule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update donation schedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit schedule update: %w", err)
	}
	return schedule, nil
}

func (s *PostgresStore) ListActiveBySlot(ctx context.Context, date time.Time, slot Slot) ([]*DonationSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+` FROM donation_schedules
		WHERE scheduled_date = $1 AND slot_start = $2 AND slot_end = $3
		AND status IN ('scheduled', 'confirmed')
		ORDER BY created_at`, date, slot.Start, slot.End)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *PostgresStore) ListByDonor(ctx context.Context, donorID id.DonorID) ([]*DonationSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+` FROM donation_schedules
		WHERE donor_id = $1
		ORDER BY scheduled_date`, uuid.UUID(donorID))
	if err != nil {
		return nil, fmt.Errorf("list donor schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*DonationSchedule, error) {
	var (
		schedule   DonationSchedule
		scheduleID uuid.UUID
		donorID    uuid.UUID
		bankID     uuid.UUID
		status     string
		unitID     sql.NullString
	)
	err := row.Scan(&scheduleID, &donorID, &bankID, &schedule.Date,
		&schedule.Slot.Start, &schedule.Slot.End, &status, &unitID,
		&schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	schedule.ID = id.ScheduleID(scheduleID)
	schedule.Donor = id.DonorID(donorID)
	schedule.BloodBank = id.BloodBankID(bankID)
	schedule.Status = Status(status)
	if unitID.Valid {
		parsed, err := id.ParseUnitID(unitID.String)
		if err != nil {
			return nil, fmt.Errorf("stored unit id %q: %w", unitID.String, err)
		}
		schedule.Unit = &parsed
	}
	return &schedule, nil
}

func collectSchedules(rows *sql.Rows) ([]*DonationSchedule, error) {
	var out []*DonationSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation schedule: %w", err)
		}
		out = append(out, schedule)
	}
	return out, rows.Err()
}

func nullUnitID(unitID *id.UnitID) sql.NullString {
	if unitID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: unitID.String(), Valid: true}
}
