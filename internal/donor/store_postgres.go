package donor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/internal/geo"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists donor and bank profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveDonor(ctx context.Context, d *Donor) error {
	var group sql.NullString
	if d.Group != nil {
		group = sql.NullString{String: d.Group.String(), Valid: true}
	}
	var lat, lng sql.NullFloat64
	if d.Location != nil {
		lat = sql.NullFloat64{Float64: d.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: d.Location.Longitude, Valid: true}
	}
	var travel sql.NullFloat64
	if d.MaxTravelKm != nil {
		travel = sql.NullFloat64{Float64: *d.MaxTravelKm, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donors (id, user_id, name, blood_group, eligible, latitude, longitude,
			max_travel_km, total_donations, last_donation, next_eligible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, blood_group = EXCLUDED.blood_group,
			eligible = EXCLUDED.eligible, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, max_travel_km = EXCLUDED.max_travel_km,
			total_donations = EXCLUDED.total_donations,
			last_donation = EXCLUDED.last_donation,
			next_eligible = EXCLUDED.next_eligible,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(d.ID), uuid.UUID(d.User), d.Name, group, d.Eligible, lat, lng,
		travel, d.TotalDonations, nullTime(d.LastDonation), nullTime(d.NextEligible),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save donor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDonorByID(ctx context.Context, donorID id.DonorID) (*Donor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, blood_group, eligible, latitude, longitude,
			max_travel_km, total_donations, last_donation, next_eligible, created_at, updated_at
		FROM donors WHERE id = $1`, uuid.UUID(donorID))

	var (
		d          Donor
		rawID      uuid.UUID
		rawUser    uuid.UUID
		group      sql.NullString
		lat, lng   sql.NullFloat64
		travel     sql.NullFloat64
		last, next sql.NullTime
	)
	err := row.Scan(&rawID, &rawUser, &d.Name, &group, &d.Eligible, &lat, &lng,
		&travel, &d.TotalDonations, &last, &next, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donor by id: %w", err)
	}

	d.ID = id.DonorID(rawID)
	d.User = id.UserID(rawUser)
	if group.Valid {
		g, err := blood.ParseGroup(group.String)
		if err != nil {
			return nil, fmt.Errorf("stored donor blood group %q: %w", group.String, err)
		}
		d.Group = &g
	}
	if lat.Valid && lng.Valid {
		d.Location = &geo.Point{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if travel.Valid {
		d.MaxTravelKm = &travel.Float64
	}
	if last.Valid {
		d.LastDonation = &last.Time
	}
	if next.Valid {
		d.NextEligible = &next.Time
	}
	return &d, nil
}

// IsEligible implements geo.DonorFlags.
func (s *PostgresStore) IsEligible(ctx context.Context, donorID id.DonorID) (bool, error) {
	var eligible bool
	err := s.db.QueryRowContext(ctx,
		`SELECT eligible FROM donors WHERE id = $1`, uuid.UUID(donorID)).Scan(&eligible)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("check donor eligibility: %w", err)
	}
	return eligible, nil
}

func (s *PostgresStore) SaveBank(ctx context.Context, b *BloodBank) error {
	var lat, lng sql.NullFloat64
	if b.Location != nil {
		lat = sql.NullFloat64{Float64: b.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: b.Location.Longitude, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blood_banks (id, user_id, name, active, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, active = EXCLUDED.active,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(b.ID), uuid.UUID(b.User), b.Name, b.Active, lat, lng,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save blood bank: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBankByID(ctx context.Context, bankID id.BloodBankID) (*BloodBank, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, active, latitude, longitude, created_at, updated_at
		FROM blood_banks WHERE id = $1`, uuid.UUID(bankID))

	var (
		b        BloodBank
		rawID    uuid.UUID
		rawUser  uuid.UUID
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&rawID, &rawUser, &b.Name, &b.Active, &lat, &lng, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find blood bank by id: %w", err)
	}
	b.ID = id.BloodBankID(rawID)
	b.User = id.UserID(rawUser)
	if lat.Valid && lng.Valid {
		b.Location = &geo.Point{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return &b, nil
}

// IsActive implements geo.BankFlags.
func (s *PostgresStore) IsActive(ctx context.Context, bankID id.BloodBankID) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx,
		`SELECT active FROM blood_banks WHERE id = $1`, uuid.UUID(bankID)).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("check blood bank status: %w", err)
	}
	return active, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
