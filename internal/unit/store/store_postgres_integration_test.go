//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/blood"
	"bloodlink/internal/unit/models"
	"bloodlink/internal/unit/store"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
	"bloodlink/pkg/testutil/containers"
)

const bloodUnitsDDL = `
CREATE TABLE IF NOT EXISTS blood_units (
	id UUID PRIMARY KEY,
	donor_id UUID NOT NULL,
	blood_bank_id UUID NOT NULL,
	blood_group TEXT NOT NULL,
	product TEXT NOT NULL,
	volume_ml INT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	donation_status TEXT NOT NULL,
	status TEXT NOT NULL,
	expiry_date TIMESTAMPTZ,
	reserved_for UUID,
	dispatch_destination TEXT,
	dispatch_at TIMESTAMPTZ,
	dispatch_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
	now   time.Time
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.pg.Exec(s.T(), bloodUnitsDDL)
	s.store = store.NewPostgres(s.pg.DB)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.pg.Exec(s.T(), `TRUNCATE blood_units`)
}

func (s *PostgresStoreSuite) newUnit(group string, collectedAt time.Time) *models.BloodUnit {
	unit, err := models.NewBloodUnit(
		id.UnitID(uuid.New()), id.DonorID(uuid.New()), id.BloodBankID(uuid.New()),
		blood.MustGroup(group), blood.ProductWholeBlood, 450, collectedAt, s.now,
	)
	s.Require().NoError(err)
	return unit
}

func (s *PostgresStoreSuite) seedInInventory(group string, collectedAt time.Time) *models.BloodUnit {
	unit := s.newUnit(group, collectedAt)
	s.Require().NoError(s.store.Create(s.ctx, unit))
	stored, err := s.store.Execute(s.ctx, unit.ID,
		func(u *models.BloodUnit) error { return u.CanChangeStatus(models.StatusInInventory) },
		func(u *models.BloodUnit) { u.ApplyStatus(models.StatusInInventory, s.now) },
	)
	s.Require().NoError(err)
	return stored
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	unit := s.newUnit("A+", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, unit))

	found, err := s.store.FindByID(s.ctx, unit.ID)
	s.Require().NoError(err)
	s.Equal(unit.ID, found.ID)
	s.Equal(unit.Donor, found.Donor)
	s.Equal(blood.MustGroup("A+"), found.Group)
	s.Equal(models.StatusNone, found.Status)
	s.Nil(found.ExpiryDate)
	s.Nil(found.ReservedFor)
	s.Nil(found.Dispatch)
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(s.ctx, id.UnitID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecutePersistsStatusAndExpiry() {
	stored := s.seedInInventory("O-", s.now.Add(-time.Hour))
	s.Equal(models.StatusInInventory, stored.Status)
	s.Require().NotNil(stored.ExpiryDate)

	found, err := s.store.FindByID(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInInventory, found.Status)
	s.Require().NotNil(found.ExpiryDate)
	s.WithinDuration(*stored.ExpiryDate, *found.ExpiryDate, time.Second)
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureLeavesRowUntouched() {
	unit := s.newUnit("B+", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, unit))

	_, err := s.store.Execute(s.ctx, unit.ID,
		func(u *models.BloodUnit) error { return u.CanChangeStatus(models.StatusDispatched) },
		func(u *models.BloodUnit) { u.ApplyDispatch("city hospital", s.now) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(s.ctx, unit.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNone, found.Status)
}

func (s *PostgresStoreSuite) TestExecutePersistsReservation() {
	stored := s.seedInInventory("AB+", s.now.Add(-time.Hour))
	requestID := id.RequestID(uuid.New())

	_, err := s.store.Execute(s.ctx, stored.ID,
		func(u *models.BloodUnit) error { return u.CanChangeStatus(models.StatusReserved) },
		func(u *models.BloodUnit) { u.ApplyReservation(requestID, s.now) },
	)
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReserved, found.Status)
	s.Require().NotNil(found.ReservedFor)
	s.Equal(requestID, *found.ReservedFor)
}

func (s *PostgresStoreSuite) TestListAvailableFiltersGroupBankAndOrder() {
	older := s.seedInInventory("O-", s.now.Add(-48*time.Hour))
	newer := s.seedInInventory("O-", s.now.Add(-2*time.Hour))
	s.seedInInventory("A+", s.now.Add(-24*time.Hour))

	units, err := s.store.ListAvailable(s.ctx, []blood.Group{blood.MustGroup("O-")}, nil, 0)
	s.Require().NoError(err)
	s.Require().Len(units, 2)
	s.Equal(older.ID, units[0].ID)
	s.Equal(newer.ID, units[1].ID)

	units, err = s.store.ListAvailable(s.ctx, []blood.Group{blood.MustGroup("O-")}, &older.BloodBank, 0)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal(older.ID, units[0].ID)

	units, err = s.store.ListAvailable(s.ctx, []blood.Group{blood.MustGroup("O-")}, nil, 1)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal(older.ID, units[0].ID)
}

func (s *PostgresStoreSuite) TestListExpiredAndExpiringWindows() {
	shelfLife := blood.ExpiryAt(time.Time{}, blood.ProductWholeBlood).Sub(time.Time{})
	expired := s.seedInInventory("A+", s.now.Add(-shelfLife-time.Hour))
	nearExpiry := s.seedInInventory("A+", s.now.Add(-shelfLife+24*time.Hour))
	s.seedInInventory("A+", s.now.Add(-time.Hour))

	units, err := s.store.ListExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal(expired.ID, units[0].ID)

	units, err = s.store.ListExpiringWithin(s.ctx, s.now, 3*24*time.Hour)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal(nearExpiry.ID, units[0].ID)
}

func (s *PostgresStoreSuite) TestCountCompletedByMonth() {
	s.seedInInventory("A+", time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	s.seedInInventory("B-", time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC))
	s.seedInInventory("O+", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	s.seedInInventory("O+", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))

	counts, err := s.store.CountCompletedByMonth(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(2, counts[time.January])
	s.Equal(1, counts[time.March])
	s.Zero(counts[time.June])
}
