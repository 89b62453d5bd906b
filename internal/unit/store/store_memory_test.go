package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	"bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

func seedUnit(t *testing.T, s *MemoryStore, group string, collectedAt time.Time, status models.Status) *models.BloodUnit {
	t.Helper()
	unit, err := models.NewBloodUnit(
		id.UnitID(uuid.New()), id.DonorID(uuid.New()), id.BloodBankID(uuid.New()),
		blood.MustGroup(group), blood.ProductWholeBlood, 450,
		collectedAt, collectedAt,
	)
	require.NoError(t, err)
	if status != models.StatusNone {
		unit.ApplyStatus(models.StatusInInventory, collectedAt)
		if status != models.StatusInInventory {
			unit.ApplyStatus(status, collectedAt)
		}
	}
	require.NoError(t, s.Create(context.Background(), unit))
	return unit
}

func TestMemoryStore_FindByID(t *testing.T) {
	s := NewMemory()
	now := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	unit := seedUnit(t, s, "A+", now, models.StatusInInventory)

	got, err := s.FindByID(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, got.ID)

	_, err = s.FindByID(context.Background(), id.UnitID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_ListAvailable_FIFOAndFilters(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), base.Add(time.Hour))

	oldest := seedUnit(t, s, "O-", base.Add(-72*time.Hour), models.StatusInInventory)
	middle := seedUnit(t, s, "O-", base.Add(-48*time.Hour), models.StatusInInventory)
	newest := seedUnit(t, s, "O-", base.Add(-24*time.Hour), models.StatusInInventory)
	seedUnit(t, s, "AB+", base.Add(-96*time.Hour), models.StatusInInventory) // wrong group
	seedUnit(t, s, "O-", base.Add(-12*time.Hour), models.StatusReserved)     // not issuable

	got, err := s.ListAvailable(ctx, []blood.Group{blood.MustGroup("O-")}, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, oldest.ID, got[0].ID)
	assert.Equal(t, middle.ID, got[1].ID)
	assert.Equal(t, newest.ID, got[2].ID)

	limited, err := s.ListAvailable(ctx, []blood.Group{blood.MustGroup("O-")}, nil, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, oldest.ID, limited[0].ID)
}

func TestMemoryStore_ListAvailable_BankScope(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), base)

	inBank := seedUnit(t, s, "B+", base.Add(-time.Hour), models.StatusInInventory)
	seedUnit(t, s, "B+", base.Add(-2*time.Hour), models.StatusInInventory)

	got, err := s.ListAvailable(ctx, []blood.Group{blood.MustGroup("B+")}, &inBank.BloodBank, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inBank.ID, got[0].ID)
}

func TestMemoryStore_ListAvailable_ExcludesExpired(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	seedUnit(t, s, "A-", base.AddDate(0, 0, -60), models.StatusInInventory)
	fresh := seedUnit(t, s, "A-", base.AddDate(0, 0, -10), models.StatusInInventory)

	ctx := requestcontext.WithTime(context.Background(), base)
	got, err := s.ListAvailable(ctx, []blood.Group{blood.MustGroup("A-")}, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestMemoryStore_ExpiryWindows(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)

	overdue := seedUnit(t, s, "O+", base.AddDate(0, 0, -50), models.StatusInInventory)
	reservedOverdue := seedUnit(t, s, "O+", base.AddDate(0, 0, -45), models.StatusReserved)
	soon := seedUnit(t, s, "O+", base.AddDate(0, 0, -40), models.StatusInInventory)
	seedUnit(t, s, "O+", base.AddDate(0, 0, -1), models.StatusInInventory) // far from expiry

	expired, err := s.ListExpired(context.Background(), base)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, overdue.ID, expired[0].ID)
	assert.Equal(t, reservedOverdue.ID, expired[1].ID)

	warning, err := s.ListExpiringWithin(context.Background(), base, 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, warning, 1)
	assert.Equal(t, soon.ID, warning[0].ID)
}

func TestMemoryStore_Execute_StaleStateLoses(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	unit := seedUnit(t, s, "O-", base, models.StatusInInventory)

	reserve := func(requestID id.RequestID) error {
		_, err := s.Execute(context.Background(), unit.ID,
			func(u *models.BloodUnit) error {
				if u.Status != models.StatusInInventory {
					return sentinel.ErrInvalidState
				}
				return u.CanChangeStatus(models.StatusReserved)
			},
			func(u *models.BloodUnit) {
				u.ApplyReservation(requestID, base.Add(time.Minute))
			},
		)
		return err
	}

	// Two requests race for the same unit: exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reserve(id.RequestID(uuid.New()))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrInvalidState)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	got, err := s.FindByID(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, got.Status)
	require.NotNil(t, got.ReservedFor)
}

func TestMemoryStore_ClonesDoNotLeak(t *testing.T) {
	s := NewMemory()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	unit := seedUnit(t, s, "AB-", base, models.StatusInInventory)

	got, err := s.FindByID(context.Background(), unit.ID)
	require.NoError(t, err)
	got.Status = models.StatusDiscarded

	again, err := s.FindByID(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInInventory, again.Status)
}
