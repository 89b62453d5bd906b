package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	"bloodlink/internal/geo"
	requestmodels "bloodlink/internal/request/models"
	requeststore "bloodlink/internal/request/store"
	unitmodels "bloodlink/internal/unit/models"
	unitstore "bloodlink/internal/unit/store"
	id "bloodlink/pkg/domain"
)

func TestSweepOnce(t *testing.T) {
	ctx := testCtx()
	bank := id.BloodBankID(uuid.New())

	t.Run("retires in-inventory and reserved units past expiry", func(t *testing.T) {
		inventory := unitstore.NewMemory()
		// Whole blood keeps 42 days; 50 days old is past expiry.
		expired := seedUnit(t, inventory, "A+", bank, testNow.Add(-50*24*time.Hour))
		reserved := seedUnit(t, inventory, "B+", bank, testNow.Add(-45*24*time.Hour))
		fresh := seedUnit(t, inventory, "O-", bank, testNow.Add(-10*24*time.Hour))
		_, err := inventory.Execute(ctx, reserved,
			func(u *unitmodels.BloodUnit) error { return u.CanChangeStatus(unitmodels.StatusReserved) },
			func(u *unitmodels.BloodUnit) { u.ApplyReservation(id.RequestID(uuid.New()), testNow) },
		)
		require.NoError(t, err)
		sweeper := NewSweeper(inventory)

		report, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 2, report.Expired)

		for _, unitID := range []id.UnitID{expired, reserved} {
			unit, err := inventory.FindByID(ctx, unitID)
			require.NoError(t, err)
			assert.Equal(t, unitmodels.StatusExpired, unit.Status)
			assert.Nil(t, unit.ReservedFor)
		}
		unit, err := inventory.FindByID(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, unitmodels.StatusInInventory, unit.Status)
	})

	t.Run("a second sweep is a no-op", func(t *testing.T) {
		inventory := unitstore.NewMemory()
		seedUnit(t, inventory, "A+", bank, testNow.Add(-50*24*time.Hour))
		sweeper := NewSweeper(inventory)

		first, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Expired)

		second, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Processed)
		assert.Equal(t, 0, second.Expired)
	})

	t.Run("a failed transition is skipped, the sweep completes", func(t *testing.T) {
		memory := unitstore.NewMemory()
		stuck := seedUnit(t, memory, "A+", bank, testNow.Add(-50*24*time.Hour))
		seedUnit(t, memory, "B-", bank, testNow.Add(-50*24*time.Hour))
		inventory := &failingSweepStore{MemoryStore: memory, failOn: stuck}
		sweeper := NewSweeper(inventory)

		report, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 1, report.Expired)
	})
}

func TestSweepOnceExpiresOverdueRequests(t *testing.T) {
	ctx := testCtx()

	seedOverdueRequest := func(t *testing.T, requests *requeststore.MemoryStore) id.RequestID {
		t.Helper()
		created := testNow.Add(-72 * time.Hour)
		request, err := requestmodels.NewBloodRequest(
			id.RequestID(uuid.New()), id.InstitutionID(uuid.New()),
			blood.MustGroup("A+"), 2, requestmodels.PriorityHigh,
			testNow.Add(-24*time.Hour), geo.Point{Latitude: 52.52, Longitude: 13.405},
			"Vivantes Klinikum", created,
		)
		require.NoError(t, err)
		require.NoError(t, requests.Create(ctx, request))
		return request.ID
	}

	t.Run("expires open requests past their deadline", func(t *testing.T) {
		requests := requeststore.NewMemory()
		overdue := seedOverdueRequest(t, requests)
		current := seedRequest(t, requests, "B+", 1)
		sweeper := NewSweeper(unitstore.NewMemory(), WithRequestSweep(requests))

		report, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ExpiredRequests)

		expired, err := requests.FindByID(ctx, overdue)
		require.NoError(t, err)
		assert.Equal(t, requestmodels.StatusExpired, expired.Status)

		untouched, err := requests.FindByID(ctx, current)
		require.NoError(t, err)
		assert.Equal(t, requestmodels.StatusPending, untouched.Status)
	})

	t.Run("a second sweep finds nothing", func(t *testing.T) {
		requests := requeststore.NewMemory()
		seedOverdueRequest(t, requests)
		sweeper := NewSweeper(unitstore.NewMemory(), WithRequestSweep(requests))

		first, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.ExpiredRequests)

		second, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.ExpiredRequests)
	})

	t.Run("without a request store the sweep skips requests", func(t *testing.T) {
		sweeper := NewSweeper(unitstore.NewMemory())

		report, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.ExpiredRequests)
	})
}

func TestWarnOnce(t *testing.T) {
	ctx := testCtx()
	bankA := id.BloodBankID(uuid.New())
	bankB := id.BloodBankID(uuid.New())

	inventory := unitstore.NewMemory()
	// 41 and 40 days old: expiring within the 3-day warning window.
	soonA := seedUnit(t, inventory, "A+", bankA, testNow.Add(-41*24*time.Hour))
	soonB := seedUnit(t, inventory, "B+", bankB, testNow.Add(-40*24*time.Hour))
	seedUnit(t, inventory, "O+", bankA, testNow.Add(-10*24*time.Hour)) // far from expiry
	seedUnit(t, inventory, "O-", bankA, testNow.Add(-50*24*time.Hour)) // already past
	sweeper := NewSweeper(inventory)

	byBank, err := sweeper.WarnOnce(ctx)
	require.NoError(t, err)
	require.Len(t, byBank, 2)
	require.Len(t, byBank[bankA], 1)
	require.Len(t, byBank[bankB], 1)
	assert.Equal(t, soonA, byBank[bankA][0].ID)
	assert.Equal(t, soonB, byBank[bankB][0].ID)

	// Read-only: nothing changed status.
	unit, err := inventory.FindByID(ctx, soonA)
	require.NoError(t, err)
	assert.Equal(t, unitmodels.StatusInInventory, unit.Status)
}

type failingSweepStore struct {
	*unitstore.MemoryStore
	failOn id.UnitID
}

func (f *failingSweepStore) Execute(ctx context.Context, unitID id.UnitID, validate func(*unitmodels.BloodUnit) error, mutate func(*unitmodels.BloodUnit)) (*unitmodels.BloodUnit, error) {
	if unitID == f.failOn {
		return nil, assert.AnError
	}
	return f.MemoryStore.Execute(ctx, unitID, validate, mutate)
}
