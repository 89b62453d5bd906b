package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"

	"github.com/google/uuid"
)

var allStatuses = []Status{
	StatusInInventory, StatusReserved, StatusDispatched,
	StatusUsed, StatusExpired, StatusDiscarded, StatusQuarantined,
}

// allowedPairs mirrors the documented transition table exactly; the test
// asserts both directions so an accidental extra edge fails too.
var allowedPairs = map[Status][]Status{
	StatusInInventory: {StatusReserved, StatusDispatched, StatusDiscarded, StatusExpired, StatusQuarantined},
	StatusReserved:    {StatusDispatched, StatusInInventory, StatusDiscarded, StatusExpired, StatusQuarantined},
	StatusDispatched:  {StatusUsed, StatusDiscarded},
	StatusQuarantined: {StatusInInventory, StatusDiscarded},
	StatusUsed:        {},
	StatusExpired:     {},
	StatusDiscarded:   {},
}

func TestCanTransitionTo_ExhaustiveTable(t *testing.T) {
	for _, from := range allStatuses {
		allowed := map[Status]bool{}
		for _, to := range allowedPairs[from] {
			allowed[to] = true
		}
		for _, to := range allStatuses {
			got := from.CanTransitionTo(to)
			assert.Equal(t, allowed[to], got, "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionTo_InitialAssignment(t *testing.T) {
	for _, to := range allStatuses {
		assert.True(t, StatusNone.CanTransitionTo(to), "new unit -> %s", to)
	}
	assert.False(t, StatusNone.CanTransitionTo(Status("bogus")))
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusUsed, StatusExpired, StatusDiscarded} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusInInventory, StatusReserved, StatusDispatched, StatusQuarantined} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestValidateTransition_ReportsBothStates(t *testing.T) {
	err := ValidateTransition(StatusUsed, StatusInInventory)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	var de *dErrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, string(StatusUsed), de.Detail("current_status"))
	assert.Equal(t, string(StatusInInventory), de.Detail("requested_status"))
}

func newTestUnit(t *testing.T) *BloodUnit {
	t.Helper()
	now := time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)
	u, err := NewBloodUnit(
		id.UnitID(uuid.New()), id.DonorID(uuid.New()), id.BloodBankID(uuid.New()),
		blood.MustGroup("O-"), blood.ProductWholeBlood, 450,
		now.Add(-time.Hour), now,
	)
	require.NoError(t, err)
	return u
}

func TestBloodUnit_DonationCompletionGate(t *testing.T) {
	u := newTestUnit(t)
	u.DonationStatus = DonationPending

	err := u.CanChangeStatus(StatusInInventory)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	u.DonationStatus = DonationCompleted
	require.NoError(t, u.CanChangeStatus(StatusInInventory))
}

func TestBloodUnit_ExpirySetOnInventoryEntry(t *testing.T) {
	u := newTestUnit(t)
	require.Nil(t, u.ExpiryDate)

	now := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)
	u.ApplyStatus(StatusInInventory, now)

	require.NotNil(t, u.ExpiryDate)
	assert.Equal(t, blood.ExpiryAt(u.CollectedAt, u.Product), *u.ExpiryDate)

	// Round-tripping through reserved must not recompute the expiry.
	want := *u.ExpiryDate
	u.ApplyReservation(id.RequestID(uuid.New()), now.Add(time.Minute))
	u.ApplyStatus(StatusInInventory, now.Add(2*time.Minute))
	assert.Equal(t, want, *u.ExpiryDate)
	assert.Nil(t, u.ReservedFor, "returning to inventory clears the reservation")
}

func TestBloodUnit_Available(t *testing.T) {
	now := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)
	u := newTestUnit(t)
	assert.False(t, u.Available(now), "unit without status is not issuable")

	u.ApplyStatus(StatusInInventory, now)
	assert.True(t, u.Available(now))

	past := now.AddDate(0, 0, 43)
	assert.False(t, u.Available(past), "expired unit is not issuable")

	u.DonationStatus = DonationPending
	assert.False(t, u.Available(now))
}
