package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	"bloodlink/internal/geo"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

func newRequest(t *testing.T, unitsRequired int, now time.Time) *BloodRequest {
	t.Helper()
	request, err := NewBloodRequest(
		id.RequestID(uuid.New()), id.InstitutionID(uuid.New()),
		blood.MustGroup("O+"), unitsRequired, PriorityMedium,
		now.Add(48*time.Hour), geo.Point{Latitude: 48.137, Longitude: 11.575},
		"Klinikum Schwabing", now,
	)
	require.NoError(t, err)
	return request
}

func TestNewBloodRequest(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	t.Run("starts pending with a zero fulfilled counter", func(t *testing.T) {
		request := newRequest(t, 5, now)
		assert.Equal(t, StatusPending, request.Status)
		assert.Equal(t, 0, request.UnitsFulfilled)
		assert.Equal(t, 5, request.Remaining())
	})

	invalid := []struct {
		name   string
		mutate func(*testing.T) error
	}{
		{"zero units", func(t *testing.T) error {
			_, err := NewBloodRequest(id.RequestID(uuid.New()), id.InstitutionID(uuid.New()),
				blood.MustGroup("O+"), 0, PriorityLow, now.Add(time.Hour), geo.Point{}, "", now)
			return err
		}},
		{"unknown priority", func(t *testing.T) error {
			_, err := NewBloodRequest(id.RequestID(uuid.New()), id.InstitutionID(uuid.New()),
				blood.MustGroup("O+"), 1, Priority("urgent"), now.Add(time.Hour), geo.Point{}, "", now)
			return err
		}},
		{"deadline already passed", func(t *testing.T) error {
			_, err := NewBloodRequest(id.RequestID(uuid.New()), id.InstitutionID(uuid.New()),
				blood.MustGroup("O+"), 1, PriorityLow, now.Add(-time.Minute), geo.Point{}, "", now)
			return err
		}},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			err := tc.mutate(t)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestApplyReservedUnits(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	t.Run("partial reservation keeps the request open", func(t *testing.T) {
		request := newRequest(t, 5, now)
		units := []id.UnitID{id.UnitID(uuid.New()), id.UnitID(uuid.New())}

		request.ApplyReservedUnits(units, now.Add(time.Minute))
		assert.Equal(t, 2, request.UnitsFulfilled)
		assert.Equal(t, 3, request.Remaining())
		assert.Equal(t, StatusPending, request.Status)
		assert.NoError(t, request.CanAcceptUnits())
	})

	t.Run("meeting the requirement fulfills the request", func(t *testing.T) {
		request := newRequest(t, 2, now)
		units := []id.UnitID{id.UnitID(uuid.New()), id.UnitID(uuid.New())}

		request.ApplyReservedUnits(units, now.Add(time.Minute))
		assert.Equal(t, StatusFulfilled, request.Status)
		assert.Equal(t, 0, request.Remaining())
		assert.Equal(t, units, request.Units)

		err := request.CanAcceptUnits()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:  {StatusApproved, StatusFulfilled, StatusCancelled, StatusExpired},
		StatusApproved: {StatusFulfilled, StatusCancelled, StatusExpired},
	}
	all := []Status{StatusPending, StatusApproved, StatusFulfilled, StatusCancelled, StatusExpired}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusPending.Open())
	assert.True(t, StatusApproved.Open())
	assert.False(t, StatusFulfilled.Open())
	assert.False(t, StatusCancelled.Open())
	assert.False(t, StatusExpired.Open())
}
