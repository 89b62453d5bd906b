package donor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/blood"
	dErrors "bloodlink/pkg/domain-errors"
)

func TestEstablishGroup_SetOnce(t *testing.T) {
	d := &Donor{Eligible: true}

	require.NoError(t, d.EstablishGroup(blood.MustGroup("A+")))
	require.NotNil(t, d.Group)

	// Same group again is a no-op.
	require.NoError(t, d.EstablishGroup(blood.MustGroup("A+")))

	// A different group is rejected: the matching key is immutable.
	err := d.EstablishGroup(blood.MustGroup("B-"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.Equal(t, blood.MustGroup("A+"), *d.Group)
}

func TestRecordDonation_EligibilityWindow(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	d := &Donor{Eligible: true}
	require.True(t, d.CanDonateAt(now))

	d.RecordDonation(now)
	assert.Equal(t, 1, d.TotalDonations)
	assert.False(t, d.CanDonateAt(now.AddDate(0, 0, 30)), "inside 56-day cooldown")
	assert.True(t, d.CanDonateAt(now.AddDate(0, 0, 56)))
}

func TestCanDonateAt_IneligibleDonor(t *testing.T) {
	d := &Donor{Eligible: false}
	assert.False(t, d.CanDonateAt(time.Now()))
}
