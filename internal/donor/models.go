// Package donor holds donor and blood bank profiles at the collaborator
// boundary: the core reads eligibility, blood group, location and travel
// distance from here but profile CRUD itself lives with the surrounding
// application.
package donor

import (
	"time"

	"bloodlink/internal/blood"
	"bloodlink/internal/geo"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// donationCooldown is the minimum gap between whole blood donations.
const donationCooldown = 56 * 24 * time.Hour

// Donor is a registered donor profile.
//
// Group is nil until the first eligible donation establishes it, and is the
// compatibility-matching key from then on: set once, immutable.
type Donor struct {
	ID             id.DonorID
	User           id.UserID
	Name           string
	Group          *blood.Group
	Eligible       bool
	Location       *geo.Point
	MaxTravelKm    *float64
	TotalDonations int
	LastDonation   *time.Time
	NextEligible   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EstablishGroup sets the donor's blood group if not yet known. A differing
// group on record is an invariant violation, not an update.
func (d *Donor) EstablishGroup(group blood.Group) error {
	if !group.Valid() {
		return dErrors.New(dErrors.CodeValidation, "blood group is required")
	}
	if d.Group == nil {
		g := group
		d.Group = &g
		return nil
	}
	if *d.Group != group {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"donor blood group is already established as %s", d.Group)
	}
	return nil
}

// RecordDonation updates donation counters and the eligibility window after a
// completed donation.
func (d *Donor) RecordDonation(at time.Time) {
	d.TotalDonations++
	t := at
	d.LastDonation = &t
	next := at.Add(donationCooldown)
	d.NextEligible = &next
	d.UpdatedAt = at
}

// CanDonateAt reports whether the donor is inside their eligibility window.
func (d *Donor) CanDonateAt(now time.Time) bool {
	if !d.Eligible {
		return false
	}
	return d.NextEligible == nil || !now.Before(*d.NextEligible)
}

// BloodBank is a registered blood bank profile.
type BloodBank struct {
	ID        id.BloodBankID
	User      id.UserID
	Name      string
	Active    bool
	Location  *geo.Point
	CreatedAt time.Time
	UpdatedAt time.Time
}
