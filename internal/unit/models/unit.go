// Package models holds the blood unit aggregate and its status state machine.
package models

import (
	"time"

	"bloodlink/internal/blood"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// DonationStatus tracks the overall donation record a unit came from. Unit
// lifecycle management is only permitted once the donation is completed.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationCancelled DonationStatus = "cancelled"
)

// Disposition records where a unit went when it left inventory.
type Disposition struct {
	Destination string
	At          time.Time
	Reason      string
}

// BloodUnit is one collected, processed blood product tracked from collection
// to final disposition.
//
// Invariants:
//   - Group is derived from the donor at creation and immutable thereafter
//   - Status only changes along the transition table (see status.go)
//   - Status changes require DonationStatus == completed
//   - ExpiryDate is set when the unit enters inventory and never recomputed
//   - Terminal units (used/expired/discarded) are retained for audit, never deleted
type BloodUnit struct {
	ID             id.UnitID
	Donor          id.DonorID
	BloodBank      id.BloodBankID
	Group          blood.Group
	Product        blood.ProductType
	VolumeML       int
	CollectedAt    time.Time
	DonationStatus DonationStatus
	Status         Status
	ExpiryDate     *time.Time
	ReservedFor    *id.RequestID
	Dispatch       *Disposition
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBloodUnit constructs a unit for a completed donation. The unit starts
// without a lifecycle status; the expiry date is computed from the collection
// time and product shelf life when the unit first enters inventory.
func NewBloodUnit(unitID id.UnitID, donor id.DonorID, bank id.BloodBankID, group blood.Group, product blood.ProductType, volumeML int, collectedAt, now time.Time) (*BloodUnit, error) {
	if !group.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "blood group is required")
	}
	if volumeML <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "collected volume must be positive")
	}
	if collectedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "collection time is required")
	}
	return &BloodUnit{
		ID:             unitID,
		Donor:          donor,
		BloodBank:      bank,
		Group:          group,
		Product:        product,
		VolumeML:       volumeML,
		CollectedAt:    collectedAt,
		DonationStatus: DonationCompleted,
		Status:         StatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Expired reports whether the unit is past its expiry date at the given time.
// Units without an expiry date (not yet in inventory) never count as expired.
func (u *BloodUnit) Expired(now time.Time) bool {
	return u.ExpiryDate != nil && u.ExpiryDate.Before(now)
}

// Available reports whether the unit can be issued against a request.
func (u *BloodUnit) Available(now time.Time) bool {
	return u.DonationStatus == DonationCompleted &&
		u.Status == StatusInInventory &&
		!u.Expired(now)
}

// CanChangeStatus validates a requested transition including the donation
// completion gate. Use with ApplyStatus in store Execute callbacks.
func (u *BloodUnit) CanChangeStatus(requested Status) error {
	if u.DonationStatus != DonationCompleted {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"unit status can only be managed on a completed donation (donation is %q)",
			string(u.DonationStatus))
	}
	return ValidateTransition(u.Status, requested)
}

// ApplyStatus moves the unit to the requested status and maintains the
// derived fields that hang off specific states. Call CanChangeStatus first.
func (u *BloodUnit) ApplyStatus(requested Status, now time.Time) {
	switch requested {
	case StatusInInventory:
		if u.ExpiryDate == nil {
			expiry := blood.ExpiryAt(u.CollectedAt, u.Product)
			u.ExpiryDate = &expiry
		}
		u.ReservedFor = nil
	case StatusExpired, StatusDiscarded:
		u.ReservedFor = nil
	}
	u.Status = requested
	u.UpdatedAt = now
}

// ApplyReservation marks the unit reserved for a specific request.
func (u *BloodUnit) ApplyReservation(requestID id.RequestID, now time.Time) {
	u.Status = StatusReserved
	u.ReservedFor = &requestID
	u.UpdatedAt = now
}

// ApplyDispatch marks the unit dispatched with its destination recorded.
func (u *BloodUnit) ApplyDispatch(destination string, now time.Time) {
	u.Status = StatusDispatched
	u.Dispatch = &Disposition{Destination: destination, At: now}
	u.UpdatedAt = now
}

// ApplyDiscard marks the unit discarded with the reason recorded.
func (u *BloodUnit) ApplyDiscard(reason string, now time.Time) {
	u.Status = StatusDiscarded
	u.ReservedFor = nil
	u.Dispatch = &Disposition{At: now, Reason: reason}
	u.UpdatedAt = now
}

// Clone returns a deep copy so memory stores never leak shared pointers.
func (u *BloodUnit) Clone() *BloodUnit {
	c := *u
	if u.ExpiryDate != nil {
		t := *u.ExpiryDate
		c.ExpiryDate = &t
	}
	if u.ReservedFor != nil {
		r := *u.ReservedFor
		c.ReservedFor = &r
	}
	if u.Dispatch != nil {
		d := *u.Dispatch
		c.Dispatch = &d
	}
	return &c
}
