// Package models holds the blood request aggregate.
package models

import (
	"time"

	"bloodlink/internal/blood"
	"bloodlink/internal/geo"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Priority orders requests by clinical urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p names a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the lifecycle state of a blood request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var statusTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusFulfilled: true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusApproved: {
		StatusFulfilled: true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusFulfilled: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// CanTransitionTo reports whether the request status table permits the move.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := statusTransitions[s]
	return ok && allowed[next]
}

// Open reports whether the request still accepts reservations.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusApproved
}

// BloodRequest is a medical institution's demand for compatible blood units.
//
// Invariants:
//   - UnitsFulfilled never exceeds UnitsRequired and never decreases
//   - Status changes only along statusTransitions
//   - Units lists every blood unit ever reserved against this request
type BloodRequest struct {
	ID             id.RequestID
	Institution    id.InstitutionID
	Group          blood.Group
	UnitsRequired  int
	UnitsFulfilled int
	Priority       Priority
	RequiredBy     time.Time
	Location       geo.Point
	LocationLabel  string
	Status         Status
	Units          []id.UnitID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBloodRequest validates and constructs a pending request.
func NewBloodRequest(requestID id.RequestID, institution id.InstitutionID, group blood.Group, unitsRequired int, priority Priority, requiredBy time.Time, location geo.Point, label string, now time.Time) (*BloodRequest, error) {
	if !group.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "blood group is required")
	}
	if unitsRequired <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "units required must be positive")
	}
	if !priority.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown priority %q", string(priority))
	}
	if requiredBy.Before(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "required-by deadline must be in the future")
	}
	return &BloodRequest{
		ID:            requestID,
		Institution:   institution,
		Group:         group,
		UnitsRequired: unitsRequired,
		Priority:      priority,
		RequiredBy:    requiredBy,
		Location:      location,
		LocationLabel: label,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanAcceptUnits checks whether more units may be reserved against the request.
func (r *BloodRequest) CanAcceptUnits() error {
	if !r.Status.Open() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"request is %s and no longer accepts units", string(r.Status))
	}
	if r.UnitsFulfilled >= r.UnitsRequired {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already fully reserved")
	}
	return nil
}

// ApplyReservedUnits links reserved units and advances the fulfilled counter,
// flipping the status to fulfilled when the requirement is met. The counter is
// clamped conceptually by CanAcceptUnits; callers reserve at most the remainder.
func (r *BloodRequest) ApplyReservedUnits(unitIDs []id.UnitID, now time.Time) {
	r.Units = append(r.Units, unitIDs...)
	r.UnitsFulfilled += len(unitIDs)
	if r.UnitsFulfilled >= r.UnitsRequired {
		r.UnitsFulfilled = r.UnitsRequired
		r.Status = StatusFulfilled
	}
	r.UpdatedAt = now
}

// Remaining returns how many units the request still needs.
func (r *BloodRequest) Remaining() int {
	return r.UnitsRequired - r.UnitsFulfilled
}

// CanExpire checks the expiry transition.
func (r *BloodRequest) CanExpire() error {
	if !r.Status.CanTransitionTo(StatusExpired) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"request is %s and cannot expire", string(r.Status))
	}
	return nil
}

// ApplyExpire moves the request to expired.
func (r *BloodRequest) ApplyExpire(now time.Time) {
	r.Status = StatusExpired
	r.UpdatedAt = now
}

// CanCancel checks the cancellation transition.
func (r *BloodRequest) CanCancel() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"request is %s and cannot be cancelled", string(r.Status))
	}
	return nil
}

// ApplyCancel moves the request to cancelled.
func (r *BloodRequest) ApplyCancel(now time.Time) {
	r.Status = StatusCancelled
	r.UpdatedAt = now
}

// Clone returns a deep copy for memory stores.
func (r *BloodRequest) Clone() *BloodRequest {
	c := *r
	c.Units = append([]id.UnitID(nil), r.Units...)
	return &c
}
