// Package schedule manages donation appointments and their double-booking
// rules: one donor cannot hold two appointments in the same slot, and one
// blood bank slot takes a single appointment.
package schedule

import (
	"fmt"
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Status is the lifecycle state of a donation appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var statusTransitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusConfirmed: true,
		StatusCancelled: true,
		StatusCompleted: true,
		StatusNoShow:    true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
		StatusCompleted: true,
		StatusNoShow:    true,
	},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusNoShow:    {},
}

// CanTransitionTo reports whether the appointment status table permits the move.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := statusTransitions[s]
	return ok && allowed[next]
}

// Active reports whether the appointment still occupies its slot. Cancelled
// appointments free the slot; completed and no-show keep their historical slot
// but no longer block new bookings on future dates anyway.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Slot is a clock interval within one day, e.g. "09:00-09:30".
type Slot struct {
	Start string
	End   string
}

// ParseSlot strictly parses "HH:MM-HH:MM". The start must precede the end;
// both bounds use 24-hour clock. Anything else is a validation error.
func ParseSlot(raw string) (Slot, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 || len(parts[0]) != 5 || len(parts[1]) != 5 {
		return Slot{}, dErrors.Newf(dErrors.CodeValidation,
			"time slot %q must be in HH:MM-HH:MM format", raw)
	}
	start, err := time.Parse("15:04", parts[0])
	if err != nil {
		return Slot{}, dErrors.Newf(dErrors.CodeValidation,
			"time slot %q must be in HH:MM-HH:MM format", raw)
	}
	end, err := time.Parse("15:04", parts[1])
	if err != nil {
		return Slot{}, dErrors.Newf(dErrors.CodeValidation,
			"time slot %q must be in HH:MM-HH:MM format", raw)
	}
	if !start.Before(end) {
		return Slot{}, dErrors.Newf(dErrors.CodeValidation,
			"time slot %q must start before it ends", raw)
	}
	return Slot{Start: parts[0], End: parts[1]}, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// DonationSchedule is one donor appointment at a blood bank.
type DonationSchedule struct {
	ID        id.ScheduleID
	Donor     id.DonorID
	BloodBank id.BloodBankID
	Date      time.Time // calendar date, midnight UTC
	Slot      Slot
	Status    Status
	Unit      *id.UnitID // set when the appointment completed into a donation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDonationSchedule validates and constructs a scheduled appointment. The
// target date must be strictly in the future.
func NewDonationSchedule(scheduleID id.ScheduleID, donorID id.DonorID, bankID id.BloodBankID, date time.Time, slot Slot, now time.Time) (*DonationSchedule, error) {
	day := DateOnly(date)
	if !day.After(DateOnly(now)) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment date must be in the future")
	}
	return &DonationSchedule{
		ID:        scheduleID,
		Donor:     donorID,
		BloodBank: bankID,
		Date:      day,
		Slot:      slot,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanChangeStatus checks the appointment status transition table.
func (d *DonationSchedule) CanChangeStatus(requested Status) error {
	if d.Status.CanTransitionTo(requested) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation,
		"cannot change appointment status from %q to %q", string(d.Status), string(requested)).
		WithDetail("current_status", string(d.Status)).
		WithDetail("requested_status", string(requested))
}

// ApplyStatus moves the appointment to the requested status.
func (d *DonationSchedule) ApplyStatus(requested Status, now time.Time) {
	d.Status = requested
	d.UpdatedAt = now
}

// ApplyCompletion marks the appointment completed and links the resulting unit.
func (d *DonationSchedule) ApplyCompletion(unitID id.UnitID, now time.Time) {
	d.Status = StatusCompleted
	d.Unit = &unitID
	d.UpdatedAt = now
}

// Clone returns a deep copy for memory stores.
func (d *DonationSchedule) Clone() *DonationSchedule {
	c := *d
	if d.Unit != nil {
		u := *d.Unit
		c.Unit = &u
	}
	return &c
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
