package schedule

import (
	"context"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Conflict causes, reported in the error's "cause" detail so callers can
// distinguish a donor double-booking from a full slot.
const (
	CauseDonorBooked  = "donor_booked"
	CauseSlotCapacity = "slot_capacity"
)

// ConflictStore lists the active (non-cancelled, non-terminal) appointments
// occupying a date+slot.
type ConflictStore interface {
	ListActiveBySlot(ctx context.Context, date time.Time, slot Slot) ([]*DonationSchedule, error)
}

// CheckConflict verifies that booking (donor, bank, date, slot) collides with
// no existing appointment. excludeID skips the appointment being rescheduled.
// The donor-booked cause takes precedence when both would apply.
func CheckConflict(ctx context.Context, store ConflictStore, donorID id.DonorID, bankID id.BloodBankID, date time.Time, slot Slot, excludeID *id.ScheduleID) error {
	existing, err := store.ListActiveBySlot(ctx, DateOnly(date), slot)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check appointment conflicts")
	}

	slotTaken := false
	for _, appointment := range existing {
		if excludeID != nil && appointment.ID == *excludeID {
			continue
		}
		if appointment.Donor == donorID {
			return dErrors.New(dErrors.CodeConflict,
				"donor already has an appointment in this slot").
				WithDetail("cause", CauseDonorBooked)
		}
		if appointment.BloodBank == bankID {
			slotTaken = true
		}
	}
	if slotTaken {
		return dErrors.New(dErrors.CodeConflict,
			"blood bank slot is already at capacity").
			WithDetail("cause", CauseSlotCapacity)
	}
	return nil
}
