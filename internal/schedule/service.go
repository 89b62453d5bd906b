package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// Store is the appointment persistence contract.
type Store interface {
	ConflictStore
	Create(ctx context.Context, schedule *DonationSchedule) error
	FindByID(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error)
	Execute(ctx context.Context, scheduleID id.ScheduleID, validate func(*DonationSchedule) error, mutate func(*DonationSchedule)) (*DonationSchedule, error)
	ListByDonor(ctx context.Context, donorID id.DonorID) ([]*DonationSchedule, error)
}

// AuditPublisher records appointment activity, fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service books and manages donation appointments.
type Service struct {
	schedules Store
	auditor   AuditPublisher
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

// NewService constructs the appointment service.
func NewService(schedules Store, opts ...Option) *Service {
	s := &Service{
		schedules: schedules,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookParams carries appointment booking input. RawSlot holds the
// "HH:MM-HH:MM" token as received at the boundary.
type BookParams struct {
	Donor     id.DonorID
	BloodBank id.BloodBankID
	Date      time.Time
	RawSlot   string
}

// Book validates, conflict-checks and persists a new appointment.
func (s *Service) Book(ctx context.Context, params BookParams) (*DonationSchedule, error) {
	now := requestcontext.Now(ctx)
	slot, err := ParseSlot(params.RawSlot)
	if err != nil {
		return nil, err
	}
	schedule, err := NewDonationSchedule(
		id.ScheduleID(uuid.New()), params.Donor, params.BloodBank,
		params.Date, slot, now,
	)
	if err != nil {
		return nil, err
	}
	if err := CheckConflict(ctx, s.schedules, params.Donor, params.BloodBank, schedule.Date, slot, nil); err != nil {
		return nil, err
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store appointment")
	}

	s.emitAudit(ctx, audit.ActivityScheduleBooked, "Donation appointment booked", map[string]string{
		"schedule_id":   schedule.ID.String(),
		"donor_id":      params.Donor.String(),
		"blood_bank_id": params.BloodBank.String(),
		"slot":          slot.String(),
	})
	return schedule, nil
}

// Reschedule moves an active appointment to a new date and slot. The
// appointment itself is excluded from the conflict check.
func (s *Service) Reschedule(ctx context.Context, scheduleID id.ScheduleID, date time.Time, rawSlot string) (*DonationSchedule, error) {
	now := requestcontext.Now(ctx)
	slot, err := ParseSlot(rawSlot)
	if err != nil {
		return nil, err
	}
	day := DateOnly(date)
	if !day.After(DateOnly(now)) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment date must be in the future")
	}

	current, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, wrapScheduleErr(err)
	}
	if !current.Status.Active() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"appointment is %s and cannot be rescheduled", string(current.Status))
	}
	if err := CheckConflict(ctx, s.schedules, current.Donor, current.BloodBank, day, slot, &scheduleID); err != nil {
		return nil, err
	}

	schedule, err := s.schedules.Execute(ctx, scheduleID,
		func(d *DonationSchedule) error {
			if !d.Status.Active() {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"appointment is %s and cannot be rescheduled", string(d.Status))
			}
			return nil
		},
		func(d *DonationSchedule) {
			d.Date = day
			d.Slot = slot
			d.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, wrapScheduleErr(err)
	}
	return schedule, nil
}

// Confirm marks a scheduled appointment confirmed.
func (s *Service) Confirm(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error) {
	return s.transition(ctx, scheduleID, StatusConfirmed)
}

// Cancel cancels an appointment, freeing its slot.
func (s *Service) Cancel(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error) {
	schedule, err := s.transition(ctx, scheduleID, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, audit.ActivityScheduleCancelled, "Donation appointment cancelled", map[string]string{
		"schedule_id": scheduleID.String(),
	})
	return schedule, nil
}

// MarkNoShow records that the donor did not appear.
func (s *Service) MarkNoShow(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error) {
	return s.transition(ctx, scheduleID, StatusNoShow)
}

// Complete marks the appointment completed and links the blood unit that the
// donation produced.
func (s *Service) Complete(ctx context.Context, scheduleID id.ScheduleID, unitID id.UnitID) (*DonationSchedule, error) {
	now := requestcontext.Now(ctx)
	schedule, err := s.schedules.Execute(ctx, scheduleID,
		func(d *DonationSchedule) error { return d.CanChangeStatus(StatusCompleted) },
		func(d *DonationSchedule) { d.ApplyCompletion(unitID, now) },
	)
	if err != nil {
		return nil, wrapScheduleErr(err)
	}
	return schedule, nil
}

// ForDonor lists a donor's appointments, soonest first.
func (s *Service) ForDonor(ctx context.Context, donorID id.DonorID) ([]*DonationSchedule, error) {
	schedules, err := s.schedules.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list appointments")
	}
	return schedules, nil
}

func (s *Service) transition(ctx context.Context, scheduleID id.ScheduleID, requested Status) (*DonationSchedule, error) {
	now := requestcontext.Now(ctx)
	schedule, err := s.schedules.Execute(ctx, scheduleID,
		func(d *DonationSchedule) error { return d.CanChangeStatus(requested) },
		func(d *DonationSchedule) { d.ApplyStatus(requested, now) },
	)
	if err != nil {
		return nil, wrapScheduleErr(err)
	}
	return schedule, nil
}

func (s *Service) emitAudit(ctx context.Context, activity audit.ActivityType, title string, metadata map[string]string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Type:     activity,
		Title:    title,
		UserID:   requestcontext.UserID(ctx),
		Metadata: metadata,
	})
}

func wrapScheduleErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "appointment not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation), dErrors.HasCode(err, dErrors.CodeConflict):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "appointment operation failed")
	}
}
