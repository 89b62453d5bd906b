// Package service manages blood units: registration from completed donations,
// authorization-gated status changes, and donation statistics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	"bloodlink/internal/blood"
	"bloodlink/internal/donor"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// InventoryStore is the unit persistence the service depends on.
type InventoryStore interface {
	Create(ctx context.Context, unit *models.BloodUnit) error
	FindByID(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error)
	Execute(ctx context.Context, unitID id.UnitID, validate func(*models.BloodUnit) error, mutate func(*models.BloodUnit)) (*models.BloodUnit, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.BloodUnit, error)
	CountCompletedByMonth(ctx context.Context, year int) (map[time.Month]int, error)
}

// DonorStore is the donor profile access needed for registration.
type DonorStore interface {
	FindDonorByID(ctx context.Context, donorID id.DonorID) (*donor.Donor, error)
	SaveDonor(ctx context.Context, d *donor.Donor) error
}

// AuditPublisher records unit activity, fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service manages blood unit registration and lifecycle.
type Service struct {
	inventory InventoryStore
	donors    DonorStore
	auditor   AuditPublisher
	metrics   *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the unit service.
func New(inventory InventoryStore, donors DonorStore, opts ...Option) *Service {
	s := &Service{
		inventory: inventory,
		donors:    donors,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries donation registration input.
type RegisterParams struct {
	Donor       id.DonorID
	BloodBank   id.BloodBankID
	Group       blood.Group
	Product     blood.ProductType
	VolumeML    int
	CollectedAt time.Time
}

// RegisterDonation records a completed donation as a new blood unit. The
// donor's blood group is established on first donation and must match on every
// later one; donation counters and the eligibility window are refreshed.
func (s *Service) RegisterDonation(ctx context.Context, params RegisterParams) (*models.BloodUnit, error) {
	now := requestcontext.Now(ctx)

	d, err := s.donors.FindDonorByID(ctx, params.Donor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
	}
	if err := d.EstablishGroup(params.Group); err != nil {
		return nil, err
	}

	unit, err := models.NewBloodUnit(
		id.UnitID(uuid.New()), params.Donor, params.BloodBank,
		*d.Group, params.Product, params.VolumeML, params.CollectedAt, now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.inventory.Create(ctx, unit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store blood unit")
	}

	d.RecordDonation(params.CollectedAt)
	if err := s.donors.SaveDonor(ctx, d); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh donor after donation",
			"donor_id", params.Donor.String(),
			"error", err)
	}

	if s.metrics != nil {
		s.metrics.UnitsRegistered.Inc()
	}
	s.emitAudit(ctx, audit.ActivityUnitRegistered, "Blood unit registered", map[string]string{
		"unit_id":     unit.ID.String(),
		"donor_id":    params.Donor.String(),
		"blood_group": unit.Group.String(),
		"product":     string(unit.Product),
	})
	return unit, nil
}

// StatusMeta carries disposition details for dispatch and discard transitions.
type StatusMeta struct {
	Destination string
	Reason      string
}

// ManageStatus moves a unit through the lifecycle state machine. The caller's
// role and ownership are checked before the state machine runs: donors may only
// act on their own units, blood banks on their own inventory, medical
// institutions only on units dispatched to them; admins are unconstrained.
func (s *Service) ManageStatus(ctx context.Context, unitID id.UnitID, requested models.Status, meta StatusMeta) (*models.BloodUnit, error) {
	if !requested.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown unit status %q", string(requested))
	}

	now := requestcontext.Now(ctx)
	unit, err := s.inventory.Execute(ctx, unitID,
		func(u *models.BloodUnit) error {
			if err := authorize(ctx, u); err != nil {
				return err
			}
			return u.CanChangeStatus(requested)
		},
		func(u *models.BloodUnit) {
			switch requested {
			case models.StatusDispatched:
				u.ApplyDispatch(meta.Destination, now)
			case models.StatusDiscarded:
				u.ApplyDiscard(meta.Reason, now)
			default:
				u.ApplyStatus(requested, now)
			}
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "blood unit not found")
		}
		return nil, err
	}

	s.emitAudit(ctx, audit.ActivityUnitStatusChanged, "Blood unit status changed", map[string]string{
		"unit_id":    unit.ID.String(),
		"new_status": string(unit.Status),
	})
	return unit, nil
}

// Get fetches a unit by ID.
func (s *Service) Get(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	unit, err := s.inventory.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "blood unit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blood unit")
	}
	return unit, nil
}

// ListByStatus lists units in a given lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]*models.BloodUnit, error) {
	if !status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown unit status %q", string(status))
	}
	units, err := s.inventory.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list blood units")
	}
	return units, nil
}

// MonthlyStats is the completed-donation tally for one calendar year. Counts
// always carries all twelve months, absent months at zero.
type MonthlyStats struct {
	Year   int
	Counts map[time.Month]int
}

// DonationStatsByMonth tallies completed donations per month of the given year.
func (s *Service) DonationStatsByMonth(ctx context.Context, year int) (*MonthlyStats, error) {
	counted, err := s.inventory.CountCompletedByMonth(ctx, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count donations")
	}
	stats := &MonthlyStats{Year: year, Counts: make(map[time.Month]int, 12)}
	for month := time.January; month <= time.December; month++ {
		stats.Counts[month] = counted[month]
	}
	return stats, nil
}

// authorize enforces the role/ownership pre-check for unit status management.
func authorize(ctx context.Context, unit *models.BloodUnit) error {
	role := requestcontext.RoleOf(ctx)
	actor := requestcontext.ActorID(ctx)
	switch role {
	case requestcontext.RoleAdmin:
		return nil
	case requestcontext.RoleDonor:
		if unit.Donor.String() == actor {
			return nil
		}
	case requestcontext.RoleBloodBank:
		if unit.BloodBank.String() == actor {
			return nil
		}
	case requestcontext.RoleInstitution:
		if unit.Dispatch != nil && unit.Dispatch.Destination == actor {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "caller may not manage this blood unit")
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
