// Package service orchestrates blood request lifecycle: creation with
// best-effort donor/bank discovery, donor-side browsing with compatibility
// and travel-distance filtering, approval and cancellation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bloodlink/internal/audit"
	"bloodlink/internal/blood"
	"bloodlink/internal/donor"
	"bloodlink/internal/geo"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// RequestStore is the persistence contract the service depends on.
type RequestStore interface {
	Create(ctx context.Context, request *models.BloodRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error)
	ListPendingByGroups(ctx context.Context, groups []blood.Group) ([]*models.BloodRequest, error)
}

// Locator is the proximity-query contract (implemented by geo.Locator).
type Locator interface {
	NearbyDonors(ctx context.Context, pt geo.Point, radiusKm float64) ([]id.DonorID, error)
	NearbyBanks(ctx context.Context, pt geo.Point, radiusKm float64) ([]id.BloodBankID, error)
	NearbyRequests(ctx context.Context, pt geo.Point, radiusKm float64) ([]id.RequestID, error)
	UpsertRequest(ctx context.Context, requestID id.RequestID, pt geo.Point) error
	RemoveRequest(ctx context.Context, requestID id.RequestID) error
}

// DonorDirectory resolves donor profiles for compatibility filtering.
type DonorDirectory interface {
	FindDonorByID(ctx context.Context, donorID id.DonorID) (*donor.Donor, error)
}

// AuditPublisher records activity events, fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates blood request operations.
type Service struct {
	requests RequestStore
	locator  Locator
	donors   DonorDirectory
	notifier notify.Notifier
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	notifyOnCreate bool
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNotifier enables create-time discovery and notification fan-out.
func WithNotifier(n notify.Notifier, enabled bool) Option {
	return func(s *Service) {
		s.notifier = n
		s.notifyOnCreate = enabled
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the request service.
func New(requests RequestStore, locator Locator, donors DonorDirectory, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		locator:  locator,
		donors:   donors,
		notifier: notify.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries request creation input.
type CreateParams struct {
	Institution   id.InstitutionID
	Group         blood.Group
	UnitsRequired int
	Priority      models.Priority
	RequiredBy    time.Time
	Location      geo.Point
	LocationLabel string
}

// Create validates and persists a new blood request, then runs best-effort
// discovery and notification. Discovery or notification failure never fails
// the creation itself.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.BloodRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := models.NewBloodRequest(
		id.RequestID(uuid.New()), params.Institution, params.Group,
		params.UnitsRequired, params.Priority, params.RequiredBy,
		params.Location, params.LocationLabel, now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create blood request")
	}

	s.emitAudit(ctx, audit.ActivityRequestCreated, "Blood request created", map[string]string{
		"request_id":  request.ID.String(),
		"blood_group": request.Group.String(),
		"priority":    string(request.Priority),
	})
	s.incrementRequestsCreated()

	if !request.Location.Zero() {
		if err := s.locator.UpsertRequest(ctx, request.ID, request.Location); err != nil {
			s.logger.WarnContext(ctx, "failed to index request location",
				"request_id", request.ID.String(),
				"error", err)
		}
	}
	if s.notifyOnCreate {
		s.discoverAndNotify(ctx, request)
	}
	return request, nil
}

// discoverAndNotify resolves nearby compatible donors and active banks and
// hands the ID lists to the notifier. Strictly best effort.
func (s *Service) discoverAndNotify(ctx context.Context, request *models.BloodRequest) {
	if request.Location.Zero() {
		return
	}

	var (
		donorIDs []id.DonorID
		bankIDs  []id.BloodBankID
	)
	donorRadius := geo.DonorRadiusKm(request.Priority == models.PriorityCritical)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := s.locator.NearbyDonors(gctx, request.Location, donorRadius)
		if err != nil {
			return err
		}
		donorIDs = s.filterCompatibleDonors(gctx, ids, request.Group)
		return nil
	})
	g.Go(func() error {
		ids, err := s.locator.NearbyBanks(gctx, request.Location, geo.BankRadiusKm)
		if err != nil {
			return err
		}
		bankIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "request discovery failed",
			"request_id", request.ID.String(),
			"error", err)
		return
	}

	err := s.notifier.NewBloodRequest(ctx, notify.NewRequestNote{
		Request:       request.ID,
		BloodGroup:    request.Group.String(),
		LocationLabel: request.LocationLabel,
		Priority:      string(request.Priority),
		Donors:        donorIDs,
		Banks:         bankIDs,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "request notification dispatch failed",
			"request_id", request.ID.String(),
			"error", err)
	}
}

// filterCompatibleDonors keeps donors whose established blood group can
// supply the requested group. Donors without a known group are skipped.
func (s *Service) filterCompatibleDonors(ctx context.Context, donorIDs []id.DonorID, group blood.Group) []id.DonorID {
	out := make([]id.DonorID, 0, len(donorIDs))
	for _, donorID := range donorIDs {
		d, err := s.donors.FindDonorByID(ctx, donorID)
		if err != nil || d.Group == nil {
			continue
		}
		if blood.Compatible(*d.Group, group) {
			out = append(out, donorID)
		}
	}
	return out
}

// OpenForDonor returns pending requests the given donor could serve: the
// request's group must be one the donor's group can donate to, and when the
// donor has both a registered location and a configured travel distance the
// result is restricted to requests within that distance. A donor missing
// either field sees the unrestricted compatible list; the distance clause is
// omitted, never defaulted to zero.
func (s *Service) OpenForDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodRequest, error) {
	d, err := s.donors.FindDonorByID(ctx, donorID)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donor")
	}
	if d.Group == nil {
		return nil, nil
	}

	compatible := blood.DonableTo(*d.Group)
	requests, err := s.requests.ListPendingByGroups(ctx, compatible)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open requests")
	}

	if d.Location == nil || d.MaxTravelKm == nil {
		return requests, nil
	}

	nearby, err := s.locator.NearbyRequests(ctx, *d.Location, *d.MaxTravelKm)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply travel distance filter")
	}
	within := make(map[id.RequestID]bool, len(nearby))
	for _, requestID := range nearby {
		within[requestID] = true
	}
	filtered := requests[:0]
	for _, request := range requests {
		if within[request.ID] {
			filtered = append(filtered, request)
		}
	}
	return filtered, nil
}

// Approve moves a pending request to approved.
func (s *Service) Approve(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := s.requests.Execute(ctx, requestID,
		func(r *models.BloodRequest) error {
			if !r.Status.CanTransitionTo(models.StatusApproved) {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"request is %s and cannot be approved", string(r.Status))
			}
			return nil
		},
		func(r *models.BloodRequest) {
			r.Status = models.StatusApproved
			r.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return request, nil
}

// Cancel cancels an open request and drops it from the proximity index.
func (s *Service) Cancel(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := s.requests.Execute(ctx, requestID,
		func(r *models.BloodRequest) error { return r.CanCancel() },
		func(r *models.BloodRequest) { r.ApplyCancel(now) },
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	if err := s.locator.RemoveRequest(ctx, requestID); err != nil {
		s.logger.WarnContext(ctx, "failed to deindex cancelled request",
			"request_id", requestID.String(),
			"error", err)
	}
	s.emitAudit(ctx, audit.ActivityRequestCancelled, "Blood request cancelled", map[string]string{
		"request_id": requestID.String(),
	})
	return request, nil
}

// Get fetches a request by ID.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return request, nil
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

func (s *Service) incrementRequestsCreated() {
	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
}

func wrapRequestErr(err error) error {
	switch {
	case errorsIsNotFound(err):
		return dErrors.New(dErrors.CodeNotFound, "blood request not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "blood request operation failed")
	}
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
