package fulfillment

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"bloodlink/internal/audit"
	"bloodlink/internal/platform/metrics"
	requestmodels "bloodlink/internal/request/models"
	unitmodels "bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/requestcontext"
)

// ExpiryWarningWindow is how far ahead the warning check looks for units
// approaching expiry.
const ExpiryWarningWindow = 3 * 24 * time.Hour

// SweepStore is the inventory access the sweeper needs.
type SweepStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]*unitmodels.BloodUnit, error)
	ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*unitmodels.BloodUnit, error)
	Execute(ctx context.Context, unitID id.UnitID, validate func(*unitmodels.BloodUnit) error, mutate func(*unitmodels.BloodUnit)) (*unitmodels.BloodUnit, error)
}

// RequestSweepStore is the request access the sweeper needs to retire
// requests whose deadline has passed.
type RequestSweepStore interface {
	ListOverdue(ctx context.Context, now time.Time) ([]*requestmodels.BloodRequest, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*requestmodels.BloodRequest) error, mutate func(*requestmodels.BloodRequest)) (*requestmodels.BloodRequest, error)
}

// SweepReport summarizes one expiry sweep run.
type SweepReport struct {
	Processed       int
	Expired         int
	ExpiredRequests int
}

// Sweeper retires expired units on a fixed schedule and surfaces units
// approaching expiry on a separate cadence. Each run processes every candidate
// to completion; per-unit failures are logged, never propagated.
type Sweeper struct {
	inventory     SweepStore
	requests      RequestSweepStore
	auditor       AuditPublisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	sweepInterval time.Duration
	warnInterval  time.Duration
}

// SweeperOption configures the Sweeper.
type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

func WithSweeperAuditPublisher(p AuditPublisher) SweeperOption {
	return func(s *Sweeper) { s.auditor = p }
}

func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

// WithRequestSweep enables expiring blood requests whose required-by deadline
// has passed during the sweep.
func WithRequestSweep(requests RequestSweepStore) SweeperOption {
	return func(s *Sweeper) { s.requests = requests }
}

// WithIntervals overrides the sweep and warning cadences; zero keeps the default.
func WithIntervals(sweep, warn time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if sweep > 0 {
			s.sweepInterval = sweep
		}
		if warn > 0 {
			s.warnInterval = warn
		}
	}
}

// NewSweeper constructs the expiry sweeper with daily sweep and 12-hour
// warning cadences by default.
func NewSweeper(inventory SweepStore, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		inventory:     inventory,
		logger:        slog.Default(),
		sweepInterval: 24 * time.Hour,
		warnInterval:  12 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives both scheduled checks until the context is cancelled. Individual
// runs are never cancelled midway; they finish their batch and the loop exits
// on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()
	warnTicker := time.NewTicker(s.warnInterval)
	defer warnTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			report, err := s.SweepOnce(context.WithoutCancel(ctx))
			if err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
				continue
			}
			s.logger.InfoContext(ctx, "expiry sweep completed",
				"processed", report.Processed,
				"expired", report.Expired,
				"expired_requests", report.ExpiredRequests)
		case <-warnTicker.C:
			if _, err := s.WarnOnce(context.WithoutCancel(ctx)); err != nil {
				s.logger.ErrorContext(ctx, "expiry warning check failed", "error", err)
			}
		}
	}
}

// SweepOnce retires every in-inventory or reserved unit whose expiry date has
// passed. Sweeping an already-retired unit is a no-op: it no longer matches the
// expired query, so a second sweep processes nothing. A unit whose transition
// fails (raced by another writer) is logged and skipped; the sweep continues.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	now := requestcontext.Now(ctx)

	candidates, err := s.inventory.ListExpired(ctx, now)
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Processed: len(candidates)}
	for _, candidate := range candidates {
		_, err := s.inventory.Execute(ctx, candidate.ID,
			func(u *unitmodels.BloodUnit) error {
				if u.Status == unitmodels.StatusExpired {
					return nil
				}
				return u.CanChangeStatus(unitmodels.StatusExpired)
			},
			func(u *unitmodels.BloodUnit) {
				if u.Status != unitmodels.StatusExpired {
					u.ApplyStatus(unitmodels.StatusExpired, now)
				}
			},
		)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to retire expired unit",
				"unit_id", candidate.ID.String(),
				"error", err)
			continue
		}
		report.Expired++
	}

	report.ExpiredRequests = s.sweepRequests(ctx, now)

	if s.metrics != nil {
		s.metrics.UnitsExpired.Add(float64(report.Expired))
		s.metrics.SweepDurationMs.Observe(float64(time.Since(started).Milliseconds()))
	}
	if s.auditor != nil && report.Expired > 0 {
		s.auditor.Emit(ctx, audit.Event{
			Type:  audit.ActivityUnitsExpired,
			Title: "Expired blood units retired",
			Metadata: map[string]string{
				"processed": strconv.Itoa(report.Processed),
				"expired":   strconv.Itoa(report.Expired),
			},
		})
	}
	return report, nil
}

// sweepRequests retires open requests whose required-by deadline has passed.
// Listing failures and per-request transition races are logged and skipped.
func (s *Sweeper) sweepRequests(ctx context.Context, now time.Time) int {
	if s.requests == nil {
		return 0
	}
	overdue, err := s.requests.ListOverdue(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list overdue requests", "error", err)
		return 0
	}

	expired := 0
	for _, candidate := range overdue {
		_, err := s.requests.Execute(ctx, candidate.ID,
			func(r *requestmodels.BloodRequest) error {
				if r.Status == requestmodels.StatusExpired {
					return nil
				}
				return r.CanExpire()
			},
			func(r *requestmodels.BloodRequest) {
				if r.Status != requestmodels.StatusExpired {
					r.ApplyExpire(now)
				}
			},
		)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to expire overdue request",
				"request_id", candidate.ID.String(),
				"error", err)
			continue
		}
		expired++
	}

	if s.auditor != nil && expired > 0 {
		s.auditor.Emit(ctx, audit.Event{
			Type:  audit.ActivityRequestsExpired,
			Title: "Overdue blood requests expired",
			Metadata: map[string]string{
				"expired": strconv.Itoa(expired),
			},
		})
	}
	return expired
}

// WarnOnce reports units expiring within the warning window grouped by owning
// blood bank. Read-only; nothing is mutated.
func (s *Sweeper) WarnOnce(ctx context.Context) (map[id.BloodBankID][]*unitmodels.BloodUnit, error) {
	now := requestcontext.Now(ctx)
	expiring, err := s.inventory.ListExpiringWithin(ctx, now, ExpiryWarningWindow)
	if err != nil {
		return nil, err
	}

	byBank := make(map[id.BloodBankID][]*unitmodels.BloodUnit)
	for _, unit := range expiring {
		byBank[unit.BloodBank] = append(byBank[unit.BloodBank], unit)
	}
	for bank, units := range byBank {
		s.logger.WarnContext(ctx, "blood units approaching expiry",
			"blood_bank_id", bank.String(),
			"count", len(units))
	}
	return byBank, nil
}
