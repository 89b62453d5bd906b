// Package fulfillment allocates available blood units to open requests.
//
// Reservation is per-unit and conditional: each unit moves to reserved through
// the inventory store's atomic update, so a concurrent writer that claims a
// unit first simply costs this engine one candidate. Batch reservation is not
// transactional across units; partial fulfillment is a reported outcome, not
// an error.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"bloodlink/internal/audit"
	"bloodlink/internal/blood"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/metrics"
	requestmodels "bloodlink/internal/request/models"
	unitmodels "bloodlink/internal/unit/models"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// InventoryStore is the inventory access the engine needs: FIFO candidate
// listing plus the conditional per-unit update.
type InventoryStore interface {
	ListAvailable(ctx context.Context, groups []blood.Group, bank *id.BloodBankID, limit int) ([]*unitmodels.BloodUnit, error)
	Execute(ctx context.Context, unitID id.UnitID, validate func(*unitmodels.BloodUnit) error, mutate func(*unitmodels.BloodUnit)) (*unitmodels.BloodUnit, error)
}

// RequestStore is the request access the engine needs.
type RequestStore interface {
	FindByID(ctx context.Context, requestID id.RequestID) (*requestmodels.BloodRequest, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*requestmodels.BloodRequest) error, mutate func(*requestmodels.BloodRequest)) (*requestmodels.BloodRequest, error)
}

// AuditPublisher records fulfillment activity, fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Outcome classifies an auto-fulfillment run.
type Outcome string

const (
	OutcomeFull    Outcome = "full"
	OutcomePartial Outcome = "partial"
	OutcomeNone    Outcome = "none"
)

// Result reports what an auto-fulfillment run achieved. A partial or empty
// result is a successful run that found too little inventory, not an error.
type Result struct {
	Request   id.RequestID
	Requested int
	Reserved  int
	Units     []id.UnitID
	Outcome   Outcome
}

// Engine reserves available inventory against blood requests.
type Engine struct {
	inventory InventoryStore
	requests  RequestStore
	notifier  notify.Notifier
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Engine) { e.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs the fulfillment engine.
func NewEngine(inventory InventoryStore, requests RequestStore, opts ...Option) *Engine {
	e := &Engine{
		inventory: inventory,
		requests:  requests,
		notifier:  notify.Noop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AutoFulfill reserves up to the request's remaining unit count from available
// inventory, oldest collection first, optionally scoped to one blood bank.
//
// Zero candidates reports OutcomeNone with nothing touched. Fewer candidates
// than needed reserves all of them and reports OutcomePartial. A single unit's
// reservation failure (typically lost to a concurrent writer) is logged and the
// engine moves to the next oldest candidate.
func (e *Engine) AutoFulfill(ctx context.Context, requestID id.RequestID, bank *id.BloodBankID) (*Result, error) {
	request, err := e.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "blood request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load blood request")
	}
	if err := request.CanAcceptUnits(); err != nil {
		return nil, err
	}

	needed := request.Remaining()
	acceptable := blood.AcceptableFrom(request.Group)
	candidates, err := e.inventory.ListAvailable(ctx, acceptable, bank, 0)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list available units")
	}

	now := requestcontext.Now(ctx)
	reserved := make([]id.UnitID, 0, needed)
	for _, candidate := range candidates {
		if len(reserved) == needed {
			break
		}
		_, err := e.inventory.Execute(ctx, candidate.ID,
			func(u *unitmodels.BloodUnit) error {
				if u.Expired(now) {
					return dErrors.New(dErrors.CodeInvariantViolation, "unit expired before reservation")
				}
				return u.CanChangeStatus(unitmodels.StatusReserved)
			},
			func(u *unitmodels.BloodUnit) {
				u.ApplyReservation(requestID, now)
			},
		)
		if err != nil {
			e.logger.DebugContext(ctx, "skipping unreservable unit",
				"unit_id", candidate.ID.String(),
				"request_id", requestID.String(),
				"error", err)
			continue
		}
		reserved = append(reserved, candidate.ID)
	}

	result := &Result{
		Request:   requestID,
		Requested: needed,
		Reserved:  len(reserved),
		Units:     reserved,
		Outcome:   classify(len(reserved), needed),
	}

	if len(reserved) > 0 {
		request, err = e.requests.Execute(ctx, requestID,
			func(r *requestmodels.BloodRequest) error { return r.CanAcceptUnits() },
			func(r *requestmodels.BloodRequest) { r.ApplyReservedUnits(reserved, now) },
		)
		if err != nil {
			// Units stay reserved for this request; the linkage write lost a
			// race with a status change. Surface it so the caller can retry.
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "failed to link reserved units to request")
		}
	}

	e.observe(ctx, request, result)
	return result, nil
}

func classify(reserved, needed int) Outcome {
	switch {
	case reserved == 0:
		return OutcomeNone
	case reserved < needed:
		return OutcomePartial
	default:
		return OutcomeFull
	}
}

// observe emits metrics, audit and the fulfilled notification. All best effort.
func (e *Engine) observe(ctx context.Context, request *requestmodels.BloodRequest, result *Result) {
	if e.metrics != nil {
		e.metrics.FulfillmentOutcomes.WithLabelValues(string(result.Outcome)).Inc()
		e.metrics.UnitsReserved.Add(float64(result.Reserved))
	}
	if e.auditor != nil && result.Reserved > 0 {
		e.auditor.Emit(ctx, audit.Event{
			Type:   audit.ActivityRequestFulfilled,
			Title:  "Units reserved against blood request",
			UserID: requestcontext.UserID(ctx),
			Metadata: map[string]string{
				"request_id": result.Request.String(),
				"reserved":   strconv.Itoa(result.Reserved),
				"requested":  strconv.Itoa(result.Requested),
				"outcome":    string(result.Outcome),
			},
		})
	}

	if request.Status != requestmodels.StatusFulfilled {
		return
	}
	err := e.notifier.RequestFulfilled(ctx, notify.FulfilledNote{
		Requester:     request.Institution,
		Request:       request.ID,
		BloodGroup:    request.Group.String(),
		FulfilledBy:   "inventory",
		UnitsReserved: result.Reserved,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "fulfilled notification dispatch failed",
			"request_id", request.ID.String(),
			"error", err)
	}
}
