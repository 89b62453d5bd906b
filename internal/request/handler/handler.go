// Package handler exposes blood request endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/blood"
	"bloodlink/internal/fulfillment"
	"bloodlink/internal/geo"
	"bloodlink/internal/request/models"
	"bloodlink/internal/request/service"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

// Service defines the request operations the handler needs.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*models.BloodRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
	OpenForDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodRequest, error)
	Approve(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
	Cancel(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
}

// Fulfiller runs auto-fulfillment against a request.
type Fulfiller interface {
	AutoFulfill(ctx context.Context, requestID id.RequestID, bank *id.BloodBankID) (*fulfillment.Result, error)
}

// Handler handles blood request endpoints.
type Handler struct {
	requests  Service
	fulfiller Fulfiller
	logger    *slog.Logger
}

// New creates the request Handler.
func New(requests Service, fulfiller Fulfiller, logger *slog.Logger) *Handler {
	return &Handler{requests: requests, fulfiller: fulfiller, logger: logger}
}

// Register registers the request routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/open", h.handleOpenForDonor)
		r.Get("/{requestID}", h.handleGet)
		r.Post("/{requestID}/approve", h.handleApprove)
		r.Post("/{requestID}/cancel", h.handleCancel)
		r.Post("/{requestID}/fulfill", h.handleFulfill)
	})
}

type createRequest struct {
	InstitutionID string    `json:"institution_id"`
	BloodGroup    string    `json:"blood_group"`
	UnitsRequired int       `json:"units_required"`
	Priority      string    `json:"priority"`
	RequiredBy    time.Time `json:"required_by"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	LocationLabel string    `json:"location_label"`
}

type requestResponse struct {
	ID             string    `json:"id"`
	InstitutionID  string    `json:"institution_id"`
	BloodGroup     string    `json:"blood_group"`
	UnitsRequired  int       `json:"units_required"`
	UnitsFulfilled int       `json:"units_fulfilled"`
	Priority       string    `json:"priority"`
	RequiredBy     time.Time `json:"required_by"`
	LocationLabel  string    `json:"location_label"`
	Status         string    `json:"status"`
	UnitIDs        []string  `json:"unit_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

func toResponse(request *models.BloodRequest) requestResponse {
	unitIDs := make([]string, 0, len(request.Units))
	for _, unitID := range request.Units {
		unitIDs = append(unitIDs, unitID.String())
	}
	return requestResponse{
		ID:             request.ID.String(),
		InstitutionID:  request.Institution.String(),
		BloodGroup:     request.Group.String(),
		UnitsRequired:  request.UnitsRequired,
		UnitsFulfilled: request.UnitsFulfilled,
		Priority:       string(request.Priority),
		RequiredBy:     request.RequiredBy,
		LocationLabel:  request.LocationLabel,
		Status:         string(request.Status),
		UnitIDs:        unitIDs,
		CreatedAt:      request.CreatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.InstitutionID == "" && requestcontext.RoleOf(ctx) == requestcontext.RoleInstitution {
		req.InstitutionID = requestcontext.ActorID(ctx)
	}
	institution, err := id.ParseInstitutionID(req.InstitutionID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid institution id"))
		return
	}
	group, err := blood.ParseGroup(req.BloodGroup)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.requests.Create(ctx, service.CreateParams{
		Institution:   institution,
		Group:         group,
		UnitsRequired: req.UnitsRequired,
		Priority:      models.Priority(req.Priority),
		RequiredBy:    req.RequiredBy,
		Location:      geo.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		LocationLabel: req.LocationLabel,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "blood request creation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request id"))
		return
	}
	request, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(request))
}

// handleOpenForDonor lists open requests the calling donor could serve.
func (h *Handler) handleOpenForDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, err := id.ParseDonorID(requestcontext.ActorID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not a donor"))
		return
	}
	open, err := h.requests.OpenForDonor(ctx, donorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(open))
	for _, request := range open {
		out = append(out, toResponse(request))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.Approve)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.RequestID) (*models.BloodRequest, error)) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request id"))
		return
	}
	request, err := op(r.Context(), requestID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(request))
}

type fulfillRequest struct {
	BloodBankID string `json:"blood_bank_id"`
}

type fulfillResponse struct {
	RequestID string   `json:"request_id"`
	Requested int      `json:"requested"`
	Reserved  int      `json:"reserved"`
	Outcome   string   `json:"outcome"`
	UnitIDs   []string `json:"unit_ids"`
}

// handleFulfill reserves available inventory against the request. Partial and
// empty results are 200s; the outcome field tells them apart.
func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request id"))
		return
	}

	var req fulfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	var bank *id.BloodBankID
	if req.BloodBankID != "" {
		parsed, err := id.ParseBloodBankID(req.BloodBankID)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood bank id"))
			return
		}
		bank = &parsed
	}

	result, err := h.fulfiller.AutoFulfill(ctx, requestID, bank)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	unitIDs := make([]string, 0, len(result.Units))
	for _, unitID := range result.Units {
		unitIDs = append(unitIDs, unitID.String())
	}
	shared.WriteJSON(w, http.StatusOK, fulfillResponse{
		RequestID: result.Request.String(),
		Requested: result.Requested,
		Reserved:  result.Reserved,
		Outcome:   string(result.Outcome),
		UnitIDs:   unitIDs,
	})
}
