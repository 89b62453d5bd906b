// Package handler exposes blood unit endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/blood"
	"bloodlink/internal/transport/http/shared"
	"bloodlink/internal/unit/models"
	"bloodlink/internal/unit/service"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

// Service defines the unit operations the handler needs.
type Service interface {
	RegisterDonation(ctx context.Context, params service.RegisterParams) (*models.BloodUnit, error)
	ManageStatus(ctx context.Context, unitID id.UnitID, requested models.Status, meta service.StatusMeta) (*models.BloodUnit, error)
	Get(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.BloodUnit, error)
	DonationStatsByMonth(ctx context.Context, year int) (*service.MonthlyStats, error)
}

// Handler handles blood unit endpoints.
type Handler struct {
	units  Service
	logger *slog.Logger
}

// New creates the unit Handler.
func New(units Service, logger *slog.Logger) *Handler {
	return &Handler{units: units, logger: logger}
}

// Register registers the unit routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/units", func(r chi.Router) {
		r.Post("/", h.handleRegister)
		r.Get("/", h.handleList)
		r.Get("/{unitID}", h.handleGet)
		r.Patch("/{unitID}/status", h.handleStatus)
	})
	r.Get("/stats/donations", h.handleStats)
}

type registerRequest struct {
	DonorID     string    `json:"donor_id"`
	BloodBankID string    `json:"blood_bank_id"`
	BloodGroup  string    `json:"blood_group"`
	Product     string    `json:"product"`
	VolumeML    int       `json:"volume_ml"`
	CollectedAt time.Time `json:"collected_at"`
}

type unitResponse struct {
	ID          string     `json:"id"`
	DonorID     string     `json:"donor_id"`
	BloodBankID string     `json:"blood_bank_id"`
	BloodGroup  string     `json:"blood_group"`
	Product     string     `json:"product"`
	VolumeML    int        `json:"volume_ml"`
	CollectedAt time.Time  `json:"collected_at"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ReservedFor string     `json:"reserved_for,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

func toResponse(unit *models.BloodUnit) unitResponse {
	out := unitResponse{
		ID:          unit.ID.String(),
		DonorID:     unit.Donor.String(),
		BloodBankID: unit.BloodBank.String(),
		BloodGroup:  unit.Group.String(),
		Product:     string(unit.Product),
		VolumeML:    unit.VolumeML,
		CollectedAt: unit.CollectedAt,
		Status:      string(unit.Status),
		ExpiryDate:  unit.ExpiryDate,
	}
	if unit.ReservedFor != nil {
		out.ReservedFor = unit.ReservedFor.String()
	}
	if unit.Dispatch != nil {
		out.Destination = unit.Dispatch.Destination
		out.Reason = unit.Dispatch.Reason
	}
	return out
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	donorID, err := id.ParseDonorID(req.DonorID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid donor id"))
		return
	}
	bankID, err := id.ParseBloodBankID(req.BloodBankID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood bank id"))
		return
	}
	group, err := blood.ParseGroup(req.BloodGroup)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	unit, err := h.units.RegisterDonation(ctx, service.RegisterParams{
		Donor:       donorID,
		BloodBank:   bankID,
		Group:       group,
		Product:     blood.ProductType(req.Product),
		VolumeML:    req.VolumeML,
		CollectedAt: req.CollectedAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "donation registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(unit))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "unitID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid unit id"))
		return
	}
	unit, err := h.units.Get(r.Context(), unitID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(unit))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	units, err := h.units.ListByStatus(r.Context(), status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]unitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, toResponse(unit))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type statusRequest struct {
	Status      string `json:"status"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, err := id.ParseUnitID(chi.URLParam(r, "unitID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid unit id"))
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	unit, err := h.units.ManageStatus(ctx, unitID, models.Status(req.Status), service.StatusMeta{
		Destination: req.Destination,
		Reason:      req.Reason,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(unit))
}

type statsResponse struct {
	Year   int         `json:"year"`
	Counts map[int]int `json:"counts_by_month"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "year query parameter is required"))
		return
	}
	stats, err := h.units.DonationStatsByMonth(r.Context(), year)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	counts := make(map[int]int, len(stats.Counts))
	for month, count := range stats.Counts {
		counts[int(month)] = count
	}
	shared.WriteJSON(w, http.StatusOK, statsResponse{Year: stats.Year, Counts: counts})
}
