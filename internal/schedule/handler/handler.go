// Package handler exposes donation appointment endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/schedule"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

// Service defines the appointment operations the handler needs.
type Service interface {
	Book(ctx context.Context, params schedule.BookParams) (*schedule.DonationSchedule, error)
	Reschedule(ctx context.Context, scheduleID id.ScheduleID, date time.Time, rawSlot string) (*schedule.DonationSchedule, error)
	Confirm(ctx context.Context, scheduleID id.ScheduleID) (*schedule.DonationSchedule, error)
	Cancel(ctx context.Context, scheduleID id.ScheduleID) (*schedule.DonationSchedule, error)
	MarkNoShow(ctx context.Context, scheduleID id.ScheduleID) (*schedule.DonationSchedule, error)
	Complete(ctx context.Context, scheduleID id.ScheduleID, unitID id.UnitID) (*schedule.DonationSchedule, error)
	ForDonor(ctx context.Context, donorID id.DonorID) ([]*schedule.DonationSchedule, error)
}

// Handler handles appointment endpoints.
type Handler struct {
	schedules Service
	logger    *slog.Logger
}

// New creates the schedule Handler.
func New(schedules Service, logger *slog.Logger) *Handler {
	return &Handler{schedules: schedules, logger: logger}
}

// Register registers the appointment routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", h.handleBook)
		r.Get("/mine", h.handleMine)
		r.Patch("/{scheduleID}", h.handleReschedule)
		r.Post("/{scheduleID}/confirm", h.handleConfirm)
		r.Post("/{scheduleID}/cancel", h.handleCancel)
		r.Post("/{scheduleID}/no-show", h.handleNoShow)
		r.Post("/{scheduleID}/complete", h.handleComplete)
	})
}

type bookRequest struct {
	DonorID     string    `json:"donor_id"`
	BloodBankID string    `json:"blood_bank_id"`
	Date        time.Time `json:"date"`
	Slot        string    `json:"slot"`
}

type scheduleResponse struct {
	ID          string    `json:"id"`
	DonorID     string    `json:"donor_id"`
	BloodBankID string    `json:"blood_bank_id"`
	Date        string    `json:"date"`
	Slot        string    `json:"slot"`
	Status      string    `json:"status"`
	UnitID      string    `json:"unit_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(s *schedule.DonationSchedule) scheduleResponse {
	out := scheduleResponse{
		ID:          s.ID.String(),
		DonorID:     s.Donor.String(),
		BloodBankID: s.BloodBank.String(),
		Date:        s.Date.Format(time.DateOnly),
		Slot:        s.Slot.String(),
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
	}
	if s.Unit != nil {
		out.UnitID = s.Unit.String()
	}
	return out
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DonorID == "" && requestcontext.RoleOf(ctx) == requestcontext.RoleDonor {
		req.DonorID = requestcontext.ActorID(ctx)
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

	booked, err := h.schedules.Book(ctx, schedule.BookParams{
		Donor:     donorID,
		BloodBank: bankID,
		Date:      req.Date,
		RawSlot:   req.Slot,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "appointment booking rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(booked))
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, err := id.ParseDonorID(requestcontext.ActorID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not a donor"))
		return
	}
	schedules, err := h.schedules.ForDonor(ctx, donorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]scheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toResponse(s))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type rescheduleRequest struct {
	Date time.Time `json:"date"`
	Slot string    `json:"slot"`
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid schedule id"))
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	moved, err := h.schedules.Reschedule(r.Context(), scheduleID, req.Date, req.Slot)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(moved))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.schedules.Confirm)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.schedules.Cancel)
}

func (h *Handler) handleNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.schedules.MarkNoShow)
}

type completeRequest struct {
	UnitID string `json:"unit_id"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid schedule id"))
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	unitID, err := id.ParseUnitID(req.UnitID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid unit id"))
		return
	}
	completed, err := h.schedules.Complete(r.Context(), scheduleID, unitID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(completed))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.ScheduleID) (*schedule.DonationSchedule, error)) {
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid schedule id"))
		return
	}
	s, err := op(r.Context(), scheduleID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(s))
}
