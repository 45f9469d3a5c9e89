// Package handler is the thin HTTP layer over the escrow service. It parses
// and validates request bodies, translates coded domain errors to HTTP
// statuses, and keeps all business rules out of transport code.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"escrowd/internal/escrow/models"
	"escrowd/internal/platform/middleware"
	id "escrowd/pkg/domain"
	dErrors "escrowd/pkg/domain-errors"
	"escrowd/pkg/requestcontext"
)

// Service defines the escrow operations the handler depends on.
type Service interface {
	Create(ctx context.Context, buyerID, sellerID id.PartyID, amount int64, description string) (*models.Escrow, models.Event, error)
	Apply(ctx context.Context, escrowID id.EscrowID, action models.Action, performedBy id.PartyID, role models.Role, reason string) (*models.Escrow, models.Event, error)
	Get(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error)
	History(ctx context.Context, escrowID id.EscrowID) (models.History, error)
	List(ctx context.Context) ([]*models.Escrow, error)
}

// Handler serves the escrow endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates an escrow Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the escrow routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	er := chi.NewRouter()
	er.Use(middleware.Recovery(h.logger))
	er.Use(middleware.RequestID)
	er.Use(middleware.RequestTime)
	er.Use(middleware.Logger(h.logger))
	er.Use(middleware.ContentTypeJSON)
	er.Use(middleware.Timeout(30 * time.Second))

	er.Post("/escrows", h.handleCreate)
	er.Get("/escrows", h.handleList)
	er.Get("/escrows/{id}", h.handleGet)
	er.Get("/escrows/{id}/events", h.handleEvents)
	er.Post("/escrows/{id}/actions", h.handleApply)

	r.Mount("/", er)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	buyerID, err := id.ParsePartyID(req.BuyerID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "buyer_id must not be blank"))
		return
	}
	sellerID, err := id.ParsePartyID(req.SellerID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "seller_id must not be blank"))
		return
	}
	if req.Amount <= 0 {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "amount must be positive"))
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "description must not be empty"))
		return
	}

	escrow, event, err := h.service.Create(ctx, buyerID, sellerID, req.Amount, req.Description)
	if err != nil {
		h.logError(ctx, "create escrow failed", err)
		writeError(w, err)
		return
	}
	writeEscrow(w, http.StatusCreated, escrow, event)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid escrow id"))
		return
	}
	var req models.ApplyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	performedBy, err := id.ParsePartyID(req.PerformedBy)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "performed_by must not be blank"))
		return
	}

	escrow, event, err := h.service.Apply(ctx, escrowID, action, performedBy, role, req.Reason)
	if err != nil {
		h.logError(ctx, "apply action rejected", err)
		writeError(w, err)
		return
	}
	writeEscrow(w, http.StatusOK, escrow, event)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid escrow id"))
		return
	}
	escrow, err := h.service.Get(r.Context(), escrowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.EscrowResponse{Escrow: escrow})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid escrow id"))
		return
	}
	history, err := h.service.History(r.Context(), escrowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	escrows, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrows)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}

func writeEscrow(w http.ResponseWriter, status int, escrow *models.Escrow, event models.Event) {
	resp := models.EscrowResponse{Escrow: escrow}
	if raw, err := models.MarshalEvent(event); err == nil {
		resp.Event = raw
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), models.ErrorResponse{
		Error:   string(code),
		Message: err.Error(),
	})
}
