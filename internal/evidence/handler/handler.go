// Package handler exposes evidence intake and the verification endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certreg/internal/evidence/models"
	id "certreg/pkg/domain"
	"certreg/pkg/platform/httputil"
	"certreg/pkg/requestcontext"
)

// Service defines the evidence operations the handler needs.
type Service interface {
	Verify(ctx context.Context, kind models.Kind, itemID id.EvidenceID, notes string) (*models.Item, error)
	Add(ctx context.Context, applicationID id.ApplicationID, kind models.Kind, payload any) (*models.Item, error)
	List(ctx context.Context, applicationID id.ApplicationID, kind *models.Kind) ([]*models.Item, error)
}

// Handler wires evidence endpoints to the evidence service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an evidence handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts evidence endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/verify-item", h.HandleVerify)
	r.Get("/applications/{applicationID}/evidence", h.HandleList)
	r.Post("/applications/{applicationID}/evidence", h.HandleAdd)
}

// HandleVerify handles POST /verification/verify-item.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	item, err := h.service.Verify(ctx, req.ParsedKind(), req.ParsedItemID(), req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestID,
			"item_type", req.ItemType,
			"item_id", req.ItemID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// HandleList handles GET /applications/{applicationID}/evidence with an
// optional kind filter.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var kind *models.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, err := models.ParseKind(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		kind = &parsed
	}

	items, err := h.service.List(ctx, applicationID, kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// HandleAdd handles POST /applications/{applicationID}/evidence.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	item, err := h.service.Add(ctx, applicationID, req.ParsedKind(), req.Payload())
	if err != nil {
		h.logger.WarnContext(ctx, "evidence intake failed",
			"request_id", requestID,
			"application_id", applicationID,
			"kind", req.Kind,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}
