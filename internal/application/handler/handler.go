// Package handler exposes the application workflow over HTTP. Handlers
// decode, delegate and encode; the service owns all workflow rules.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certreg/internal/application/models"
	"certreg/internal/application/store"
	"certreg/internal/audit"
	id "certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/httputil"
	"certreg/pkg/requestcontext"
)

// Service defines the application operations the handler needs.
type Service interface {
	Submit(ctx context.Context, applicantID id.ApplicantID, specializationID *id.SpecializationID, levelID *id.LevelID) (*models.Application, error)
	Get(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	List(ctx context.Context, filter store.Filter) ([]*models.Application, error)
	UpdateStatus(ctx context.Context, applicationID id.ApplicationID, next models.Status, reason string) (*models.Application, error)
	Progress(ctx context.Context, applicationID id.ApplicationID) (*models.VerificationProgress, error)
	History(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error)
}

// Handler wires application endpoints to the application service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an application handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts application endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.HandleSubmit)
	r.Get("/applications", h.HandleList)
	r.Get("/applications/{applicationID}", h.HandleGet)
	r.Post("/applications/{applicationID}/status", h.HandleUpdateStatus)
	r.Get("/applications/{applicationID}/progress", h.HandleProgress)
	r.Get("/applications/{applicationID}/verification-history", h.HandleHistory)
}

// HandleSubmit handles POST /applications.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	applicantID := req.ParsedApplicantID()
	if applicantID.IsZero() {
		// Applicants submit for themselves unless the body says otherwise.
		applicantID = id.ApplicantID(requestcontext.ActorID(ctx))
	}

	app, err := h.service.Submit(ctx, applicantID, req.ParsedSpecializationID(), req.ParsedLevelID())
	if err != nil {
		h.logger.ErrorContext(ctx, "application submission failed",
			"request_id", requestID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleGet handles GET /applications/{applicationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.service.Get(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	progress, err := h.service.Progress(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GetResponse{Application: app, Progress: FromProgress(progress)})
}

// HandleList handles GET /applications with optional status and
// applicant_id filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter store.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("applicant_id"); raw != "" {
		applicantID, err := id.ParseApplicantID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.ApplicantID = &applicantID
	}

	apps, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Applications: apps, Count: len(apps)})
}

// HandleUpdateStatus handles POST /applications/{applicationID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.UpdateStatus(ctx, applicationID, req.ParsedStatus(), req.Reason)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			h.logger.ErrorContext(ctx, "status update failed",
				"request_id", requestID,
				"application_id", applicationID,
				"status", req.Status,
				"error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleProgress handles GET /applications/{applicationID}/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	progress, err := h.service.Progress(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProgress(progress))
}

// HandleHistory handles GET /applications/{applicationID}/verification-history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.History(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}
