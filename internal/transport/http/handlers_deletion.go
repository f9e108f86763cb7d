package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lethe/internal/deletion/service"
	dErrors "lethe/pkg/domain-errors"
	"lethe/pkg/platform/httputil"
	"lethe/pkg/requestcontext"
)

// DeletionService is the slice of the deletion service the handler needs.
type DeletionService interface {
	RequestDeletion(ctx context.Context, input service.RequestDeletionInput) (*service.RequestDeletionResult, error)
}

// DeletionHandler exposes the manual intake operation.
type DeletionHandler struct {
	service DeletionService
	logger  *slog.Logger
}

func NewDeletionHandler(service DeletionService, logger *slog.Logger) *DeletionHandler {
	return &DeletionHandler{service: service, logger: logger}
}

// Register mounts the admin deletion endpoints on the router.
func (h *DeletionHandler) Register(r chi.Router) {
	r.Post("/admin/deletions", h.HandleRequestDeletion)
}

type requestDeletionRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

type requestDeletionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// HandleRequestDeletion handles POST /admin/deletions. It only enqueues the
// intent; the worker performs the deletion asynchronously.
func (h *DeletionHandler) HandleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "invalid request body"))
		return
	}

	result, err := h.service.RequestDeletion(ctx, service.RequestDeletionInput{
		UserID: req.UserID,
		Reason: req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "manual deletion request failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, requestDeletionResponse{
		Success: result.Success,
		Message: result.Message,
		UserID:  result.UserID,
	})
}
