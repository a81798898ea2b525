package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CommandHandler turns button presses into status change requests.
type CommandHandler struct {
	orders interfaces.StatusChanger
	logger logger.Logger
}

func NewCommandHandler(orders interfaces.StatusChanger, logger logger.Logger) *CommandHandler {
	return &CommandHandler{
		orders: orders,
		logger: logger,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *CommandHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Post("/accept", h.command(domain.StatusPreparing))
		r.Post("/ready", h.command(domain.StatusReady))
		r.Post("/complete", h.command(domain.StatusCompleted))
		r.Post("/cancel", h.command(domain.StatusCancelled))
	})
}

func (h *CommandHandler) command(status domain.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, "invalid order id", http.StatusBadRequest)
			return
		}

		fields := domain.StatusFields{ActorID: ActorFromContext(r.Context())}
		err = h.orders.RequestStatusChange(r.Context(), id, status, fields)
		if err != nil {
			code := statusCode(err)
			if code >= http.StatusInternalServerError {
				h.logger.Error("command_rejected", "Status change failed", middleware.GetReqID(r.Context()), map[string]interface{}{
					"order_id": id.String(),
					"status":   string(status),
				}, err)
			}
			respondError(w, err.Error(), code)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrCommandInFlight),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrTransitionRejected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
