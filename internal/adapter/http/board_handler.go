package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const defaultKeepalive = 30 * time.Second

// BoardHandler serves the scheduled board and the customer-facing lookups.
type BoardHandler struct {
	board     interfaces.BoardService
	tracking  interfaces.TrackingService
	logger    logger.Logger
	keepalive time.Duration
}

func NewBoardHandler(board interfaces.BoardService, tracking interfaces.TrackingService, logger logger.Logger) *BoardHandler {
	return &BoardHandler{
		board:     board,
		tracking:  tracking,
		logger:    logger,
		keepalive: defaultKeepalive,
	}
}

func (h *BoardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/board", h.Board)
	r.Get("/board/stream", h.Stream)
	r.Get("/board/summary", h.Summary)
	r.Get("/tickets/{number}", h.Ticket)
}

// Health reports 200 even while the feed is down; the body says which.
func (h *BoardHandler) Health(w http.ResponseWriter, r *http.Request) {
	b := h.board.Latest()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"connected": b.Connected,
	})
}

func (h *BoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.board.Latest())
}

func (h *BoardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tracking.Summary())
}

func (h *BoardHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	t, err := h.tracking.TicketByNumber(chi.URLParam(r, "number"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			respondError(w, "order not found", http.StatusNotFound)
			return
		}
		respondError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Stream pushes one "board" event per tick until the client leaves or the
// scheduler stops.
func (h *BoardHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.NewString()
	requestID := middleware.GetReqID(r.Context())
	updates := h.board.Subscribe(subscriberID)
	defer h.board.Unsubscribe(subscriberID)

	h.logger.Debug("sse_connected", "Board stream opened", requestID, map[string]interface{}{
		"subscriber_id": subscriberID,
	})

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("sse_disconnected", "Board stream closed by client", requestID, map[string]interface{}{
				"subscriber_id": subscriberID,
			})
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()

		case b, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(b)
			if err != nil {
				h.logger.Error("sse_encode_failed", "Failed to encode board", requestID, nil, err)
				continue
			}
			fmt.Fprintf(w, "event: board\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
