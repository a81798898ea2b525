package http

import (
	"net/http"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the viewer API. commands may be nil for read-only roles.
func NewRouter(board *BoardHandler, commands *CommandHandler, logger logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(ActorMiddleware)

	board.RegisterRoutes(r)
	if commands != nil {
		commands.RegisterRoutes(r)
	}
	return r
}
