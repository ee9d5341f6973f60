package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Stack wraps the API mux with the server-wide middleware, outermost first.
// GET /ping answers before CORS and logging so load balancer probes stay quiet.
func Stack(logger *logrus.Logger, origins []string) func(next http.Handler) http.Handler {
	mws := chi.Chain(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Heartbeat("/ping"),
		CORS(origins),
		LogMiddleware(logger),
	)
	return mws.Handler
}
