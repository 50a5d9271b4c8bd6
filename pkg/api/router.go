package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /metrics - Prometheus metrics (404 when metrics are disabled)
//   - POST /api/v1/invocations - Run a web applet invocation
//   - GET /api/v1/contents - List registered archives
//   - POST /api/v1/contents - Register an archive
//   - DELETE /api/v1/contents/{store}/{title}/{category} - Unregister an archive
//   - GET /api/v1/cache - Offline cache status
//   - DELETE /api/v1/cache - Clear the offline cache
func NewRouter(invocations *InvocationHandler, contents *ContentHandler, cache *CacheHandler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthyResponse(nil))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/invocations", invocations.Invoke)

		r.Route("/contents", func(r chi.Router) {
			r.Get("/", contents.List)
			r.Post("/", contents.Register)
			r.Delete("/{store}/{title}/{category}", contents.Unregister)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", cache.Status)
			r.Delete("/", cache.Clear)
		})
	})

	return r
}

// requestLogger logs request start and completion using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log probe requests at DEBUG to avoid polluting logs
		if isProbePath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isProbePath(path string) bool {
	return path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/health/")
}
