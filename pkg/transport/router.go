package transport

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/auth"
)

// NewRouter configures the chi router for the broadcast endpoint.
//
// Routes:
//   - GET /health - liveness probe, unauthenticated
//   - GET /broadcast/{id} - serialized broadcast bytes, authenticated when
//     the security context requires it
func NewRouter(dir string, secctx auth.SecurityContext) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/broadcast", func(r chi.Router) {
		r.Use(secctx.Middleware)
		r.Get("/{id}", serveBroadcastFile(dir))
	})

	return r
}

// serveBroadcastFile returns a handler serving the file backing one
// broadcast identifier out of the registry directory.
func serveBroadcastFile(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idParam := chi.URLParam(r, "id")
		id, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil {
			http.Error(w, "invalid broadcast id", http.StatusBadRequest)
			return
		}

		path := filepath.Join(dir, FileName(id))
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, path)
	}
}

// FileName derives the deterministic file name for a broadcast identifier.
func FileName(id int64) string {
	return "broadcast_" + strconv.FormatInt(id, 10)
}

// IDSegment renders a broadcast identifier as a URL path segment.
func IDSegment(id int64) string {
	return strconv.FormatInt(id, 10)
}

// requestLogger logs every request through the process logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("broadcast request served",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
