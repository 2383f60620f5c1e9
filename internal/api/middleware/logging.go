// logging.go — журнал HTTP-запросов SLR-сервиса в slog.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger пишет одну запись на запрос. Уровень: ERROR для 5xx,
// WARN для 4xx, иначе INFO; служебные /health/ и /metrics — DEBUG.
// route — шаблон маршрута chi (/api/v1/slr/{slr_id}/download),
// user_id — значение X-User-ID как пришло от шлюза.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			logger.LogAttrs(r.Context(), requestLevel(r.URL.Path, status), "HTTP запрос",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("user_id", r.Header.Get(HeaderUserID)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/") || path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// statusOf — статус ответа; 200, если обработчик не вызвал WriteHeader.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// routePattern — шаблон маршрута chi или нормализованный путь вне роутера.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}
