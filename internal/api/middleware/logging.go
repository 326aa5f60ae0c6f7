package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// requestMeta collects fields that are only known after inner middleware
// runs, so the access log can report the authenticated user.
type requestMeta struct {
	userID string
}

type requestMetaKey struct{}

// Logger returns the access log middleware. Log level follows the
// response status; health checks and metrics scrapes log at debug so
// steady-state polling does not drown out real traffic.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			meta := &requestMeta{}
			r = r.WithContext(context.WithValue(r.Context(), requestMetaKey{}, meta))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				var ev *zerolog.Event
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					ev = logger.Error()
				case ww.Status() >= http.StatusBadRequest:
					ev = logger.Warn()
				case r.URL.Path == "/health" || r.URL.Path == "/metrics":
					ev = logger.Debug()
				default:
					ev = logger.Info()
				}

				ev = ev.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr)
				if meta.userID != "" {
					ev = ev.Str("user_id", meta.userID)
				}
				ev.Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// annotateRequestUser records the authenticated user for the access log.
// No-op when the logger did not wrap this request.
func annotateRequestUser(ctx context.Context, userID string) {
	if meta, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		meta.userID = userID
	}
}
