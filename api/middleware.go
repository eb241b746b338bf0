package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
)

// OwnerHeader carries the authenticated tutor. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

type ctxKey int

const ownerKey ctxKey = iota

// RequireOwner rejects requests without an owner header and stores the owner
// in the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + OwnerHeader + " header"})
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, schedule.OwnerID(owner))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFrom returns the owner stored by RequireOwner.
func OwnerFrom(ctx context.Context) schedule.OwnerID {
	owner, _ := ctx.Value(ownerKey).(schedule.OwnerID)
	return owner
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
