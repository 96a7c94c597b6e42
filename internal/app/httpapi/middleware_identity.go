package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/localloop/marketplace/internal/app/services/discovery"
)

type ctxKey int

const ctxIdentityKey ctxKey = iota

// identity is the acting user and business, as asserted by the upstream
// gateway. The API never authenticates users itself.
type identity struct {
	UserID     string
	BusinessID string
}

func identityFrom(ctx context.Context) identity {
	if id, ok := ctx.Value(ctxIdentityKey).(identity); ok {
		return id
	}
	return identity{}
}

func actorFrom(ctx context.Context) discovery.Actor {
	id := identityFrom(ctx)
	return discovery.Actor{UserID: id.UserID, BusinessID: id.BusinessID}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withIdentity extracts the identity headers into the request context and
// records each request in the audit log.
func (h *handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity{
			UserID:     strings.TrimSpace(r.Header.Get("X-User-ID")),
			BusinessID: strings.TrimSpace(r.Header.Get("X-Business-ID")),
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), ctxIdentityKey, id)))

		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			UserID:     id.UserID,
			BusinessID: id.BusinessID,
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     recorder.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}
