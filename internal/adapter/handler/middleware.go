package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerAPIKey    = "X-API-Key"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
	adminKey
)

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func isAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(adminKey).(bool)
	return ok
}

// RequestID propagates X-Request-ID, generating one when the caller did not.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func Logger(logger log.Logger) func(http.Handler) http.Handler {
	helper := log.NewHelper(log.With(logger, "module", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			helper.Infow(
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
			)
		})
	}
}

// Identity trusts the user id injected by the authentication gateway and
// recognises the admin API key. It decides nothing; Authorize does.
func Identity(adminAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerUserID)), 10, 64); err == nil && id > 0 {
				ctx = context.WithValue(ctx, userIDKey, id)
			}
			key := r.Header.Get(headerAPIKey)
			if adminAPIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminAPIKey)) == 1 {
				ctx = context.WithValue(ctx, adminKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Authorize(authz *Authorizer, logger log.Logger) func(http.Handler) http.Handler {
	helper := log.NewHelper(log.With(logger, "module", "http/authz"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			allowed, err := authz.Allow(r.Context(), AccessRequest{
				Method: r.Method,
				Path:   r.URL.Path,
				UserID: userID,
				Admin:  isAdmin(r.Context()),
			})
			if err != nil {
				helper.Errorw("msg", "policy evaluation failed", "path", r.URL.Path, "err", err)
				writeJSON(w, http.StatusInternalServerError, MessageHTTPResponse{Message: "internal error"})
				return
			}
			if !allowed {
				status := http.StatusUnauthorized
				if strings.HasPrefix(r.URL.Path, "/admin/") {
					status = http.StatusForbidden
				}
				writeJSON(w, status, MessageHTTPResponse{Message: strings.ToLower(http.StatusText(status))})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h so the first middleware runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewHTTPServerHandler assembles the routes behind the standard middleware.
func NewHTTPServerHandler(h *HTTPHandler, authz *Authorizer, adminAPIKey string, logger log.Logger) http.Handler {
	return Chain(h.Routes(),
		RequestID,
		Logger(logger),
		Identity(adminAPIKey),
		Authorize(authz, logger),
	)
}
