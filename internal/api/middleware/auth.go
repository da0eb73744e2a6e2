package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"packetvault/internal/core/services"
)

type contextKey string

// CallerContextKey carries the authenticated service name through the request.
const CallerContextKey contextKey = "pv_caller"

type ServiceAuthMiddleware struct {
	Tokens   *services.TokenService
	Logger   *slog.Logger
	visitors sync.Map
}

func NewServiceAuthMiddleware(tokens *services.TokenService, logger *slog.Logger) *ServiceAuthMiddleware {
	m := &ServiceAuthMiddleware{Tokens: tokens, Logger: logger}
	go m.cleanupVisitors()
	return m
}

// ==============================================================================
// 1. Service Identity
// ==============================================================================

// RequireServiceToken gates the custodian endpoints: only callers holding a
// valid short-lived service token may generate or retrieve key material.
func (m *ServiceAuthMiddleware) RequireServiceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := m.extractToken(r)
		if tokenString == "" {
			http.Error(w, `{"message": "Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		caller, err := m.Tokens.Validate(tokenString)
		if err != nil {
			m.Logger.Warn("service token rejected", slog.String("error", err.Error()))
			http.Error(w, `{"message": "Invalid token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), CallerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ==============================================================================
// 2. DoS Protection
// ==============================================================================

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-IP token bucket. The ingest path is the hot one;
// 50 rps with burst 100 keeps a single noisy collector from starving the rest.
func (m *ServiceAuthMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Real-IP")
		if ip == "" {
			ip = r.RemoteAddr
		}

		v, _ := m.visitors.LoadOrStore(ip, &visitor{
			limiter:  rate.NewLimiter(rate.Limit(50), 100),
			lastSeen: time.Now(),
		})

		vis := v.(*visitor)
		vis.lastSeen = time.Now()

		if !vis.limiter.Allow() {
			http.Error(w, `{"message": "Rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *ServiceAuthMiddleware) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	for range ticker.C {
		m.visitors.Range(func(key, value any) bool {
			if time.Since(value.(*visitor).lastSeen) > 3*time.Minute {
				m.visitors.Delete(key)
			}
			return true
		})
	}
}

func (m *ServiceAuthMiddleware) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
