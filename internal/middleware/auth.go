package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/pkg/response"
)

type contextKey string

const actorContextKey contextKey = "actor"

func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFrom returns the verified identity, or nil for anonymous requests.
func ActorFrom(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorContextKey).(*domain.Actor)
	return actor
}

func writeAuthError(w http.ResponseWriter, status int, code domain.ErrorCode, message string, debug string) {
	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		response.JSON(w, status, map[string]any{
			"success": false,
			"error":   code,
			"message": message,
			"debug":   debug,
		})
		return
	}
	response.Error(w, status, string(code), message)
}

// actorFromRequest verifies the bearer token. ok is false only when a token was sent and
// failed verification.
func actorFromRequest(r *http.Request, jwtSecret string) (actor *domain.Actor, ok bool, reason string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, true, ""
	}
	claims, err := auth.VerifyAccessToken(auth.ParseBearerToken(header), jwtSecret)
	if err != nil {
		return nil, false, err.Error()
	}
	actor, err = claims.Actor()
	if err != nil {
		return nil, false, err.Error()
	}
	return actor, true, ""
}

// Authenticate requires a valid bearer token.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok, reason := actorFromRequest(r, jwtSecret)
			if !ok || actor == nil {
				writeAuthError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Authorization token required", reason)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// OptionalAuth attaches the actor when a token is present. Guests placing orders with a
// session proof arrive without one.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok, reason := actorFromRequest(r, jwtSecret)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Invalid token", reason)
				return
			}
			if actor != nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability checks the capability mapped to the route prefix. It runs after
// Authenticate; services repeat the check for their own callers.
func RequireCapability() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capability := auth.GetCapabilityForAPI(r.URL.Path, r.Method)
			if capability == nil {
				next.ServeHTTP(w, r)
				return
			}
			actor := ActorFrom(r.Context())
			if actor == nil {
				writeAuthError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Authorization token required", "")
				return
			}
			if !auth.HasCapability(actor.Role, *capability) {
				writeAuthError(w, http.StatusForbidden, domain.ErrCodeForbidden, "You do not have permission to access this resource", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
