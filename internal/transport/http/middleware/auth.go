package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tneaboard/internal/httputil"
	"tneaboard/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	identityKey  contextKey = "identity"
	deviceIDKey  contextKey = "device_id"
	remainingKey contextKey = "remaining"
)

// SessionValidator refreshes a session's liveness. Satisfied by
// service.SessionService; an interface here avoids the import cycle and keeps
// the middleware testable.
type SessionValidator interface {
	Heartbeat(ctx context.Context, identity, deviceID string) (time.Duration, error)
}

// SessionMiddleware validates the bearer token and heartbeats the session
// registry on every request. The JWT only names who is calling from which
// device; the registry decides whether that session is still live.
// Checks the Authorization header first, then falls back to a cookie.
func SessionMiddleware(jwtSecret string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				cookie, err := r.Cookie("access_token")
				if err == nil && cookie.Value != "" {
					tokenString = cookie.Value
				}
			}

			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			identity, _ := claims["sub"].(string)
			deviceID, _ := claims["did"].(string)
			if identity == "" || deviceID == "" {
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid token claims")
				return
			}

			remaining, err := sessions.Heartbeat(r.Context(), identity, deviceID)
			if err != nil {
				switch err {
				case model.ErrSessionExpired:
					httputil.WriteUnauthorizedWithCode(w, model.CodeSessionExpired, "Session expired. Please log in again.")
				case model.ErrDeviceMismatch:
					httputil.WriteUnauthorizedWithCode(w, model.CodeDeviceMismatch, "Session taken over by another device. Please log in again.")
				default:
					httputil.WriteInternalError(w, "Failed to validate session")
				}
				return
			}

			w.Header().Set("X-Session-Remaining", strconv.Itoa(int(remaining.Seconds())))

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, deviceIDKey, deviceID)
			ctx = context.WithValue(ctx, remainingKey, remaining)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext extracts the authenticated identity and device token.
func GetSessionFromContext(ctx context.Context) (identity, deviceID string, ok bool) {
	identity, iok := ctx.Value(identityKey).(string)
	deviceID, dok := ctx.Value(deviceIDKey).(string)
	return identity, deviceID, iok && dok
}

// GetRemainingFromContext extracts the time the session had left before this
// request's heartbeat refreshed it.
func GetRemainingFromContext(ctx context.Context) (time.Duration, bool) {
	remaining, ok := ctx.Value(remainingKey).(time.Duration)
	return remaining, ok
}
