package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tneaboard/internal/httputil"
	"tneaboard/internal/model"
	"tneaboard/internal/service"
	"tneaboard/internal/transport/http/middleware"
)

// AuthHandler groups session lifecycle endpoints and their dependencies.
type AuthHandler struct {
	sessionService *service.SessionService
	tokenService   *service.TokenService
}

// NewAuthHandler wires dependencies for session endpoints.
func NewAuthHandler(sessionService *service.SessionService, tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{
		sessionService: sessionService,
		tokenService:   tokenService,
	}
}

// Login authenticates a user and claims their single session slot.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" {
		httputil.WriteBadRequest(w, "Mobile number is required")
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "Password is required")
		return
	}

	// Clients keep their device token across logins; a fresh client gets one
	// minted here and must persist the echoed value.
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	if err := h.sessionService.Login(r.Context(), mobile, req.Password, deviceID); err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, "Invalid mobile number or password")
		case errors.Is(err, model.ErrDeviceConflict):
			httputil.WriteConflictWithCode(w, model.CodeDeviceConflict, "User already logged in on another device")
		default:
			httputil.WriteInternalError(w, "Login failed")
		}
		return
	}

	token, err := h.tokenService.Issue(mobile, deviceID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to issue access token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.LoginResponse{
		AccessToken: token,
		DeviceID:    deviceID,
		ExpiresIn:   int(h.sessionService.Timeout().Seconds()),
	})
}

// Heartbeat refreshes the caller's session explicitly. The middleware already
// refreshed it for this request, so the handler just reports what it saw.
// POST /auth/heartbeat
func (h *AuthHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	remaining, ok := middleware.GetRemainingFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.HeartbeatResponse{
		Remaining: int(remaining.Seconds()),
	})
}

// Logout releases the caller's session slot. Idempotent: logging out an
// already-expired session still succeeds.
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, deviceID, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.sessionService.Logout(r.Context(), identity, deviceID); err != nil {
		httputil.WriteInternalError(w, "Logout failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Session describes the caller's current session without refreshing it.
// GET /session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, deviceID, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	info, err := h.sessionService.Describe(r.Context(), identity, deviceID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSessionExpired):
			httputil.WriteUnauthorizedWithCode(w, model.CodeSessionExpired, "Session expired. Please log in again.")
		case errors.Is(err, model.ErrDeviceMismatch):
			httputil.WriteUnauthorizedWithCode(w, model.CodeDeviceMismatch, "Session taken over by another device")
		default:
			httputil.WriteInternalError(w, "Failed to describe session")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, info)
}
