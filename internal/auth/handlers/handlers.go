// Package handlers implements the authentication endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clarity-ai/backend/internal/auth"
	"github.com/clarity-ai/backend/internal/auth/middleware"
	"github.com/clarity-ai/backend/internal/logger"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/clarity-ai/backend/internal/store"
	"github.com/clarity-ai/backend/internal/utils"
	"go.uber.org/zap"
)

// Handler handles auth-related HTTP requests
type Handler struct {
	svc *auth.Service
}

// NewHandler creates a new Handler instance
func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// HandleLogin handles POST /api/auth/login. A 2FA-enabled account gets
// {"requires2FA": true} and no token; the token stays escrowed until the
// code is verified.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		utils.WriteHTTPError(w, utils.Validation("Email and password are required"))
		return
	}

	result, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	if result.Requires2FA {
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"requires2FA": true})
		return
	}
	utils.WriteJSON(w, http.StatusOK, sessionResponse(result))
}

// HandleSignup handles POST /api/auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.FirstName == "" || body.LastName == "" || body.Email == "" || body.Password == "" {
		utils.WriteHTTPError(w, utils.Validation("All fields are required"))
		return
	}

	if err := h.svc.SignUp(r.Context(), body.FirstName, body.LastName, body.Email, body.Password); err != nil {
		h.writeAuthError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// HandleSendCode handles POST /api/auth/send-2fa-code. The optional
// access_token is escrowed with the fresh challenge, so the endpoint can be
// called for a session that predates 2FA being enabled.
func (h *Handler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Email       string `json:"email"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		utils.WriteHTTPError(w, utils.Validation("email required"))
		return
	}

	if err := h.svc.SendCode(r.Context(), body.Email, body.AccessToken); err != nil {
		h.writeAuthError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// HandleVerifyCode handles POST /api/auth/verify-2fa.
func (h *Handler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Code == "" {
		utils.WriteHTTPError(w, utils.Validation("Email and code are required"))
		return
	}

	result, err := h.svc.VerifyCode(r.Context(), body.Email, body.Code)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sessionResponse(result))
}

// HandleUser handles GET and PATCH on /api/auth/user for the identity the
// bearer token resolved to.
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		utils.WriteHTTPError(w, utils.Unauthenticated("Unauthorized"))
		return
	}
	identity := &auth.Identity{ID: info.UserID, Email: info.Email}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.svc.CurrentProfile(r.Context(), identity)
		if err != nil {
			if errors.Is(err, store.ErrNoProfile) {
				// A valid identity without a profile row reads as null, not 404.
				utils.WriteJSON(w, http.StatusOK, nil)
				return
			}
			h.writeAuthError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, profile)

	case http.MethodPatch:
		var body struct {
			FirstName       *string `json:"firstName"`
			LastName        *string `json:"lastName"`
			TwoFAEnabled    *bool   `json:"two_fa_enabled"`
			CurrentPassword string  `json:"currentPassword"`
			NewPassword     string  `json:"newPassword"`
			Email           string  `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.WriteHTTPError(w, utils.Validation("Invalid request body"))
			return
		}

		err := h.svc.UpdateUser(r.Context(), identity, auth.UpdateParams{
			FirstName:       body.FirstName,
			LastName:        body.LastName,
			TwoFAEnabled:    body.TwoFAEnabled,
			CurrentPassword: body.CurrentPassword,
			NewPassword:     body.NewPassword,
			Email:           body.Email,
		})
		if err != nil {
			h.writeAuthError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// sessionResponse is the wire shape shared by login and verify success.
func sessionResponse(result *auth.LoginResult) map[string]interface{} {
	return map[string]interface{}{
		"access_token": result.SessionToken,
		"user":         result.Profile,
	}
}

// authError maps service failures onto the response taxonomy. Provider
// rejections stay generic so the API does not leak which part failed.
func authError(err error) *utils.HTTPError {
	var upstream *provider.UpstreamError

	switch {
	case errors.Is(err, provider.ErrInvalidCredentials):
		return utils.Unauthenticated("Invalid email or password.")
	case errors.Is(err, auth.ErrWrongPassword):
		return utils.Unauthenticated("Current password is incorrect.")
	case errors.Is(err, auth.ErrBadCode):
		return utils.Unauthenticated("Invalid or expired code.")
	case errors.Is(err, provider.ErrUserExists):
		return utils.Conflict("An account with this email already exists.")
	case errors.Is(err, store.ErrNoProfile):
		return utils.NotFound("User not found")
	case errors.Is(err, auth.ErrPasswordTooShort):
		return utils.Validation("Password must be at least 6 characters")
	case errors.As(err, &upstream):
		// Client-level provider statuses pass through; server-level ones
		// collapse into a generic 500.
		if upstream.Status < 500 {
			return utils.Upstream(upstream.Status, upstream.Message, err)
		}
		logger.Error("identity provider failure", zap.Error(err))
		return utils.Internal(err)
	default:
		logger.Error("auth operation failed", zap.Error(err))
		return utils.Internal(err)
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	utils.WriteHTTPError(w, authError(err))
}
