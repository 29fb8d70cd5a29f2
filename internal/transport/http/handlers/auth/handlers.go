package authhandler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"peopleops/internal/domain/auth"
	"peopleops/internal/domain/rbac"
	cryptoutil "peopleops/internal/platform/crypto"
	"peopleops/internal/platform/requestctx"
	"peopleops/internal/transport/http/api"
	"peopleops/internal/transport/http/middleware"
	"peopleops/internal/transport/http/shared"
)

type Handler struct {
	Store       *auth.Store
	Engine      *rbac.Engine
	Crypto      *cryptoutil.Service
	Secret      string
	TokenTTL    time.Duration
	AllowSignup bool
}

func NewHandler(store *auth.Store, engine *rbac.Engine, crypto *cryptoutil.Service, secret string, tokenTTL time.Duration, allowSignup bool) *Handler {
	return &Handler{
		Store:       store,
		Engine:      engine,
		Crypto:      crypto,
		Secret:      secret,
		TokenTTL:    tokenTTL,
		AllowSignup: allowSignup,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/mfa/setup", h.HandleMFASetup)
	r.Post("/auth/mfa/verify", h.HandleMFAVerify)
	r.Post("/auth/mfa/disable", h.HandleMFADisable)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	if !h.AllowSignup {
		api.Fail(w, http.StatusForbidden, "signup_disabled", "self signup is disabled", reqID)
		return
	}

	var payload registerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	if !strings.Contains(payload.Email, "@") {
		v.Add("email", "must be a valid email address")
	}
	if len(payload.Password) < 10 {
		v.Add("password", "must be at least 10 characters")
	}
	if v.Reject(w, reqID) {
		return
	}

	if _, err := h.Store.FindUserByEmail(r.Context(), payload.Email); err == nil {
		api.Fail(w, http.StatusConflict, "email_taken", "email already registered", reqID)
		return
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		api.Fail(w, http.StatusInternalServerError, "registration_failed", "registration failed", reqID)
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "registration_failed", "registration failed", reqID)
		return
	}
	userID, err := h.Store.CreateUser(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), hash)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "registration_failed", "registration failed", reqID)
		return
	}

	res := h.Engine.AssignDefaultRole(r.Context(), userID)
	if !res.Success {
		api.Fail(w, http.StatusInternalServerError, "registration_failed", res.Message, reqID)
		return
	}

	api.Created(w, map[string]any{
		"id":    userID,
		"email": payload.Email,
		"role":  res.Role.RoleName,
	}, reqID)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	user, err := h.Store.FindUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)))
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	if user.MFAEnabled {
		if payload.MFACode == "" {
			api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", reqID)
			return
		}
		secret, err := h.mfaSecret(user.MFASecretEnc)
		if err != nil || secret == "" || !totp.Validate(payload.MFACode, secret) {
			api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", reqID)
			return
		}
	}

	// Users who lost their active role get the default back at login; the
	// engine returns the existing assignment for everyone else.
	role := h.Engine.ActiveRole(r.Context(), user.ID)
	if role == nil {
		res := h.Engine.AssignDefaultRole(r.Context(), user.ID)
		if res.Success {
			role = res.Role
		}
	}
	roleName := ""
	if role != nil {
		roleName = role.RoleName
	}

	sessionID, err := generateSessionID()
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}
	expires := time.Now().Add(h.TokenTTL)
	if err := h.Store.CreateSession(r.Context(), user.ID, auth.HashToken(sessionID), expires); err != nil {
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to start session", reqID)
		return
	}
	_ = h.Store.UpdateLastLogin(r.Context(), user.ID)

	token, err := auth.GenerateToken(h.Secret, auth.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		RoleName:  roleName,
		SessionID: sessionID,
	}, h.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"role":  roleName,
		},
	}, reqID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if user.SessionID != "" {
		if err := h.Store.RevokeSession(r.Context(), user.UserID, auth.HashToken(user.SessionID)); err != nil {
			api.Fail(w, http.StatusInternalServerError, "logout_failed", "failed to revoke session", reqID)
			return
		}
	}
	api.Success(w, map[string]any{"loggedOut": true}, reqID)
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "peopleops",
		AccountName: user.Email,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to generate mfa secret", reqID)
		return
	}

	secretEnc, err := h.Crypto.EncryptString(key.Secret())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to store mfa secret", reqID)
		return
	}
	if err := h.Store.UpdateMFASecret(r.Context(), user.UserID, secretEnc); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to store mfa secret", reqID)
		return
	}

	api.Success(w, map[string]any{
		"secret": key.Secret(),
		"url":    key.URL(),
	}, reqID)
}

func (h *Handler) HandleMFAVerify(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "mfa code required", reqID)
		return
	}

	secretEnc, err := h.Store.GetMFASecret(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "mfa_not_setup", "mfa setup required first", reqID)
		return
	}
	secret, err := h.mfaSecret(secretEnc)
	if err != nil || secret == "" {
		api.Fail(w, http.StatusBadRequest, "mfa_not_setup", "mfa setup required first", reqID)
		return
	}
	if !totp.Validate(payload.Code, secret) {
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", reqID)
		return
	}

	if err := h.Store.SetMFAEnabled(r.Context(), user.UserID, true); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_verify_failed", "failed to enable mfa", reqID)
		return
	}
	api.Success(w, map[string]any{"mfaEnabled": true}, reqID)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "mfa code required", reqID)
		return
	}

	secretEnc, err := h.Store.GetMFASecret(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "mfa_not_setup", "mfa is not enabled", reqID)
		return
	}
	secret, err := h.mfaSecret(secretEnc)
	if err != nil || secret == "" || !totp.Validate(payload.Code, secret) {
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", reqID)
		return
	}

	if err := h.Store.SetMFAEnabled(r.Context(), user.UserID, false); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_disable_failed", "failed to disable mfa", reqID)
		return
	}
	api.Success(w, map[string]any{"mfaEnabled": false}, reqID)
}

func (h *Handler) mfaSecret(secretEnc []byte) (string, error) {
	if h.Crypto != nil && h.Crypto.Configured() {
		return h.Crypto.DecryptString(secretEnc)
	}
	return string(secretEnc), nil
}

func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
