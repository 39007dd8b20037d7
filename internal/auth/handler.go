// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	cookies   config.CookieConfig
	validator *validator.Validate
}

func NewHandler(service *Service, cookies config.CookieConfig) *Handler {
	return &Handler{
		service:   service,
		cookies:   cookies,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts /auth. limiter guards the credential endpoints and
// may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.HandleError(w, r, core.ValidationFailed(err))
		return
	}

	session, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.HandleError(w, r, core.AuthFailedError("invalid email or password"))
			return
		}
		core.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, session.Pair)
	core.OK(w, session.Response)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.HandleError(w, r, core.ValidationFailed(err))
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			core.HandleError(w, r, core.DuplicateError("email"))
			return
		}
		core.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, session.Pair)
	core.Created(w, session.Response)
}

// Refresh reads the token from the body, then the refresh cookie, then the
// refresh header.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	token := req.RefreshToken
	if token == "" {
		if c, err := r.Cookie(h.cookies.RefreshName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		token = r.Header.Get(middleware.RefreshTokenHeader)
	}
	if token == "" {
		core.HandleError(w, r, core.ValidationError("refresh token is required",
			core.FieldError{Field: "refreshToken", Message: "refreshToken is required"}))
		return
	}

	session, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, session.Pair)
	core.OK(w, session.Response)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.Logout(r.Context(), userID, middleware.GetClaims(r.Context())); err != nil {
		core.HandleError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	core.OK(w, map[string]string{"message": "logged out"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.HandleError(w, r, core.ValidationFailed(err))
		return
	}

	session, err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.HandleError(w, r, core.AuthFailedError("current password is incorrect"))
			return
		}
		core.HandleError(w, r, err)
		return
	}

	h.setSessionCookies(w, session.Pair)
	core.OK(w, session.Response)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, h.cookie(h.cookies.AccessName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.cookie(h.cookies.RefreshName, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{h.cookies.AccessName, h.cookies.RefreshName} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
