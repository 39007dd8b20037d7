// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.GetMe(r.Context(), middleware.GetUserID(r.Context())))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[UpdateUserRequest](w, r, h.validator)
	if !ok {
		return
	}

	h.respond(w, r)(h.service.UpdateMe(r.Context(), middleware.GetUserID(r.Context()), req))
}

// RegisterAdminRoutes registers admin-only user management endpoints.
// Accounts are never hard deleted; deactivation is the removal path.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}/role", h.UpdateUserRole)
		r.Put("/{userID}/active", h.UpdateUserActive)
		r.Put("/{userID}/verified", h.UpdateUserVerified)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
		Search: q.Get("search"),
		Role:   q.Get("role"),
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			core.BadRequest(w, "active must be a boolean")
			return
		}
		params.Active = &active
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.Limit, total)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.GetUser(r.Context(), chi.URLParam(r, "userID")))
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[UpdateUserRoleRequest](w, r, h.validator)
	if !ok {
		return
	}

	h.respond(w, r)(h.service.UpdateUserRole(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "userID"),
		req.Role,
	))
}

func (h *Handler) UpdateUserActive(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[UpdateUserActiveRequest](w, r, h.validator)
	if !ok {
		return
	}

	h.respond(w, r)(h.service.SetUserActive(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "userID"),
		*req.Active,
	))
}

func (h *Handler) UpdateUserVerified(w http.ResponseWriter, r *http.Request) {
	req, ok := bind[UpdateUserVerifiedRequest](w, r, h.validator)
	if !ok {
		return
	}

	h.respond(w, r)(h.service.SetUserVerified(r.Context(), chi.URLParam(r, "userID"), *req.Verified))
}

// respond writes a single user or the error from the call producing it.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) func(*User, error) {
	return func(u *User, err error) {
		if err != nil {
			core.HandleError(w, r, err)
			return
		}
		core.OK(w, ToUserResponse(u))
	}
}

// bind decodes and validates a JSON body, writing the 400 itself on failure.
func bind[T any](w http.ResponseWriter, r *http.Request, v *validator.Validate) (T, bool) {
	var req T
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return req, false
	}

	if err := v.Struct(req); err != nil {
		core.HandleError(w, r, core.ValidationFailed(err))
		return req, false
	}

	return req, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}
