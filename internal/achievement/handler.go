// AngelaMos | 2026
// handler.go

package achievement

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/evidence"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

const (
	maxJSONBody   = 1 << 20
	multipartMem  = 8 << 20
	multipartType = "multipart/form-data"
)

type Handler struct {
	service *Service
	intake  *evidence.Intake
}

// NewHandler builds the achievement routes. A nil intake disables
// multipart uploads; JSON evidence references still work.
func NewHandler(service *Service, intake *evidence.Intake) *Handler {
	return &Handler{
		service: service,
		intake:  intake,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	submitLimiter func(http.Handler) http.Handler,
) {
	if submitLimiter == nil {
		submitLimiter = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/achievements", func(r chi.Router) {
		r.Use(authenticator)

		r.With(middleware.RequireRole(authz.RoleStudent), submitLimiter).Post("/", h.Create)
		r.Get("/", h.List)
		r.With(middleware.RequireReviewer).Get("/pending", h.ListPending)
		r.Get("/stats/student", h.Stats)
		r.Get("/stats/student/{studentID}", h.Stats)
		r.Get("/public/student/{studentID}", h.PublicShowcase)

		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.With(middleware.RequireReviewer).Patch("/{id}/approve", h.Approve)
		r.With(middleware.RequireReviewer).Patch("/{id}/reject", h.Reject)
		r.Patch("/{id}/toggle-visibility", h.ToggleVisibility)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	uploaded, err := h.decode(w, r, &req, func(form formValues) error {
		return form.fillCreate(&req)
	})
	if err != nil {
		core.HandleError(w, r, err)
		return
	}
	req.Evidence = append(req.Evidence, uploaded...)

	a, err := h.service.Submit(r.Context(), middleware.GetPrincipal(r.Context()), req)
	if err != nil {
		h.discard(r, uploaded)
		core.HandleError(w, r, err)
		return
	}

	core.Created(w, ToResponse(a))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	items, total, err := h.service.List(r.Context(), middleware.GetPrincipal(r.Context()), q)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Paginated(w, ToResponseList(items), q.Page, q.Limit, int(total))
}

// ListPending is the review queue, oldest first unless sort says otherwise.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}
	if r.URL.Query().Get("sort") == "" {
		q.Sort = "createdAt"
	}

	items, total, err := h.service.ListPending(r.Context(), middleware.GetPrincipal(r.Context()), q)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Paginated(w, ToResponseList(items), q.Page, q.Limit, int(total))
}

func (h *Handler) PublicShowcase(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	items, total, err := h.service.PublicShowcase(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		chi.URLParam(r, "studentID"),
		q,
	)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Paginated(w, ToResponseList(items), q.Page, q.Limit, int(total))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		chi.URLParam(r, "studentID"),
	)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), middleware.GetPrincipal(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToResponse(a))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	uploaded, err := h.decode(w, r, &req, func(form formValues) error {
		return form.fillUpdate(&req)
	})
	if err != nil {
		core.HandleError(w, r, err)
		return
	}
	req.Evidence = append(req.Evidence, uploaded...)

	a, err := h.service.Update(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		chi.URLParam(r, "id"),
		req,
	)
	if err != nil {
		h.discard(r, uploaded)
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToResponse(a))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, map[string]any{"id": id, "deleted": true})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Approve(r.Context(), middleware.GetPrincipal(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToResponse(a))
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	a, err := h.service.Reject(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		chi.URLParam(r, "id"),
		req.Reason,
	)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToResponse(a))
}

func (h *Handler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ToggleVisibility(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		chi.URLParam(r, "id"),
	)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, resp)
}

// decode reads a JSON body into dst, or a multipart form through fill and
// the evidence intake. Files it stored are returned so callers can discard
// them when the operation fails.
func (h *Handler) decode(
	w http.ResponseWriter,
	r *http.Request,
	dst any,
	fill func(formValues) error,
) ([]evidence.Attachment, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != multipartType {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
			return nil, core.ValidationError("invalid request body")
		}
		return nil, nil
	}

	if h.intake == nil {
		return nil, core.NewAppError(
			core.ErrInvalidInput,
			"file uploads are not enabled",
			http.StatusUnsupportedMediaType,
			"UNSUPPORTED_MEDIA_TYPE",
		)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.intake.MaxRequestSize())
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.NewAppError(
				err,
				"request body too large",
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
			)
		}
		return nil, core.ValidationError("invalid multipart form")
	}

	if err := fill(formValues(r.MultipartForm.Value)); err != nil {
		return nil, err
	}

	return h.intake.Collect(r.Context(), r.MultipartForm)
}

func (h *Handler) discard(r *http.Request, atts []evidence.Attachment) {
	if h.intake != nil && len(atts) > 0 {
		h.intake.Discard(r.Context(), atts)
	}
}

type formValues map[string][]string

func (f formValues) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f formValues) get(key string) string {
	if v := f[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// skills accepts repeated fields or one comma separated value.
func (f formValues) skills() []string {
	vals := f["skillsGained"]
	if len(vals) == 1 && strings.Contains(vals[0], ",") {
		return strings.Split(vals[0], ",")
	}
	return vals
}

func (f formValues) boolean(key string) (*bool, error) {
	if !f.has(key) {
		return nil, nil
	}
	b, err := strconv.ParseBool(f.get(key))
	if err != nil {
		msg := key + " must be a boolean"
		return nil, core.ValidationError(msg, core.FieldError{Field: key, Message: msg})
	}
	return &b, nil
}

func (f formValues) fillCreate(req *CreateRequest) error {
	req.Title = f.get("title")
	req.Type = f.get("type")
	req.Category = f.get("category")
	req.Description = f.get("description")
	req.DateAwarded = f.get("dateAwarded")
	req.ExternalReference = f.get("externalReference")
	if f.has("skillsGained") {
		req.SkillsGained = f.skills()
	}

	isPublic, err := f.boolean("isPublic")
	if err != nil {
		return err
	}
	req.IsPublic = isPublic
	return nil
}

func (f formValues) fillUpdate(req *UpdateRequest) error {
	optional := func(key string) *string {
		if !f.has(key) {
			return nil
		}
		v := f.get(key)
		return &v
	}

	req.Title = optional("title")
	req.Type = optional("type")
	req.Category = optional("category")
	req.Description = optional("description")
	req.DateAwarded = optional("dateAwarded")
	req.ExternalReference = optional("externalReference")
	if f.has("skillsGained") {
		skills := f.skills()
		req.SkillsGained = &skills
	}

	isPublic, err := f.boolean("isPublic")
	if err != nil {
		return err
	}
	req.IsPublic = isPublic
	return nil
}
