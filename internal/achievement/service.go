// AngelaMos | 2026
// service.go

package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/evidence"
	"github.com/carterperez-dev/portfolio-backend/internal/notify"
)

var (
	anyRole    = authz.NewRoleSet(authz.AllRoles...)
	submitters = authz.NewRoleSet(authz.RoleStudent)
)

type StatsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

type Dispatcher interface {
	Dispatch(msg notify.Message)
}

type ContactDirectory interface {
	ContactEmail(ctx context.Context, userID string) (string, string, error)
}

type FileRemover interface {
	Discard(ctx context.Context, atts []evidence.Attachment)
}

// ServiceConfig wires optional collaborators; only Store is required.
type ServiceConfig struct {
	Store    Store
	Cache    StatsCache
	Notifier Dispatcher
	Contacts ContactDirectory
	Files    FileRemover
}

// Service is the achievement workflow engine. Review state moves only
// pending -> approved or pending -> rejected, and each move is a single
// conditional write in the store.
type Service struct {
	store    Store
	cache    StatsCache
	notifier Dispatcher
	contacts ContactDirectory
	files    FileRemover
	validate *validator.Validate
	now      func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	v := core.NewValidator()
	evidence.RegisterValidation(v)

	return &Service{
		store:    cfg.Store,
		cache:    cfg.Cache,
		notifier: cfg.Notifier,
		contacts: cfg.Contacts,
		files:    cfg.Files,
		validate: v,
		now:      time.Now,
	}
}

func (s *Service) Submit(
	ctx context.Context,
	p *authz.Principal,
	req CreateRequest,
) (_ *Achievement, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Submit")
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, submitters); err != nil {
		return nil, err
	}

	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, core.ValidationFailed(err)
	}

	now := s.now().UTC()
	dateAwarded := now
	if req.DateAwarded != "" {
		d, dateErr := parseAwardDate(req.DateAwarded, now)
		if dateErr != nil {
			return nil, dateErr
		}
		dateAwarded = d
	}

	category := CategoryIndividual
	if req.Category != "" {
		category = Category(req.Category)
	}

	skills := req.SkillsGained
	if skills == nil {
		skills = []string{}
	}

	a := &Achievement{
		ID:                uuid.New().String(),
		Title:             req.Title,
		Type:              Type(req.Type),
		Category:          category,
		Description:       req.Description,
		DateAwarded:       dateAwarded,
		StudentID:         p.ID,
		Evidence:          evidence.Stamp(req.Evidence, now),
		Status:            StatusPending,
		SkillsGained:      skills,
		ExternalReference: req.ExternalReference,
		IsPublic:          req.IsPublic != nil && *req.IsPublic,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("achievement.id", a.ID))
	s.invalidateStats(ctx, a.StudentID)
	return a, nil
}

// List scopes students to their own records; reviewers may filter freely.
func (s *Service) List(
	ctx context.Context,
	p *authz.Principal,
	q ListQuery,
) ([]Achievement, int64, error) {
	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, 0, err
	}

	f := q.Filter
	if !p.Role.IsReviewer() {
		if f.StudentID != "" && f.StudentID != p.ID {
			return nil, 0, core.ForbiddenError("students may only list their own achievements")
		}
		f.StudentID = p.ID
	}

	return s.store.List(ctx, f, q.page())
}

func (s *Service) ListPending(
	ctx context.Context,
	p *authz.Principal,
	q ListQuery,
) ([]Achievement, int64, error) {
	if err := authz.RequireRole(p, authz.Reviewers); err != nil {
		return nil, 0, err
	}

	f := q.Filter
	f.Status = StatusPending
	return s.store.List(ctx, f, q.page())
}

// PublicShowcase lists a student's approved, public achievements.
func (s *Service) PublicShowcase(
	ctx context.Context,
	p *authz.Principal,
	studentID string,
	q ListQuery,
) ([]Achievement, int64, error) {
	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, 0, err
	}

	public := true
	f := Filter{
		StudentID: studentID,
		Status:    StatusApproved,
		IsPublic:  &public,
	}
	return s.store.List(ctx, f, q.page())
}

func (s *Service) Get(
	ctx context.Context,
	p *authz.Principal,
	id string,
) (*Achievement, error) {
	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, err
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.OwnedBy(p.ID) && !p.Role.IsReviewer() {
		return nil, core.ForbiddenError("you can only view your own achievements")
	}

	return a, nil
}

// Update never touches review fields. Owners edit content while pending
// and only visibility afterwards; reviewers may reclassify a pending record.
func (s *Service) Update(
	ctx context.Context,
	p *authz.Principal,
	id string,
	req UpdateRequest,
) (_ *Achievement, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Update",
		attribute.String("achievement.id", id))
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, err
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := a.OwnedBy(p.ID)
	if !owner && !p.Role.IsReviewer() {
		return nil, core.ForbiddenError("you can only modify your own achievements")
	}

	patch, err := s.buildPatch(req)
	if err != nil {
		return nil, err
	}

	if patch.Empty() {
		return nil, core.ValidationError("no updatable fields provided")
	}

	requirePending := true
	switch {
	case owner && a.Status.Decided():
		if patch.touchesContent() {
			return nil, core.ConflictError("reviewed achievements are frozen; only visibility can change")
		}
		requirePending = false
	case owner:
	default:
		if a.Status.Decided() {
			return nil, core.ConflictError("reviewed achievements are frozen")
		}
		if !patch.reviewerEditable() {
			return nil, core.ForbiddenError("reviewers may only change type, category and skills")
		}
	}

	updated, err := s.store.Update(ctx, a.ID, patch, requirePending)
	if err != nil {
		return nil, storeError(err)
	}

	s.invalidateStats(ctx, a.StudentID)
	return updated, nil
}

func (p Patch) reviewerEditable() bool {
	return p.Title == nil && p.Description == nil && p.DateAwarded == nil &&
		p.ExternalReference == nil && p.IsPublic == nil && len(p.AppendEvidence) == 0
}

func (s *Service) Approve(
	ctx context.Context,
	p *authz.Principal,
	id string,
) (_ *Achievement, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Approve",
		attribute.String("achievement.id", id))
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, authz.Reviewers); err != nil {
		return nil, err
	}

	return s.decide(ctx, id, Decision{
		Status:     StatusApproved,
		ReviewerID: p.ID,
		At:         s.now().UTC(),
	})
}

func (s *Service) Reject(
	ctx context.Context,
	p *authz.Principal,
	id, reason string,
) (_ *Achievement, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Reject",
		attribute.String("achievement.id", id))
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, authz.Reviewers); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(reason)
	switch n := utf8.RuneCountInString(trimmed); {
	case n < MinRejectionReason:
		msg := fmt.Sprintf("rejection reason must be at least %d characters", MinRejectionReason)
		return nil, core.ValidationError(msg, core.FieldError{Field: "reason", Message: msg})
	case n > MaxRejectionReason:
		msg := fmt.Sprintf("rejection reason must be at most %d characters", MaxRejectionReason)
		return nil, core.ValidationError(msg, core.FieldError{Field: "reason", Message: msg})
	}

	return s.decide(ctx, id, Decision{
		Status:     StatusRejected,
		ReviewerID: p.ID,
		Reason:     &trimmed,
		At:         s.now().UTC(),
	})
}

func (s *Service) decide(ctx context.Context, id string, d Decision) (*Achievement, error) {
	if !validID(id) {
		return nil, core.NotFoundError("achievement")
	}

	a, err := s.store.Decide(ctx, id, d)
	if err != nil {
		return nil, storeError(err)
	}

	slog.InfoContext(ctx, "achievement reviewed",
		"achievement_id", a.ID,
		"status", a.Status,
		"reviewer_id", d.ReviewerID,
	)

	s.invalidateStats(ctx, a.StudentID)
	s.notifyDecision(ctx, a)
	return a, nil
}

// ToggleVisibility is the owner's privacy switch and ignores review state.
func (s *Service) ToggleVisibility(
	ctx context.Context,
	p *authz.Principal,
	id string,
) (_ *VisibilityResponse, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.ToggleVisibility",
		attribute.String("achievement.id", id))
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, err
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.OwnedBy(p.ID) {
		return nil, core.ForbiddenError("only the owner can change visibility")
	}

	updated, err := s.store.ToggleVisibility(ctx, a.ID, p.ID)
	if err != nil {
		return nil, storeError(err)
	}

	return &VisibilityResponse{ID: updated.ID, IsPublic: updated.IsPublic}, nil
}

// Delete lets admins remove any record and owners remove pending ones.
func (s *Service) Delete(
	ctx context.Context,
	p *authz.Principal,
	id string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Delete",
		attribute.String("achievement.id", id))
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, anyRole); err != nil {
		return err
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case p.Role == authz.RoleAdmin:
		err = s.store.Delete(ctx, a.ID, false)
	case a.OwnedBy(p.ID):
		if a.Status.Decided() {
			return core.ConflictError("only pending achievements can be deleted by their owner")
		}
		err = s.store.Delete(ctx, a.ID, true)
	default:
		return core.ForbiddenError("you can only delete your own achievements")
	}
	if err != nil {
		return storeError(err)
	}

	s.invalidateStats(ctx, a.StudentID)
	if owned := evidence.Owned(a.Evidence); s.files != nil && len(owned) > 0 {
		s.files.Discard(ctx, owned)
	}
	return nil
}

// Stats aggregates a student's achievements per type. An empty studentID
// means the caller; students may only read their own numbers.
func (s *Service) Stats(
	ctx context.Context,
	p *authz.Principal,
	studentID string,
) (_ *StatsResponse, err error) {
	ctx, span := core.StartSpan(ctx, "achievement.Stats")
	defer func() { core.EndSpan(span, err) }()

	if err := authz.RequireRole(p, anyRole); err != nil {
		return nil, err
	}

	if studentID == "" {
		studentID = p.ID
	}
	if studentID != p.ID && !p.Role.IsReviewer() {
		return nil, core.ForbiddenError("students may only view their own statistics")
	}

	key := statsKey(studentID)
	if s.cache != nil {
		var cached StatsResponse
		hit, cacheErr := s.cache.Get(ctx, key, &cached)
		if cacheErr != nil {
			slog.WarnContext(ctx, "stats cache read failed", "key", key, "error", cacheErr)
		} else if hit {
			return &cached, nil
		}
	}

	counts, err := s.store.StatsByType(ctx, studentID)
	if err != nil {
		return nil, err
	}

	resp := newStatsResponse(studentID, counts)
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, key, resp); cacheErr != nil {
			slog.WarnContext(ctx, "stats cache write failed", "key", key, "error", cacheErr)
		}
	}
	return &resp, nil
}

func (s *Service) StatusCounts(ctx context.Context) (map[Status]int64, error) {
	return s.store.CountByStatus(ctx)
}

func (s *Service) load(ctx context.Context, id string) (*Achievement, error) {
	if !validID(id) {
		return nil, core.NotFoundError("achievement")
	}

	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return a, nil
}

func statsKey(studentID string) string {
	return "student:" + studentID
}

func (s *Service) invalidateStats(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsKey(studentID)); err != nil {
		slog.WarnContext(ctx, "stats cache invalidation failed",
			"student_id", studentID,
			"error", err,
		)
	}
}

// notifyDecision tells the owner about a review outcome. Delivery is
// fire-and-forget and never affects the decision.
func (s *Service) notifyDecision(ctx context.Context, a *Achievement) {
	if s.notifier == nil || s.contacts == nil {
		return
	}

	email, name, err := s.contacts.ContactEmail(ctx, a.StudentID)
	if err != nil {
		slog.WarnContext(ctx, "skip review notification",
			"achievement_id", a.ID,
			"error", err,
		)
		return
	}

	s.notifier.Dispatch(decisionMessage(email, name, a))
}

func decisionMessage(email, name string, a *Achievement) notify.Message {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s,\n\n", greeting)
	switch a.Status {
	case StatusApproved:
		fmt.Fprintf(&body, "Your achievement %q has been approved.\n", a.Title)
	default:
		fmt.Fprintf(&body, "Your achievement %q has been rejected.\n", a.Title)
		if a.RejectionReason != nil {
			fmt.Fprintf(&body, "\nReason: %s\n", *a.RejectionReason)
		}
	}

	return notify.Message{
		To:      email,
		Subject: fmt.Sprintf("Achievement %s: %s", a.Status, a.Title),
		Body:    body.String(),
	}
}

func (s *Service) buildPatch(req UpdateRequest) (Patch, error) {
	if err := s.validate.Struct(req); err != nil {
		return Patch{}, core.ValidationFailed(err)
	}

	var patch Patch
	var fields []core.FieldError
	now := s.now().UTC()

	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		switch {
		case v == "":
			fields = append(fields, core.FieldError{Field: "title", Message: "title must not be blank"})
		case utf8.RuneCountInString(v) > MaxTitleLength:
			fields = append(fields, core.FieldError{
				Field:   "title",
				Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength),
			})
		default:
			patch.Title = &v
		}
	}

	if req.Description != nil {
		v := strings.TrimSpace(*req.Description)
		switch {
		case v == "":
			fields = append(fields, core.FieldError{Field: "description", Message: "description must not be blank"})
		case utf8.RuneCountInString(v) > MaxDescriptionLength:
			fields = append(fields, core.FieldError{
				Field:   "description",
				Message: fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength),
			})
		default:
			patch.Description = &v
		}
	}

	if req.Type != nil {
		t := Type(strings.TrimSpace(*req.Type))
		if t.Valid() {
			patch.Type = &t
		} else {
			fields = append(fields, core.FieldError{Field: "type", Message: "type is not a known achievement type"})
		}
	}

	if req.Category != nil {
		c := Category(strings.TrimSpace(*req.Category))
		if c.Valid() {
			patch.Category = &c
		} else {
			fields = append(fields, core.FieldError{Field: "category", Message: "category must be one of individual, team, group"})
		}
	}

	if req.DateAwarded != nil {
		d, err := parseAwardDate(strings.TrimSpace(*req.DateAwarded), now)
		if err != nil {
			fields = append(fields, core.AsAppError(err).Fields...)
		} else {
			patch.DateAwarded = &d
		}
	}

	if req.SkillsGained != nil {
		skills := cleanSkills(*req.SkillsGained)
		if skills == nil {
			skills = []string{}
		}
		if err := s.validate.Var(skills, "max=30,dive,max=60"); err != nil {
			fields = append(fields, core.FieldError{
				Field:   "skillsGained",
				Message: "skillsGained allows at most 30 tags of up to 60 characters",
			})
		} else {
			patch.SkillsGained = &skills
		}
	}

	if req.ExternalReference != nil {
		v := strings.TrimSpace(*req.ExternalReference)
		if v != "" && s.validate.Var(v, "http_url,max=2048") != nil {
			fields = append(fields, core.FieldError{Field: "externalReference", Message: "externalReference must be a valid URL"})
		} else {
			patch.ExternalReference = &v
		}
	}

	patch.IsPublic = req.IsPublic
	if len(req.Evidence) > 0 {
		patch.AppendEvidence = evidence.Stamp(req.Evidence, now)
	}

	if len(fields) > 0 {
		return Patch{}, core.ValidationError("invalid achievement update", fields...)
	}
	return patch, nil
}

func parseAwardDate(raw string, now time.Time) (time.Time, error) {
	d, ok := parseDate(raw)
	if !ok {
		msg := "dateAwarded must be an RFC 3339 timestamp or a YYYY-MM-DD date"
		return time.Time{}, core.ValidationError(msg, core.FieldError{Field: "dateAwarded", Message: msg})
	}
	if d.After(now) {
		msg := "dateAwarded cannot be in the future"
		return time.Time{}, core.ValidationError(msg, core.FieldError{Field: "dateAwarded", Message: msg})
	}
	return d, nil
}

// storeError gives store sentinels their client-facing message.
func storeError(err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.NotFoundError("achievement")
	case errors.Is(err, ErrNotPending):
		return core.ConflictError("achievement has already been reviewed")
	case errors.Is(err, core.ErrForbidden):
		return core.ForbiddenError("only the owner can change visibility")
	default:
		return err
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
