// AngelaMos | 2026
// dto.go

package achievement

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/evidence"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	MaxPage          = 1_000_000
	maxSearchLength  = 100
)

type CreateRequest struct {
	Title             string                `json:"title"             validate:"required,max=200"`
	Type              string                `json:"type"              validate:"required,oneof=academic sports arts leadership community_service research entrepreneurship competition certification other"`
	Category          string                `json:"category"          validate:"omitempty,oneof=individual team group"`
	Description       string                `json:"description"       validate:"required,max=2000"`
	DateAwarded       string                `json:"dateAwarded"`
	SkillsGained      []string              `json:"skillsGained"      validate:"omitempty,max=30,dive,max=60"`
	ExternalReference string                `json:"externalReference" validate:"omitempty,http_url,max=2048"`
	IsPublic          *bool                 `json:"isPublic"`
	Evidence          []evidence.Attachment `json:"evidence"          validate:"omitempty,max=20,dive"`
}

func (r *CreateRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Type = strings.TrimSpace(r.Type)
	r.Category = strings.TrimSpace(r.Category)
	r.ExternalReference = strings.TrimSpace(r.ExternalReference)
	r.SkillsGained = cleanSkills(r.SkillsGained)
}

// UpdateRequest carries no review fields: status, reviewer, review time and
// rejection reason are silently dropped by decoding.
type UpdateRequest struct {
	Title             *string               `json:"title"`
	Type              *string               `json:"type"`
	Category          *string               `json:"category"`
	Description       *string               `json:"description"`
	DateAwarded       *string               `json:"dateAwarded"`
	SkillsGained      *[]string             `json:"skillsGained"`
	ExternalReference *string               `json:"externalReference"`
	IsPublic          *bool                 `json:"isPublic"`
	Evidence          []evidence.Attachment `json:"evidence" validate:"omitempty,max=20,dive"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type Response struct {
	*Achievement
	ApprovedBy *string `json:"approvedBy,omitempty"`
}

func ToResponse(a *Achievement) Response {
	if a.Evidence == nil {
		a.Evidence = []evidence.Attachment{}
	}
	if a.SkillsGained == nil {
		a.SkillsGained = []string{}
	}

	resp := Response{Achievement: a}
	if a.Status == StatusApproved {
		resp.ApprovedBy = a.ReviewedBy
	}
	return resp
}

func ToResponseList(items []Achievement) []Response {
	out := make([]Response, 0, len(items))
	for i := range items {
		out = append(out, ToResponse(&items[i]))
	}
	return out
}

type VisibilityResponse struct {
	ID       string `json:"id"`
	IsPublic bool   `json:"isPublic"`
}

type Totals struct {
	Total    int64 `json:"total"`
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
	Rejected int64 `json:"rejected"`
}

type StatsResponse struct {
	StudentID string      `json:"studentId"`
	ByType    []TypeCount `json:"byType"`
	Totals    Totals      `json:"totals"`
}

func newStatsResponse(studentID string, counts []TypeCount) StatsResponse {
	resp := StatsResponse{StudentID: studentID, ByType: counts}
	if resp.ByType == nil {
		resp.ByType = []TypeCount{}
	}
	for _, c := range counts {
		resp.Totals.Total += c.Total
		resp.Totals.Approved += c.Approved
		resp.Totals.Pending += c.Pending
		resp.Totals.Rejected += c.Rejected
	}
	return resp
}

// sortFields maps public sort keys to stored field names.
var sortFields = map[string]string{
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
	"dateAwarded": "dateAwarded",
	"title":       "title",
	"status":      "status",
	"type":        "type",
}

type ListQuery struct {
	Page   int
	Limit  int
	Sort   string
	Filter Filter
}

func (q ListQuery) page() Page {
	key := strings.TrimPrefix(q.Sort, "-")
	return Page{
		Offset:   (q.Page - 1) * q.Limit,
		Limit:    q.Limit,
		SortBy:   sortFields[key],
		SortDesc: strings.HasPrefix(q.Sort, "-"),
	}
}

// ParseListQuery reads pagination, sort and filter parameters. Unknown sort
// keys and filter values are rejected rather than passed to the store.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: 1, Limit: DefaultPageLimit, Sort: "-createdAt"}
	var fields []core.FieldError

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPage {
			fields = append(fields, core.FieldError{
				Field:   "page",
				Message: fmt.Sprintf("page must be an integer between 1 and %d", MaxPage),
			})
		} else {
			q.Page = n
		}
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields = append(fields, core.FieldError{Field: "limit", Message: "limit must be a positive integer"})
		} else {
			q.Limit = min(n, MaxPageLimit)
		}
	}

	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		if _, ok := sortFields[strings.TrimPrefix(raw, "-")]; !ok {
			fields = append(fields, core.FieldError{
				Field:   "sort",
				Message: "sort must be one of " + strings.Join(sortKeys(), ", ") + " (prefix - for descending)",
			})
		} else {
			q.Sort = raw
		}
	}

	if raw := values.Get("status"); raw != "" {
		if s := Status(raw); s.Valid() {
			q.Filter.Status = s
		} else {
			fields = append(fields, core.FieldError{Field: "status", Message: "status must be one of pending, approved, rejected"})
		}
	}

	if raw := values.Get("type"); raw != "" {
		if t := Type(raw); t.Valid() {
			q.Filter.Type = t
		} else {
			fields = append(fields, core.FieldError{Field: "type", Message: "type is not a known achievement type"})
		}
	}

	if raw := values.Get("category"); raw != "" {
		if c := Category(raw); c.Valid() {
			q.Filter.Category = c
		} else {
			fields = append(fields, core.FieldError{Field: "category", Message: "category must be one of individual, team, group"})
		}
	}

	if raw := values.Get("isPublic"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "isPublic", Message: "isPublic must be a boolean"})
		} else {
			q.Filter.IsPublic = &b
		}
	}

	q.Filter.StudentID = strings.TrimSpace(values.Get("student"))
	if q.Filter.StudentID == "" {
		q.Filter.StudentID = strings.TrimSpace(values.Get("studentId"))
	}

	q.Filter.Search = strings.TrimSpace(values.Get("search"))
	if len([]rune(q.Filter.Search)) > maxSearchLength {
		fields = append(fields, core.FieldError{
			Field:   "search",
			Message: fmt.Sprintf("search must be at most %d characters", maxSearchLength),
		})
	}

	if len(fields) > 0 {
		return ListQuery{}, core.ValidationError("invalid query parameters", fields...)
	}

	return q, nil
}

func sortKeys() []string {
	keys := make([]string, 0, len(sortFields))
	for k := range sortFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// cleanSkills trims tags, drops blanks and removes case-insensitive
// duplicates while keeping first occurrence order.
func cleanSkills(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
