// AngelaMos | 2026
// memstore_test.go

package achievement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

// memStore mirrors MongoStore's conditional writes under a mutex.
type memStore struct {
	mu    sync.Mutex
	items map[string]Achievement
	now   func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		items: make(map[string]Achievement),
		now:   time.Now,
	}
}

func clone(a Achievement) *Achievement {
	a.Evidence = slices.Clone(a.Evidence)
	a.SkillsGained = slices.Clone(a.SkillsGained)
	return &a
}

func (m *memStore) Insert(_ context.Context, a *Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[a.ID]; ok {
		return fmt.Errorf("insert achievement: %w", core.ErrDuplicateKey)
	}
	m.items[a.ID] = *clone(*a)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("find achievement: %w", core.ErrNotFound)
	}
	return clone(a), nil
}

func (m *memStore) List(_ context.Context, f Filter, p Page) ([]Achievement, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Achievement
	for _, a := range m.items {
		if matches(a, f) {
			matched = append(matched, *clone(a))
		}
	}

	slices.SortFunc(matched, func(x, y Achievement) int {
		c := compareBy(x, y, p.SortBy)
		if c == 0 {
			c = strings.Compare(x.ID, y.ID)
		}
		if p.SortDesc {
			return -c
		}
		return c
	})

	total := int64(len(matched))
	start := min(p.Offset, len(matched))
	end := min(start+p.Limit, len(matched))
	return matched[start:end], total, nil
}

func matches(a Achievement, f Filter) bool {
	switch {
	case f.StudentID != "" && a.StudentID != f.StudentID:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Category != "" && a.Category != f.Category:
		return false
	case f.IsPublic != nil && a.IsPublic != *f.IsPublic:
		return false
	}

	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(a.Title), needle) ||
		strings.Contains(strings.ToLower(a.Description), needle) {
		return true
	}
	for _, s := range a.SkillsGained {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func compareBy(x, y Achievement, field string) int {
	switch field {
	case "updatedAt":
		return x.UpdatedAt.Compare(y.UpdatedAt)
	case "dateAwarded":
		return x.DateAwarded.Compare(y.DateAwarded)
	case "title":
		return strings.Compare(x.Title, y.Title)
	case "status":
		return strings.Compare(string(x.Status), string(y.Status))
	case "type":
		return strings.Compare(string(x.Type), string(y.Type))
	default:
		return x.CreatedAt.Compare(y.CreatedAt)
	}
}

func (m *memStore) Update(_ context.Context, id string, patch Patch, requirePending bool) (*Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("update achievement: %w", core.ErrNotFound)
	}
	if requirePending && a.Status != StatusPending {
		return nil, fmt.Errorf("update achievement: %w", ErrNotPending)
	}

	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.Category != nil {
		a.Category = *patch.Category
	}
	if patch.DateAwarded != nil {
		a.DateAwarded = *patch.DateAwarded
	}
	if patch.SkillsGained != nil {
		a.SkillsGained = slices.Clone(*patch.SkillsGained)
	}
	if patch.ExternalReference != nil {
		a.ExternalReference = *patch.ExternalReference
	}
	if patch.IsPublic != nil {
		a.IsPublic = *patch.IsPublic
	}
	a.Evidence = append(slices.Clone(a.Evidence), patch.AppendEvidence...)
	a.UpdatedAt = m.now().UTC()

	m.items[id] = a
	return clone(a), nil
}

func (m *memStore) Decide(_ context.Context, id string, d Decision) (*Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("decide achievement: %w", core.ErrNotFound)
	}
	if a.Status != StatusPending {
		return nil, fmt.Errorf("decide achievement: %w", ErrNotPending)
	}

	reviewer := d.ReviewerID
	at := d.At.UTC()
	a.Status = d.Status
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &at
	a.RejectionReason = d.Reason
	a.UpdatedAt = at

	m.items[id] = a
	return clone(a), nil
}

func (m *memStore) ToggleVisibility(_ context.Context, id, ownerID string) (*Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("toggle visibility: %w", core.ErrNotFound)
	}
	if a.StudentID != ownerID {
		return nil, fmt.Errorf("toggle visibility: %w", core.ErrForbidden)
	}

	a.IsPublic = !a.IsPublic
	a.UpdatedAt = m.now().UTC()
	m.items[id] = a
	return clone(a), nil
}

func (m *memStore) Delete(_ context.Context, id string, requirePending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.items[id]
	if !ok {
		return fmt.Errorf("delete achievement: %w", core.ErrNotFound)
	}
	if requirePending && a.Status != StatusPending {
		return fmt.Errorf("delete achievement: %w", ErrNotPending)
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) StatsByType(_ context.Context, studentID string) ([]TypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[Type]*TypeCount)
	for _, a := range m.items {
		if a.StudentID != studentID {
			continue
		}
		c, ok := byType[a.Type]
		if !ok {
			c = &TypeCount{Type: a.Type}
			byType[a.Type] = c
		}
		c.Total++
		switch a.Status {
		case StatusApproved:
			c.Approved++
		case StatusPending:
			c.Pending++
		case StatusRejected:
			c.Rejected++
		}
	}

	out := make([]TypeCount, 0, len(byType))
	for _, c := range byType {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(x, y TypeCount) int {
		return strings.Compare(string(x.Type), string(y.Type))
	})
	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context) (map[Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[Status]int64{StatusPending: 0, StatusApproved: 0, StatusRejected: 0}
	for _, a := range m.items {
		out[a.Status]++
	}
	return out, nil
}

var _ Store = (*memStore)(nil)
