// AngelaMos | 2026
// store.go

package achievement

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

// ErrNotPending is returned when a write guarded by status == pending
// matched an existing record that has already been decided.
var ErrNotPending = fmt.Errorf("achievement is no longer pending: %w", core.ErrConflict)

// Store persists achievements. Every mutating method is a single atomic
// write; conditions are evaluated by the store, never read-then-write.
type Store interface {
	Insert(ctx context.Context, a *Achievement) error
	FindByID(ctx context.Context, id string) (*Achievement, error)
	List(ctx context.Context, f Filter, p Page) ([]Achievement, int64, error)

	// Update applies patch. With requirePending it only matches a pending
	// record and reports ErrNotPending otherwise.
	Update(ctx context.Context, id string, patch Patch, requirePending bool) (*Achievement, error)

	// Decide moves a pending record to d.Status. At most one call per
	// record succeeds; later calls get ErrNotPending.
	Decide(ctx context.Context, id string, d Decision) (*Achievement, error)

	// ToggleVisibility flips isPublic on a record owned by ownerID.
	ToggleVisibility(ctx context.Context, id, ownerID string) (*Achievement, error)

	Delete(ctx context.Context, id string, requirePending bool) error

	StatsByType(ctx context.Context, studentID string) ([]TypeCount, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
