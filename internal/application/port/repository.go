package port

import (
	"context"
	"errors"

	"github.com/ipecgroup/budget-portal/internal/domain/entity"
)

// ErrVersionConflict is returned by RequestRepository.Update when the row's
// version no longer matches the one the caller read. The losing writer must
// retry from a fresh read; overwriting would drop appended audit events.
var ErrVersionConflict = errors.New("version conflict")

// ErrNotFound is returned by write operations that target a row which no
// longer exists, such as a delete racing another delete.
var ErrNotFound = errors.New("row not found")

// RequestFilter narrows List results. Zero values mean "no constraint".
type RequestFilter struct {
	Scope  string
	Status string
	Text   string
	Limit  int
}

// RequestRepository defines persistence operations for PaymentRequest.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.PaymentRequest) error
	GetByID(ctx context.Context, id int64) (*entity.PaymentRequest, error)

	// Update persists history, status and descriptive fields in one write,
	// guarded by the version the caller read (compare-and-swap).
	Update(ctx context.Context, req *entity.PaymentRequest, expectedVersion int64) error

	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter RequestFilter) ([]*entity.PaymentRequest, error)
}

// MembershipStore exposes the read-only organizational data the engine
// consumes: unit memberships and role names per user.
type MembershipStore interface {
	UnitsOf(ctx context.Context, userID int64) ([]*entity.Unit, error)
	RoleNamesOf(ctx context.Context, userID int64) ([]string, error)
}

// UserStore exposes read-only user lookups for identity resolution.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// TransactionManager handles database transactions.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
