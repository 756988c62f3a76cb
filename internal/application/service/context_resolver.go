package service

import (
	"context"
	"strings"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ContextResolver derives a user's organizational context: resolved unit
// kinds, resolved role keys, and the observer flag.
type ContextResolver interface {
	// Resolve builds the context for userID. unitOverride, when it names a
	// valid canonical kind, is included in the resolved unit set (trusted
	// internal override, non-production contexts). An unknown user id
	// yields an empty context, not an error.
	Resolve(ctx context.Context, userID int64, unitOverride string) (workflow.UserContext, error)
}

// ObserverIdentity pins the one distinguished account that gets read-all
// visibility. Observer grants visibility only, never approval authority.
type ObserverIdentity struct {
	Username string
	Email    string
}

type contextResolverImpl struct {
	users      port.UserStore
	membership port.MembershipStore
	observer   ObserverIdentity
	logger     Logger
}

// NewContextResolver creates a new ContextResolver.
func NewContextResolver(users port.UserStore, membership port.MembershipStore, observer ObserverIdentity, logger Logger) ContextResolver {
	return &contextResolverImpl{
		users:      users,
		membership: membership,
		observer:   observer,
		logger:     logger,
	}
}

func (r *contextResolverImpl) Resolve(ctx context.Context, userID int64, unitOverride string) (workflow.UserContext, error) {
	uc := workflow.UserContext{
		UserID: userID,
		Units:  make(map[workflow.UnitKind]bool),
		Roles:  make(map[workflow.RoleKey]bool),
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return uc, err
	}
	if user == nil {
		return uc, nil
	}

	uc.IsObserver = strings.EqualFold(user.Username, r.observer.Username) ||
		(r.observer.Email != "" && strings.EqualFold(user.Email, r.observer.Email))

	units, err := r.membership.UnitsOf(ctx, userID)
	if err != nil {
		return uc, err
	}
	for _, unit := range units {
		if kind, ok := workflow.ClassifyUnit(unit.Code); ok {
			uc.Units[kind] = true
			continue
		}
		if kind, ok := workflow.ClassifyUnit(unit.Name); ok {
			uc.Units[kind] = true
		}
	}

	roleNames, err := r.membership.RoleNamesOf(ctx, userID)
	if err != nil {
		return uc, err
	}
	uc.RoleNames = roleNames
	uc.Roles = workflow.ClassifyRoles(roleNames)

	// Membership rows are sometimes incomplete; widen from the department
	// field and then from the role names themselves before giving up.
	if len(uc.Units) == 0 {
		if kind, ok := workflow.ClassifyUnit(user.Department); ok {
			uc.Units[kind] = true
		}
	}
	if len(uc.Units) == 0 {
		for key := range uc.Roles {
			if kind, ok := key.ImpliedUnit(); ok {
				uc.Units[kind] = true
			}
		}
	}

	if kind := workflow.UnitKind(strings.ToLower(strings.TrimSpace(unitOverride))); kind.IsValid() {
		uc.Units[kind] = true
	}

	return uc, nil
}
