package workflow

import "sort"

// Step identifies the chain position currently awaiting action.
type Step struct {
	Role  RoleKey `json:"role"`
	Index int     `json:"index"`
}

// UserContext is the resolved organizational context of a user at a moment in
// time. It is derived on every call and never persisted.
type UserContext struct {
	UserID     int64
	IsObserver bool
	Units      map[UnitKind]bool
	Roles      map[RoleKey]bool

	// RoleNames keeps the raw free-text role names the keys were resolved
	// from, recorded verbatim in the creation audit event.
	RoleNames []string
}

// HasRole reports whether the user's resolved role keys include key.
func (c UserContext) HasRole(key RoleKey) bool {
	return c.Roles[key]
}

// InUnit reports whether the user's resolved unit kinds include kind.
func (c UserContext) InUnit(kind UnitKind) bool {
	return c.Units[kind]
}

// UnitKinds returns the resolved unit set as a sorted slice, for audit
// entries that need a stable serialization.
func (c UserContext) UnitKinds() []UnitKind {
	if len(c.Units) == 0 {
		return nil
	}
	kinds := make([]UnitKind, 0, len(c.Units))
	for kind := range c.Units {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
