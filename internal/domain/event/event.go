package event

import (
	"encoding/json"
	"time"

	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
)

// Event is one immutable entry in a payment request's audit log. Events are
// only ever appended; the log is the single source of truth for workflow
// state, and the request's status column is merely a denormalized cache of
// the log's net effect.
type Event struct {
	Type      Type                `json:"type"`
	ByUserID  int64               `json:"by_user_id,omitempty"`
	Unit      workflow.UnitKind   `json:"unit,omitempty"`
	UserUnits []workflow.UnitKind `json:"user_units,omitempty"`
	Role      workflow.RoleKey    `json:"role,omitempty"`
	Index     *int                `json:"index,omitempty"`
	RoleNames []string            `json:"role_names,omitempty"`
	Note      string              `json:"note,omitempty"`
	At        time.Time           `json:"at"`
}

// NewCreated builds the creation entry. Unit is the scope the request was
// filed under; userUnits are the kinds resolved from the submitter's own
// memberships. The two differ when someone with cross-scope visibility files
// a request in a unit that is not their own.
func NewCreated(byUserID int64, unit workflow.UnitKind, userUnits []workflow.UnitKind, roleNames []string) Event {
	return Event{
		Type:      TypeCreated,
		ByUserID:  byUserID,
		Unit:      unit,
		UserUnits: userUnits,
		RoleNames: roleNames,
		At:        time.Now().UTC(),
	}
}

// NewStepSet builds the entry that opens a chain step.
func NewStepSet(unit workflow.UnitKind, step workflow.Step) Event {
	idx := step.Index
	return Event{
		Type:  TypeStepSet,
		Unit:  unit,
		Role:  step.Role,
		Index: &idx,
		At:    time.Now().UTC(),
	}
}

// NewStepClear builds the entry that closes the chain for good.
func NewStepClear() Event {
	return Event{
		Type: TypeStepClear,
		At:   time.Now().UTC(),
	}
}

// NewAction builds an approved/rejected/returned entry, recording the actor
// and the step that was active when the action was taken.
func NewAction(t Type, byUserID int64, step workflow.Step, note string) Event {
	idx := step.Index
	return Event{
		Type:     t,
		ByUserID: byUserID,
		Role:     step.Role,
		Index:    &idx,
		Note:     note,
		At:       time.Now().UTC(),
	}
}

// NewEdited builds the audit entry for a creator edit.
func NewEdited(byUserID int64) Event {
	return Event{
		Type:     TypeEdited,
		ByUserID: byUserID,
		At:       time.Now().UTC(),
	}
}

// Log is a request's ordered, append-only audit trail.
type Log []Event

// CurrentStep replays the log backward and returns the single currently
// pending step, or ok=false if the chain is closed or was never opened.
//
// The scan is deliberately asymmetric: the first step_set found from the end
// wins, unless a step_clear is seen first. Explicit closure always trumps
// any earlier open step.
func (l Log) CurrentStep() (workflow.Step, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		switch l[i].Type {
		case TypeStepClear:
			return workflow.Step{}, false
		case TypeStepSet:
			step := workflow.Step{Role: l[i].Role}
			if l[i].Index != nil {
				step.Index = *l[i].Index
			}
			return step, true
		}
	}
	return workflow.Step{}, false
}

// Marshal serializes the log as the JSON array stored in the request row.
func (l Log) Marshal() ([]byte, error) {
	if l == nil {
		l = Log{}
	}
	return json.Marshal(l)
}

// UnmarshalLog parses the stored JSON array back into a Log. Empty or NULL
// column data yields an empty log.
func UnmarshalLog(data []byte) (Log, error) {
	if len(data) == 0 {
		return Log{}, nil
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return l, nil
}
