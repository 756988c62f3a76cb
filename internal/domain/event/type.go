package event

// Type identifies the kind of audit-log entry.
type Type string

const (
	// TypeCreated records the submitter, the enforced scope, and the
	// submitter's resolved organizational data at submission time.
	TypeCreated Type = "created"

	// TypeStepSet marks a chain step as open.
	TypeStepSet Type = "step_set"

	// TypeStepClear marks the chain as fully closed.
	TypeStepClear Type = "step_clear"

	TypeApproved Type = "approved"
	TypeRejected Type = "rejected"
	TypeReturned Type = "returned"

	// TypeEdited records a creator edit outside the approval chain. It
	// never touches step markers or status.
	TypeEdited Type = "edited"
)

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeCreated, TypeStepSet, TypeStepClear,
		TypeApproved, TypeRejected, TypeReturned, TypeEdited:
		return true
	default:
		return false
	}
}
