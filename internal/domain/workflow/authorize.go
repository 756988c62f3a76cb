package workflow

// CanAct decides whether a user may act on the current step of a request.
//
// The requester step is the "returned to submitter" position: only the
// original creator may act there, regardless of roles. The accounting and
// finance-manager steps represent a centralized finance function, so the
// actor must belong to the finance unit; payment_order acts globally and is
// exempt from any unit check; every other role must belong to the request's
// own scope unit.
//
// The observer flag is intentionally not consulted here: observer grants
// visibility, never approval authority.
func CanAct(actor UserContext, creatorID int64, scope UnitKind, step *Step) bool {
	if step == nil {
		return false
	}

	if step.Role == RoleRequester {
		return actor.UserID == creatorID
	}

	if !actor.HasRole(step.Role) {
		return false
	}

	switch step.Role {
	case RoleAccounting, RoleFinanceManager:
		return actor.InUnit(UnitFinance)
	case RolePaymentOrder:
		return true
	default:
		return actor.InUnit(scope)
	}
}
