package workflow

import "fmt"

// chains maps each canonical unit kind to its ordered approval chain. Every
// chain begins with requester; the remaining links are the roles that must
// sign off, in order.
var chains = map[UnitKind][]RoleKey{
	UnitOffice:   {RoleRequester, RoleAccounting, RoleFinanceManager, RolePaymentOrder},
	UnitSite:     {RoleRequester, RoleProjectControl, RoleAccounting, RoleFinanceManager, RolePaymentOrder},
	UnitFinance:  {RoleRequester, RoleFinanceManager, RolePaymentOrder},
	UnitCash:     {RoleRequester, RolePaymentOrder},
	UnitCapex:    {RoleRequester, RoleProjectControl, RoleAccounting, RoleFinanceManager, RolePaymentOrder},
	UnitProjects: {RoleRequester, RoleProjectControl, RoleProjectManager, RoleAccounting, RoleFinanceManager, RolePaymentOrder},
}

// ChainFor returns the approval chain registered for a unit kind. An unknown
// kind yields ErrChainNotDefined; there is deliberately no default chain, so
// a misconfigured kind fails loudly instead of routing approvals somewhere
// unintended.
func ChainFor(kind UnitKind) ([]RoleKey, error) {
	chain, ok := chains[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChainNotDefined, kind)
	}
	return chain, nil
}
