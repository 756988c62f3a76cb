package workflow

import "strings"

// RoleKey is a canonical abstract approval role, decoupled from the free-text
// role names stored in the user-management tables.
type RoleKey string

const (
	RoleRequester      RoleKey = "requester"
	RoleProjectControl RoleKey = "project_control"
	RoleProjectManager RoleKey = "project_manager"
	RoleAccounting     RoleKey = "accounting"
	RoleFinanceManager RoleKey = "finance_manager"
	RolePaymentOrder   RoleKey = "payment_order"
)

var validRoles = map[RoleKey]bool{
	RoleRequester:      true,
	RoleProjectControl: true,
	RoleProjectManager: true,
	RoleAccounting:     true,
	RoleFinanceManager: true,
	RolePaymentOrder:   true,
}

// IsValid returns true if the role key is one of the canonical keys.
func (r RoleKey) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role key.
func (r RoleKey) String() string {
	return string(r)
}

type roleRule struct {
	key      RoleKey
	keywords []string
}

// roleRules is evaluated in priority order per role name; the first matching
// group wins for that name. The payment-authority group includes the surnames
// of the designated payment signatories, since their role rows are sometimes
// entered by name rather than by function.
var roleRules = []roleRule{
	{RolePaymentOrder, []string{"دستور پرداخت", "payment order", "خزانه", "موسوی", "شریفی"}},
	{RoleFinanceManager, []string{"مدیر مالی", "finance manager"}},
	{RoleAccounting, []string{"حسابدار", "accountant", "accounting"}},
	{RoleProjectControl, []string{"کنترل پروژه", "project control"}},
	{RoleProjectManager, []string{"مدیر پروژه", "project manager"}},
	{RoleRequester, []string{"کارپرداز", "سرپرست کارگاه", "تدارکات", "امور اداری", "درخواست", "procurement", "request"}},
}

// ClassifyRoles maps a user's free-text role names to the set of canonical
// role keys. A user whose role names match nothing falls open to requester,
// a compatibility shim against role-taxonomy drift in the user-management
// tables. It grants no approval authority beyond the creator's own requests.
func ClassifyRoles(roleNames []string) map[RoleKey]bool {
	keys := make(map[RoleKey]bool)
	matchedAny := false

	for _, name := range roleNames {
		token := normalizeToken(name)
		if token == "" {
			continue
		}
	rules:
		for _, rule := range roleRules {
			for _, kw := range rule.keywords {
				if strings.Contains(token, kw) {
					keys[rule.key] = true
					matchedAny = true
					break rules
				}
			}
		}
	}

	if !matchedAny && len(roleNames) > 0 {
		keys[RoleRequester] = true
	}
	return keys
}

// impliedUnits widens unit membership from role names: a finance-manager role
// implies the finance unit even without an explicit unit link, because
// membership records are sometimes incomplete. Deliberate leniency.
var impliedUnits = map[RoleKey]UnitKind{
	RoleAccounting:     UnitFinance,
	RoleFinanceManager: UnitFinance,
	RolePaymentOrder:   UnitFinance,
	RoleProjectControl: UnitProjects,
	RoleProjectManager: UnitProjects,
}

// ImpliedUnit returns the unit kind a role key implies membership in, if any.
func (r RoleKey) ImpliedUnit() (UnitKind, bool) {
	u, ok := impliedUnits[r]
	return u, ok
}
