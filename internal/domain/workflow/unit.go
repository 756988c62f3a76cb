package workflow

import "strings"

// UnitKind is the canonical category of an organizational unit. It decides
// which approval chain applies to a payment request filed under it.
type UnitKind string

const (
	UnitOffice   UnitKind = "office"
	UnitSite     UnitKind = "site"
	UnitFinance  UnitKind = "finance"
	UnitCash     UnitKind = "cash"
	UnitCapex    UnitKind = "capex"
	UnitProjects UnitKind = "projects"
)

var validUnits = map[UnitKind]bool{
	UnitOffice:   true,
	UnitSite:     true,
	UnitFinance:  true,
	UnitCash:     true,
	UnitCapex:    true,
	UnitProjects: true,
}

// IsValid returns true if the unit kind is one of the canonical kinds.
func (u UnitKind) IsValid() bool {
	return validUnits[u]
}

// String returns the string representation of the unit kind.
func (u UnitKind) String() string {
	return string(u)
}

// unitRule maps substring keywords found in human-entered unit names/codes to
// a canonical kind. Rules are ordered; the first matching rule wins.
type unitRule struct {
	kind     UnitKind
	keywords []string
}

var unitRules = []unitRule{
	{UnitFinance, []string{"finance", "accounting", "مالی", "حسابداری"}},
	{UnitCash, []string{"cash", "petty", "تنخواه", "صندوق"}},
	{UnitCapex, []string{"capex", "capital", "سرمایه"}},
	{UnitProjects, []string{"project", "پروژه", "طرح"}},
	{UnitSite, []string{"site", "workshop", "سایت", "کارگاه"}},
	{UnitOffice, []string{"office", "head", "hq", "دفتر", "ستاد", "مرکزی"}},
}

// normalizeToken lower-cases, trims, and folds the Arabic letter variants and
// zero-width joiners that show up in human-entered Persian text.
var persianFolder = strings.NewReplacer(
	"ي", "ی", // Arabic yeh -> Persian yeh
	"ك", "ک", // Arabic kaf -> Persian kaf
	"‌", " ", // zero-width non-joiner
)

func normalizeToken(s string) string {
	return persianFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// ClassifyUnit maps a unit's free-text code or display name to a canonical
// unit kind. Exact canonical tokens match first; otherwise the keyword table
// decides. Unclassifiable input returns ok=false and is a valid, expected
// outcome, never an error.
func ClassifyUnit(nameOrCode string) (UnitKind, bool) {
	token := normalizeToken(nameOrCode)
	if token == "" {
		return "", false
	}

	if kind := UnitKind(token); kind.IsValid() {
		return kind, true
	}

	for _, rule := range unitRules {
		for _, kw := range rule.keywords {
			if strings.Contains(token, kw) {
				return rule.kind, true
			}
		}
	}

	return "", false
}
