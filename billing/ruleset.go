/*
ruleset.go - The recurring billing agreement model

PURPOSE:
  A Ruleset is the static description of a recurring billing agreement:
  how often to bill, on which day a period becomes due, how long the
  customer has to pay, and which amount components make up a period's pay.
  Rulesets are owned by configuration, mutated only through the settings
  editor, and immutable during a single computation pass.

AMOUNT RULES:
  SalaryRules carry the base pay components (e.g. monthly retainer),
  Rules carry additional billable components (e.g. hosting surcharge).
  Both are summed per period; a rule can be limited to an activation
  window so raises and expiring components model cleanly.

SEE ALSO:
  - evaluate.go: Turns a ruleset plus the calendar into pending periods
  - factory/ruleset.go: JSON document <-> Ruleset conversion
*/
package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDueDateOffsetDays is applied when a ruleset does not configure
// its own payment term.
const DefaultDueDateOffsetDays = 14

// =============================================================================
// AMOUNT RULE - One pay component
// =============================================================================

// AmountRule is a single amount component of a period's base pay.
// A zero ActiveFrom/ActiveTo means the rule applies to every period.
type AmountRule struct {
	Description string
	Amount      decimal.Decimal
	ActiveFrom  YearMonth
	ActiveTo    YearMonth
}

// AppliesTo reports whether the rule is active for the period ending in ym.
func (r AmountRule) AppliesTo(ym YearMonth) bool {
	if !r.ActiveFrom.IsZero() && ym.Before(r.ActiveFrom) {
		return false
	}
	if !r.ActiveTo.IsZero() && ym.After(r.ActiveTo) {
		return false
	}
	return true
}

// =============================================================================
// RULESET
// =============================================================================

// Ruleset is a named recurring billing agreement.
type Ruleset struct {
	ID   RulesetID
	Name string

	Periodicity    Periodicity
	EntitlementDay int

	// DueDateOffsetDays is the payment term; 0 means DefaultDueDateOffsetDays.
	DueDateOffsetDays int

	// MinimizeInvoices collapses all owed periods into a single invoice
	// dated at the most recent pending period.
	MinimizeInvoices bool

	SalaryRules []AmountRule
	Rules       []AmountRule

	// Descriptions are text templates for invoice lines. Supported
	// placeholders: {name}, {month}, {year}.
	Descriptions []string

	// ActiveFrom anchors the first billable period. Periods before it are
	// never pending, independent of the invoiced-period counter.
	ActiveFrom YearMonth
}

// Validate fails fast on configuration the evaluator must not guess.
func (rs *Ruleset) Validate() error {
	if rs.ID == "" {
		return &RulesetConfigError{RulesetID: rs.ID, Field: "id", Reason: "must not be empty"}
	}
	if !rs.Periodicity.Valid() {
		return &RulesetConfigError{RulesetID: rs.ID, Field: "periodicity", Reason: "missing or unknown"}
	}
	if rs.EntitlementDay < 1 || rs.EntitlementDay > 31 {
		return &RulesetConfigError{RulesetID: rs.ID, Field: "entitlementDay", Reason: "must be 1..31"}
	}
	if rs.DueDateOffsetDays < 0 {
		return &RulesetConfigError{RulesetID: rs.ID, Field: "dueDateOffsetDays", Reason: "must not be negative"}
	}
	if rs.ActiveFrom.IsZero() {
		return &RulesetConfigError{RulesetID: rs.ID, Field: "activeFrom", Reason: "must be set"}
	}
	return nil
}

// dueOffset returns the configured payment term or the default.
func (rs *Ruleset) dueOffset() int {
	if rs.DueDateOffsetDays == 0 {
		return DefaultDueDateOffsetDays
	}
	return rs.DueDateOffsetDays
}

// BaseAmount returns the period's own base pay: the sum of all salary and
// additional rules active for the period ending in year/month, evaluated
// independently of any carryover.
func (rs *Ruleset) BaseAmount(year int, month time.Month) decimal.Decimal {
	ym := YearMonth{Year: year, Month: month}
	total := decimal.Zero
	for _, r := range rs.SalaryRules {
		if r.AppliesTo(ym) {
			total = total.Add(r.Amount)
		}
	}
	for _, r := range rs.Rules {
		if r.AppliesTo(ym) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// DescriptionFor expands the ruleset's description templates for a period.
// Lines are joined with newlines; an empty template list yields "".
func (rs *Ruleset) DescriptionFor(year int, month time.Month) string {
	if len(rs.Descriptions) == 0 {
		return ""
	}
	lines := make([]string, len(rs.Descriptions))
	for i, tpl := range rs.Descriptions {
		lines[i] = expandTemplate(tpl, rs.Name, year, month)
	}
	return strings.Join(lines, "\n")
}

func expandTemplate(tpl, name string, year int, month time.Month) string {
	s := strings.ReplaceAll(tpl, "{name}", name)
	s = strings.ReplaceAll(s, "{month}", month.String())
	s = strings.ReplaceAll(s, "{year}", strconv.Itoa(year))
	return s
}
