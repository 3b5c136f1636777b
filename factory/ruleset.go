/*
Package factory provides JSON to Go ruleset conversion.

PURPOSE:
  Converts JSON ruleset documents into billing.Ruleset values. This keeps
  billing agreements configurable without code changes - the settings
  editor works on JSON documents, the store persists them, and the
  factory turns them into the engine's strongly typed model.

JSON SCHEMA:
  {
    "id": "retainer",
    "name": "Monthly Retainer",
    "periodicity": "monthly",
    "entitlement_day": 5,
    "due_date_offset_days": 14,
    "minimize_invoices": false,
    "active_from": "2026-01",
    "salary_rules": [
      {"description": "Base retainer", "amount": "1000"}
    ],
    "rules": [
      {"description": "Hosting", "amount": "49.90", "active_from": "2026-03"}
    ],
    "descriptions": ["Services {month} {year} - {name}"]
  }

  Amounts are decimal strings, never floats - a billing document must not
  lose cents to binary floating point.

VALIDATION:
  Parsing validates via billing.Ruleset.Validate: a document missing its
  periodicity or entitlement day is rejected with the ruleset id named,
  never patched up with guessed defaults.

SEE ALSO:
  - billing/ruleset.go: The target model and its validation rules
  - store/sqlite: Persists the JSON documents this package parses
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesetJSON is the JSON representation of a ruleset document.
type RulesetJSON struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Periodicity       string           `json:"periodicity"`
	EntitlementDay    int              `json:"entitlement_day"`
	DueDateOffsetDays int              `json:"due_date_offset_days,omitempty"`
	MinimizeInvoices  bool             `json:"minimize_invoices,omitempty"`
	ActiveFrom        string           `json:"active_from"` // "2026-01"
	SalaryRules       []AmountRuleJSON `json:"salary_rules,omitempty"`
	Rules             []AmountRuleJSON `json:"rules,omitempty"`
	Descriptions      []string         `json:"descriptions,omitempty"`
}

// AmountRuleJSON is one amount component. Amount is a decimal string.
type AmountRuleJSON struct {
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	ActiveFrom  string `json:"active_from,omitempty"`
	ActiveTo    string `json:"active_to,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRuleset converts a JSON document into a validated ruleset.
func ParseRuleset(doc string) (*billing.Ruleset, error) {
	var j RulesetJSON
	if err := json.Unmarshal([]byte(doc), &j); err != nil {
		return nil, fmt.Errorf("parse ruleset document: %w", err)
	}
	return FromJSON(j)
}

// FromJSON converts the JSON shape into a validated billing.Ruleset.
func FromJSON(j RulesetJSON) (*billing.Ruleset, error) {
	rs := &billing.Ruleset{
		ID:                billing.RulesetID(j.ID),
		Name:              j.Name,
		Periodicity:       billing.Periodicity(j.Periodicity),
		EntitlementDay:    j.EntitlementDay,
		DueDateOffsetDays: j.DueDateOffsetDays,
		MinimizeInvoices:  j.MinimizeInvoices,
		Descriptions:      j.Descriptions,
	}

	if j.ActiveFrom != "" {
		ym, err := parseYearMonth(j.ActiveFrom)
		if err != nil {
			return nil, fmt.Errorf("ruleset %q: active_from: %w", j.ID, err)
		}
		rs.ActiveFrom = ym
	}

	var err error
	if rs.SalaryRules, err = parseRules(j.ID, "salary_rules", j.SalaryRules); err != nil {
		return nil, err
	}
	if rs.Rules, err = parseRules(j.ID, "rules", j.Rules); err != nil {
		return nil, err
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

func parseRules(rulesetID, field string, in []AmountRuleJSON) ([]billing.AmountRule, error) {
	rules := make([]billing.AmountRule, 0, len(in))
	for i, rj := range in {
		amount, err := decimal.NewFromString(rj.Amount)
		if err != nil {
			return nil, fmt.Errorf("ruleset %q: %s[%d].amount %q: %w", rulesetID, field, i, rj.Amount, err)
		}
		rule := billing.AmountRule{Description: rj.Description, Amount: amount}
		if rj.ActiveFrom != "" {
			if rule.ActiveFrom, err = parseYearMonth(rj.ActiveFrom); err != nil {
				return nil, fmt.Errorf("ruleset %q: %s[%d].active_from: %w", rulesetID, field, i, err)
			}
		}
		if rj.ActiveTo != "" {
			if rule.ActiveTo, err = parseYearMonth(rj.ActiveTo); err != nil {
				return nil, fmt.Errorf("ruleset %q: %s[%d].active_to: %w", rulesetID, field, i, err)
			}
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return rules, nil
}

func parseYearMonth(s string) (billing.YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return billing.YearMonth{}, fmt.Errorf("expected YYYY-MM, got %q", s)
	}
	return billing.YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// =============================================================================
// SERIALIZATION - for the settings editor round trip
// =============================================================================

// ToJSON converts a ruleset back into its JSON shape.
func ToJSON(rs *billing.Ruleset) RulesetJSON {
	return RulesetJSON{
		ID:                string(rs.ID),
		Name:              rs.Name,
		Periodicity:       string(rs.Periodicity),
		EntitlementDay:    rs.EntitlementDay,
		DueDateOffsetDays: rs.DueDateOffsetDays,
		MinimizeInvoices:  rs.MinimizeInvoices,
		ActiveFrom:        formatYearMonth(rs.ActiveFrom),
		SalaryRules:       rulesToJSON(rs.SalaryRules),
		Rules:             rulesToJSON(rs.Rules),
		Descriptions:      rs.Descriptions,
	}
}

// RulesetDocument renders the ruleset as a JSON document for storage.
func RulesetDocument(rs *billing.Ruleset) (string, error) {
	b, err := json.Marshal(ToJSON(rs))
	if err != nil {
		return "", fmt.Errorf("serialize ruleset %q: %w", rs.ID, err)
	}
	return string(b), nil
}

func rulesToJSON(rules []billing.AmountRule) []AmountRuleJSON {
	if len(rules) == 0 {
		return nil
	}
	out := make([]AmountRuleJSON, len(rules))
	for i, r := range rules {
		out[i] = AmountRuleJSON{
			Description: r.Description,
			Amount:      r.Amount.String(),
			ActiveFrom:  formatYearMonth(r.ActiveFrom),
			ActiveTo:    formatYearMonth(r.ActiveTo),
		}
	}
	return out
}

func formatYearMonth(ym billing.YearMonth) string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
