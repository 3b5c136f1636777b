/*
evaluate.go - Pending period evaluation

PURPOSE:
  Determines, from a ruleset and the calendar, which billing periods are
  currently owed and with what base amount. This is the heart of the
  engine: everything downstream (drafts, overrides, extras, merging) is
  bookkeeping around the list this file produces.

WHEN IS A PERIOD PENDING?
  A period is pending once:
  1. Its number is greater than the last fully invoiced period number, and
  2. It is not earlier than the ruleset's ActiveFrom anchor, and
  3. The as-of date has reached the entitlement day within the period's
     final month.

CARRYOVER:
  With MinimizeInvoices, all pending periods collapse into one draft dated
  at the most recent pending period; the earlier periods' own base amounts
  accumulate into its carry-in. "We didn't bill last month, so this
  month's invoice absorbs it" - money is neither created nor lost.

  Without MinimizeInvoices each pending period stands alone with zero
  carry-in: the periods are billed independently and their drafts coexist.

  Carry-in always accumulates the ORIGINAL own base amounts. An override
  on an intermediate period rewrites that period's own draft (when one
  exists), never the amount still owed from it - overriding "this month's
  pay" must not erase money owed from a prior month.

SEE ALSO:
  - draft.go: Turns pending periods into drafts, consulting the ledger
  - ledger.go: Override substitution on top of these amounts
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PENDING PERIOD
// =============================================================================

// PendingPeriod is one owed billing period, keyed by the year+month it
// ends in.
type PendingPeriod struct {
	Year   int
	Month  time.Month
	Number int

	// OwnBase is the period's own contribution, excluding carryover.
	OwnBase decimal.Decimal

	// CarryIn is the unbilled amount rolled in from earlier pending
	// periods. Non-zero only when MinimizeInvoices collapsed them.
	CarryIn decimal.Decimal
}

// Total is the period's full calculated amount: own base plus carry-in.
func (p PendingPeriod) Total() decimal.Decimal {
	return p.OwnBase.Add(p.CarryIn)
}

// =============================================================================
// EVALUATOR
// =============================================================================

// EvaluatePending returns the ordered list of billing periods still owed
// for a ruleset as of the given date. lastInvoiced is the absolute number
// of the last period already fully invoiced; pass a negative number (or
// any number before the ruleset's ActiveFrom) when nothing was invoiced
// yet. Zero pending periods yields an empty list, never an error.
func EvaluatePending(rs *Ruleset, asOf time.Time, lastInvoiced int) ([]PendingPeriod, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	first := rs.Periodicity.PeriodNumber(rs.ActiveFrom.Year, rs.ActiveFrom.Month)
	start := lastInvoiced + 1
	if start < first {
		start = first
	}

	var pending []PendingPeriod
	for n := start; ; n++ {
		year, month := rs.Periodicity.PeriodEnd(n)
		if EntitlementDate(year, month, rs.EntitlementDay).After(asOf) {
			break
		}
		pending = append(pending, PendingPeriod{
			Year:    year,
			Month:   month,
			Number:  n,
			OwnBase: rs.BaseAmount(year, month),
			CarryIn: decimal.Zero,
		})
	}

	if rs.MinimizeInvoices && len(pending) > 1 {
		return collapsePending(pending), nil
	}
	return pending, nil
}

// collapsePending folds all pending periods into the most recent one,
// rolling the earlier own base amounts into its carry-in.
func collapsePending(pending []PendingPeriod) []PendingPeriod {
	last := pending[len(pending)-1]
	carry := decimal.Zero
	for _, p := range pending[:len(pending)-1] {
		carry = carry.Add(p.OwnBase)
	}
	last.CarryIn = carry
	return []PendingPeriod{last}
}
