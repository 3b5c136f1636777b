/*
Package billing provides the invoice draft computation and reconciliation engine.

PURPOSE:
  This package contains the pure, side-effect-free core of the billing
  application: given a set of rulesets, the calendar, the caller-owned
  override ledger and edit tracker, it computes the list of invoice drafts
  that are currently due. It performs no I/O and holds no state between
  calls - everything mutable is owned by the caller and passed in.

KEY CONCEPTS IN THIS FILE (types.go):
  - RulesetID / DraftID / PeriodKey: Type-safe identifiers
  - InvoiceDraft: An in-memory, not-yet-finalized invoice record
  - DraftStatus: pending -> done, one-way within a session
  - ExtraItem: Classified variable income handed in by external collaborators

DESIGN PRINCIPLES:
  1. Determinism: Identical inputs produce byte-for-byte identical drafts
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Stable identity: Draft ids are a pure function of ruleset + period,
     never reference identity - this is what makes reconciliation safe
  4. Projection, not state: Drafts are recomputed from sources every pass

SEE ALSO:
  - ruleset.go: The recurring billing agreement model
  - evaluate.go: Pending period evaluation
  - recompute.go: The single entry point callers invoke
*/
package billing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RulesetID string

// DraftID identifies an invoice draft. For periodic drafts it equals the
// draft's PeriodKey; ad-hoc invoices use "adhoc:<uuid>" (see adhoc.go).
type DraftID string

// PeriodKey is the stable unit of addressing for overrides and calculated
// totals: "<rulesetID>-<year>-<month>". Unique within a computation pass.
type PeriodKey string

// NewPeriodKey derives the period key for a ruleset's billing period.
func NewPeriodKey(id RulesetID, year int, month time.Month) PeriodKey {
	return PeriodKey(fmt.Sprintf("%s-%04d-%02d", id, year, int(month)))
}

// DraftIDFor derives the deterministic id for a periodic draft.
// It is intentionally identical to the period key so that overrides,
// calculated totals and tracked edits all address the same unit.
func DraftIDFor(id RulesetID, year int, month time.Month) DraftID {
	return DraftID(NewPeriodKey(id, year, month))
}

// =============================================================================
// DRAFT STATUS - pending -> done, one-way
// =============================================================================

type DraftStatus string

const (
	StatusPending DraftStatus = "pending"
	StatusDone    DraftStatus = "done"
)

// =============================================================================
// INVOICE DRAFT - Recomputed projection, never persisted directly
// =============================================================================

// InvoiceDraft is one not-yet-finalized invoice. It is rebuilt from
// Ruleset + calendar + ledgers + tracked edits on every recomputation;
// only Status and tracked edit fields survive from the previous pass.
type InvoiceDraft struct {
	ID        DraftID
	RulesetID RulesetID
	Year      int
	Month     time.Month

	Label       string
	Amount      decimal.Decimal
	Description string

	// InvoiceNoOverride is a user-entered invoice number. Its first two
	// characters may encode a day-of-month for the issue date.
	InvoiceNoOverride string

	// CustomerOverride redirects the invoice to a different customer.
	CustomerOverride string

	Status DraftStatus

	IssueDate time.Time
	DueDate   time.Time
}

// PeriodKey returns the draft's period addressing key.
func (d InvoiceDraft) PeriodKey() PeriodKey {
	return NewPeriodKey(d.RulesetID, d.Year, d.Month)
}

// EffectiveIssueDate returns the issue date, honoring a day-of-month
// encoded in the first two characters of the invoice number override.
// "07INV-2026" issued in March 2026 is issued on March 7. Exactly two
// leading digits encode a day; a signed prefix like "+7" encodes nothing.
func (d InvoiceDraft) EffectiveIssueDate() time.Time {
	if len(d.InvoiceNoOverride) >= 2 && isDigit(d.InvoiceNoOverride[0]) && isDigit(d.InvoiceNoOverride[1]) {
		if day, err := strconv.Atoi(d.InvoiceNoOverride[:2]); err == nil {
			if day >= 1 && day <= DaysInMonth(d.IssueDate.Year(), d.IssueDate.Month()) {
				return time.Date(d.IssueDate.Year(), d.IssueDate.Month(), day, 0, 0, 0, 0, time.UTC)
			}
		}
	}
	return d.IssueDate
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// =============================================================================
// EXTRA ITEMS - Variable income from external classifiers
// =============================================================================

// ExtraItem is one classified variable-income item (freelance file,
// one-off payment). Classification happens outside this engine; only the
// already-converted numeric value matters here.
type ExtraItem struct {
	ID     string
	Label  string
	Value  decimal.Decimal
	Source string
}

// SumExtraItems returns the total value of all items.
func SumExtraItems(items []ExtraItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Value)
	}
	return total
}
