/*
adhoc.go - Ad-hoc invoices outside any periodic schedule

PURPOSE:
  One-off invoices entered by the user. They live in their own list,
  never interleaved with periodic drafts, and their running total feeds
  the extra value layered onto the periodic drafts.

IDENTITY:
  Ad-hoc ids are "adhoc:<uuid>" - random rather than derived, because
  there is no period to derive from. The prefix keeps the two id spaces
  from ever colliding.
*/
package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const adhocIDPrefix = "adhoc:"

// NewAdhocID mints a fresh ad-hoc draft id.
func NewAdhocID() DraftID {
	return DraftID(adhocIDPrefix + uuid.NewString())
}

// IsAdhocID reports whether the id belongs to the ad-hoc id space.
func IsAdhocID(id DraftID) bool {
	return strings.HasPrefix(string(id), adhocIDPrefix)
}

// =============================================================================
// AD-HOC INVOICE
// =============================================================================

// AdhocInvoice is a one-off invoice outside any ruleset's schedule.
type AdhocInvoice struct {
	ID          DraftID
	Label       string
	Amount      decimal.Decimal
	Description string
	Customer    string
	Status      DraftStatus
	CreatedAt   time.Time
}

// =============================================================================
// AD-HOC LIST - Separately managed, never merged with periodic drafts
// =============================================================================

// AdhocList holds the session's ad-hoc invoices. Mutations must come
// from the single logical thread driving the caller.
type AdhocList struct {
	invoices map[DraftID]AdhocInvoice
}

// NewAdhocList returns an empty list.
func NewAdhocList() *AdhocList {
	return &AdhocList{invoices: make(map[DraftID]AdhocInvoice)}
}

// Add inserts an invoice, minting an id if it has none.
func (l *AdhocList) Add(inv AdhocInvoice) AdhocInvoice {
	if inv.ID == "" {
		inv.ID = NewAdhocID()
	}
	if inv.Status == "" {
		inv.Status = StatusPending
	}
	l.invoices[inv.ID] = inv
	return inv
}

// Get returns an invoice by id.
func (l *AdhocList) Get(id DraftID) (AdhocInvoice, bool) {
	inv, ok := l.invoices[id]
	return inv, ok
}

// Remove deletes an invoice by id.
func (l *AdhocList) Remove(id DraftID) {
	delete(l.invoices, id)
}

// MarkDone transitions an invoice to done. One-way.
func (l *AdhocList) MarkDone(id DraftID) bool {
	inv, ok := l.invoices[id]
	if !ok {
		return false
	}
	inv.Status = StatusDone
	l.invoices[id] = inv
	return true
}

// All returns the invoices ordered by creation time, then id for
// deterministic output.
func (l *AdhocList) All() []AdhocInvoice {
	out := make([]AdhocInvoice, 0, len(l.invoices))
	for _, inv := range l.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PendingTotal sums the amounts of all pending ad-hoc invoices. This is
// the running total that feeds the extra value allocator.
func (l *AdhocList) PendingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range l.invoices {
		if inv.Status == StatusPending {
			total = total.Add(inv.Amount)
		}
	}
	return total
}
