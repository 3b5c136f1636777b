package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// EXTRA VALUE ALLOCATION
// =============================================================================

func TestAllocateExtra_WholeAmountToSingleDraft(t *testing.T) {
	// GIVEN: One pending 1000 draft and 250 of classified extra income
	// WHEN: Allocating
	// THEN: The draft becomes 1250 and nothing is unallocated; the input
	//       slice is untouched

	drafts := []billing.InvoiceDraft{pendingDraft("retainer", 2026, time.March)}

	out, unallocated := billing.AllocateExtra(drafts, dec(250), "")

	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(dec(1250)))
	assert.True(t, unallocated.IsZero())
	assert.True(t, drafts[0].Amount.Equal(dec(1000)), "input not mutated")
}

func TestAllocateExtra_MostCurrentPendingDraftAbsorbs(t *testing.T) {
	// GIVEN: Pending drafts for March and April, no sink configured
	// WHEN: Allocating 250
	// THEN: April (the most temporally current) absorbs everything

	drafts := []billing.InvoiceDraft{
		pendingDraft("retainer", 2026, time.March),
		pendingDraft("retainer", 2026, time.April),
	}

	out, unallocated := billing.AllocateExtra(drafts, dec(250), "")

	assert.True(t, out[0].Amount.Equal(dec(1000)))
	assert.True(t, out[1].Amount.Equal(dec(1250)))
	assert.True(t, unallocated.IsZero())
}

func TestAllocateExtra_SinkRulesetPreferred(t *testing.T) {
	// GIVEN: Pending drafts for two rulesets; "retainer" is the sink
	// WHEN: Allocating, even though the other ruleset has a later draft
	// THEN: The sink ruleset's most recent pending draft absorbs

	drafts := []billing.InvoiceDraft{
		pendingDraft("retainer", 2026, time.March),
		pendingDraft("hosting", 2026, time.April),
	}

	out, unallocated := billing.AllocateExtra(drafts, dec(250), "retainer")

	assert.True(t, out[0].Amount.Equal(dec(1250)), "sink draft absorbs")
	assert.True(t, out[1].Amount.Equal(dec(1000)))
	assert.True(t, unallocated.IsZero())
}

func TestAllocateExtra_SinkWithoutPendingDraftFallsBack(t *testing.T) {
	// GIVEN: The configured sink ruleset has no pending draft
	// WHEN: Allocating
	// THEN: The most current pending draft overall absorbs instead

	drafts := []billing.InvoiceDraft{pendingDraft("hosting", 2026, time.April)}

	out, unallocated := billing.AllocateExtra(drafts, dec(250), "retainer")

	assert.True(t, out[0].Amount.Equal(dec(1250)))
	assert.True(t, unallocated.IsZero())
}

func TestAllocateExtra_DoneDraftNeverAbsorbs(t *testing.T) {
	// GIVEN: A done April draft and a pending March draft
	// WHEN: Allocating 250
	// THEN: The pending March draft absorbs even though April is later

	done := pendingDraft("retainer", 2026, time.April)
	done.Status = billing.StatusDone
	drafts := []billing.InvoiceDraft{pendingDraft("retainer", 2026, time.March), done}

	out, unallocated := billing.AllocateExtra(drafts, dec(250), "")

	assert.True(t, out[0].Amount.Equal(dec(1250)))
	assert.True(t, out[1].Amount.Equal(dec(1000)))
	assert.True(t, unallocated.IsZero())
}

func TestAllocateExtra_NoPendingDraft_FullyUnallocated(t *testing.T) {
	// GIVEN: No pending draft at all
	// WHEN: Allocating 250
	// THEN: Nothing is fabricated; the full amount comes back unallocated
	//       for the caller to surface

	done := pendingDraft("retainer", 2026, time.March)
	done.Status = billing.StatusDone

	out, unallocated := billing.AllocateExtra([]billing.InvoiceDraft{done}, dec(250), "")

	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(dec(1000)))
	assert.True(t, unallocated.Equal(dec(250)))
}

func TestAllocateExtra_ZeroExtraIsNoop(t *testing.T) {
	drafts := []billing.InvoiceDraft{pendingDraft("retainer", 2026, time.March)}

	out, unallocated := billing.AllocateExtra(drafts, decimal.Zero, "")

	assert.True(t, out[0].Amount.Equal(dec(1000)))
	assert.True(t, unallocated.IsZero())
}
