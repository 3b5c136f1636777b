package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// AD-HOC ID SPACE
// =============================================================================

func TestAdhocID_DistinctFromPeriodicIDs(t *testing.T) {
	id := billing.NewAdhocID()

	assert.True(t, billing.IsAdhocID(id))
	assert.False(t, billing.IsAdhocID(billing.DraftIDFor("retainer", 2026, time.March)))
	assert.NotEqual(t, id, billing.NewAdhocID(), "ids are random, never derived")
}

// =============================================================================
// AD-HOC LIST
// =============================================================================

func TestAdhocList_AddMintsIDAndStatus(t *testing.T) {
	// GIVEN: An invoice without id or status
	// WHEN: Adding it
	// THEN: It gets an ad-hoc id and starts pending

	list := billing.NewAdhocList()

	inv := list.Add(billing.AdhocInvoice{Label: "Workshop", Amount: dec(500)})

	assert.True(t, billing.IsAdhocID(inv.ID))
	assert.Equal(t, billing.StatusPending, inv.Status)

	got, ok := list.Get(inv.ID)
	require.True(t, ok)
	assert.Equal(t, inv, got)
}

func TestAdhocList_PendingTotalFeedsExtraValue(t *testing.T) {
	// GIVEN: Two pending invoices and one done
	// WHEN: Summing the pending total
	// THEN: Only pending amounts count

	list := billing.NewAdhocList()
	list.Add(billing.AdhocInvoice{Label: "A", Amount: dec(500)})
	list.Add(billing.AdhocInvoice{Label: "B", Amount: dec(250)})
	done := list.Add(billing.AdhocInvoice{Label: "C", Amount: dec(100)})
	require.True(t, list.MarkDone(done.ID))

	assert.True(t, list.PendingTotal().Equal(dec(750)))
}

func TestAdhocList_AllOrderedByCreation(t *testing.T) {
	// GIVEN: Invoices created at distinct times, inserted out of order
	// WHEN: Listing
	// THEN: Output is ordered by creation time

	list := billing.NewAdhocList()
	later := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	list.Add(billing.AdhocInvoice{Label: "second", Amount: dec(1), CreatedAt: later})
	list.Add(billing.AdhocInvoice{Label: "first", Amount: dec(1), CreatedAt: earlier})

	all := list.All()

	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Label)
	assert.Equal(t, "second", all[1].Label)
}
