package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
)

func recomputeInput(rs *billing.Ruleset, asOf time.Time) billing.RecomputeInput {
	return billing.RecomputeInput{
		Rulesets:     []billing.Ruleset{*rs},
		AsOf:         asOf,
		LastInvoiced: map[billing.RulesetID]int{},
		Ledger:       billing.NewOverrideLedger(),
		Edits:        billing.NewEditTracker(),
	}
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestRecompute_DeterministicForFixedInputs(t *testing.T) {
	// GIVEN: Fixed rulesets, clock and ledgers
	// WHEN: Running two passes back to back
	// THEN: The draft lists are identical

	in := recomputeInput(retainerRuleset(), date(2026, time.April, 10))

	first, err := billing.Recompute(in)
	require.NoError(t, err)
	second, err := billing.Recompute(in)
	require.NoError(t, err)

	assert.Equal(t, first.Drafts, second.Drafts)
	assert.True(t, first.Unallocated.Equal(second.Unallocated))
}

func TestRecompute_DefaultsLastInvoicedToActiveFrom(t *testing.T) {
	// GIVEN: No last-invoiced entry for the ruleset
	// WHEN: Recomputing in April for a ruleset active since January
	// THEN: Every period since ActiveFrom is pending

	in := recomputeInput(retainerRuleset(), date(2026, time.April, 10))

	result, err := billing.Recompute(in)

	require.NoError(t, err)
	require.Len(t, result.Drafts, 4) // Jan..Apr
	assert.Equal(t, billing.DraftIDFor("retainer", 2026, time.January), result.Drafts[0].ID)
	assert.Equal(t, billing.DraftIDFor("retainer", 2026, time.April), result.Drafts[3].ID)
}

// =============================================================================
// OVERRIDE LIFECYCLE ACROSS PASSES
// =============================================================================

func TestRecompute_OverrideThenClearRestoresCalculated(t *testing.T) {
	// GIVEN: A pass, then an override on one period
	// WHEN: Recomputing with the override, clearing it, recomputing again
	// THEN: The amount goes 1000 -> 1200 -> 1000 exactly

	in := recomputeInput(retainerRuleset(), date(2026, time.January, 10))
	id := billing.DraftIDFor("retainer", 2026, time.January)
	key := billing.NewPeriodKey("retainer", 2026, time.January)

	result, err := billing.Recompute(in)
	require.NoError(t, err)
	in.Previous = result.Drafts
	require.True(t, result.Drafts[0].Amount.Equal(dec(1000)))

	in.Ledger.Set(key, dec(1200))
	result, err = billing.Recompute(in)
	require.NoError(t, err)
	in.Previous = result.Drafts
	require.Equal(t, id, result.Drafts[0].ID)
	assert.True(t, result.Drafts[0].Amount.Equal(dec(1200)))

	in.Ledger.Clear(key)
	result, err = billing.Recompute(in)
	require.NoError(t, err)
	assert.True(t, result.Drafts[0].Amount.Equal(dec(1000)))
}

func TestRecompute_OverrideOnCollapsedPeriodKeepsCarry(t *testing.T) {
	// GIVEN: MinimizeInvoices with March carried into April (1000+1000)
	// WHEN: Overriding April's own pay to 1200
	// THEN: The draft shows 2200 - carry-in rides on top of the override

	rs := retainerRuleset()
	rs.MinimizeInvoices = true
	in := recomputeInput(rs, date(2026, time.April, 10))
	in.LastInvoiced[rs.ID] = rs.Periodicity.PeriodNumber(2026, time.February)

	result, err := billing.Recompute(in)
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)
	require.True(t, result.Drafts[0].Amount.Equal(dec(2000)))

	in.Previous = result.Drafts
	in.Ledger.Set(billing.NewPeriodKey("retainer", 2026, time.April), dec(1200))
	result, err = billing.Recompute(in)
	require.NoError(t, err)
	assert.True(t, result.Drafts[0].Amount.Equal(dec(2200)))
}

// =============================================================================
// EDITS AND EXTRA ACROSS PASSES
// =============================================================================

func TestRecompute_EditSurvivesExtraChange(t *testing.T) {
	// GIVEN: A tracked description edit on a draft
	// WHEN: Extra value changes and triggers another pass
	// THEN: The edit is still applied while the amount reflects the extra

	in := recomputeInput(retainerRuleset(), date(2026, time.January, 10))
	id := billing.DraftIDFor("retainer", 2026, time.January)

	result, err := billing.Recompute(in)
	require.NoError(t, err)
	in.Previous = result.Drafts

	in.Edits.Record(id, billing.DraftEdit{Description: strPtr("Custom work")})
	in.ExtraValue = dec(250)
	result, err = billing.Recompute(in)
	require.NoError(t, err)

	require.Len(t, result.Drafts, 1)
	assert.Equal(t, "Custom work", result.Drafts[0].Description)
	assert.True(t, result.Drafts[0].Amount.Equal(dec(1250)))
	assert.True(t, result.Unallocated.IsZero())
}

func TestRecompute_ExtraUnallocatedWithoutPendingDrafts(t *testing.T) {
	// GIVEN: Everything already invoiced, 250 of extra value
	// WHEN: Recomputing
	// THEN: No draft exists to absorb it; the remainder is surfaced

	rs := retainerRuleset()
	in := recomputeInput(rs, date(2026, time.January, 10))
	in.LastInvoiced[rs.ID] = rs.Periodicity.PeriodNumber(2026, time.January)
	in.ExtraValue = dec(250)

	result, err := billing.Recompute(in)

	require.NoError(t, err)
	assert.Empty(t, result.Drafts)
	assert.True(t, result.Unallocated.Equal(dec(250)))
}

// =============================================================================
// INVARIANT VIOLATIONS
// =============================================================================

func TestRecompute_DuplicateDraftIDIsFatal(t *testing.T) {
	// GIVEN: Two rulesets sharing an id, producing colliding draft ids
	// WHEN: Recomputing
	// THEN: The pass fails with DuplicateDraftError, never last-write-wins

	rs := retainerRuleset()
	in := recomputeInput(rs, date(2026, time.January, 10))
	in.Rulesets = append(in.Rulesets, *rs)

	_, err := billing.Recompute(in)

	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrDuplicateDraftID)

	var dup *billing.DuplicateDraftError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, billing.DraftIDFor("retainer", 2026, time.January), dup.ID)
}

func TestRecompute_PrunesStaleOverrides(t *testing.T) {
	// GIVEN: An override for a period that is no longer pending
	// WHEN: Recomputing
	// THEN: The stale entry is pruned from the ledger

	rs := retainerRuleset()
	in := recomputeInput(rs, date(2026, time.February, 10))
	in.LastInvoiced[rs.ID] = rs.Periodicity.PeriodNumber(2026, time.January)
	in.Ledger.Set(billing.NewPeriodKey("retainer", 2025, time.December), dec(900))

	_, err := billing.Recompute(in)

	require.NoError(t, err)
	assert.Equal(t, 0, in.Ledger.Len())
}
