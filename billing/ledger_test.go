package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// OVERRIDE SUBSTITUTION LAW
// =============================================================================

func TestOverrideLedger_SubstitutesOwnBaseOnly(t *testing.T) {
	// GIVEN: A period with own base 1000 and carry-in 1000
	// WHEN: The user overrides the period total to 1200
	// THEN: The effective amount is override + carry-in, never
	//       override alone - carry from other periods is untouchable

	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)

	ledger.Set(key, dec(1200))
	effective := ledger.Apply(key, dec(1000), dec(1000))

	assert.True(t, effective.Equal(dec(2200)))
}

func TestOverrideLedger_NoOverrideReturnsCalculated(t *testing.T) {
	// GIVEN: No override for the period
	// WHEN: Applying own base 1000 and carry-in 500
	// THEN: The raw calculated total comes back

	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)

	effective := ledger.Apply(key, dec(1000), dec(500))

	assert.True(t, effective.Equal(dec(1500)))
}

func TestOverrideLedger_ClearRestoresCalculatedExactly(t *testing.T) {
	// GIVEN: An override applied on top of a computed pass
	// WHEN: The override is cleared and the pass re-applied
	// THEN: The calculated total is reproduced exactly - the ledger never
	//       mutated the underlying arithmetic

	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)

	before := ledger.Apply(key, dec(1000), dec(0))
	ledger.Set(key, dec(1234))
	_ = ledger.Apply(key, dec(1000), dec(0))
	ledger.Clear(key)
	after := ledger.Apply(key, dec(1000), dec(0))

	assert.True(t, before.Equal(after))

	calculated, ok := ledger.CalculatedTotal(key)
	require.True(t, ok)
	assert.True(t, calculated.Equal(dec(1000)))
}

// =============================================================================
// CALCULATED TOTAL BOOKKEEPING
// =============================================================================

func TestOverrideLedger_RecordsCalculatedAndBase(t *testing.T) {
	// GIVEN: A pass with carry-in
	// WHEN: Applying own base 1000, carry-in 250
	// THEN: CalculatedTotal holds the full total, ComputedBase only the
	//       period's own contribution

	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)

	ledger.Apply(key, dec(1000), dec(250))

	calculated, ok := ledger.CalculatedTotal(key)
	require.True(t, ok)
	assert.True(t, calculated.Equal(dec(1250)))

	base, ok := ledger.ComputedBase(key)
	require.True(t, ok)
	assert.True(t, base.Equal(dec(1000)))
}

func TestOverrideLedger_IsEffective(t *testing.T) {
	// GIVEN: A pass with own base 1000
	// WHEN: Overriding to 1000 vs overriding to 1200
	// THEN: Only the differing override is flagged effective

	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)
	ledger.Apply(key, dec(1000), dec(0))

	assert.False(t, ledger.IsEffective(key), "no override set")

	ledger.Set(key, dec(1000))
	assert.False(t, ledger.IsEffective(key), "override equals computed base")

	ledger.Set(key, dec(1200))
	assert.True(t, ledger.IsEffective(key))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestOverrideLedger_PruneDropsStaleKeys(t *testing.T) {
	// GIVEN: Overrides for March and April
	// WHEN: Pruning with only April live
	// THEN: March's entries are gone, April's stay

	ledger := billing.NewOverrideLedger()
	march := billing.NewPeriodKey("retainer", 2026, time.March)
	april := billing.NewPeriodKey("retainer", 2026, time.April)
	ledger.Set(march, dec(900))
	ledger.Set(april, dec(1100))

	ledger.Prune(map[billing.PeriodKey]struct{}{april: {}})

	_, ok := ledger.Override(march)
	assert.False(t, ok)
	_, ok = ledger.Override(april)
	assert.True(t, ok)
	assert.Equal(t, 1, ledger.Len())
}

func TestOverrideLedger_ResetClearsEverything(t *testing.T) {
	ledger := billing.NewOverrideLedger()
	key := billing.NewPeriodKey("retainer", 2026, time.April)
	ledger.Set(key, dec(1200))
	ledger.Apply(key, dec(1000), dec(0))

	ledger.Reset()

	assert.Equal(t, 0, ledger.Len())
	_, ok := ledger.CalculatedTotal(key)
	assert.False(t, ok)
}
