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
// TEST HELPERS - shared across the package's test files
// =============================================================================

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// retainerRuleset bills 1000/month from January 2026 on, due on the 5th.
func retainerRuleset() *billing.Ruleset {
	return &billing.Ruleset{
		ID:             "retainer",
		Name:           "Monthly Retainer",
		Periodicity:    billing.PeriodicityMonthly,
		EntitlementDay: 5,
		ActiveFrom:     billing.YearMonth{Year: 2026, Month: time.January},
		SalaryRules: []billing.AmountRule{
			{Description: "Base retainer", Amount: dec(1000)},
		},
	}
}

// =============================================================================
// PENDING PERIOD EVALUATION
// =============================================================================

func TestEvaluatePending_NothingDueBeforeEntitlementDay(t *testing.T) {
	// GIVEN: A ruleset due on the 5th, nothing invoiced yet
	// WHEN: Evaluating on January 4, 2026
	// THEN: No period is pending yet

	rs := retainerRuleset()

	pending, err := billing.EvaluatePending(rs, date(2026, time.January, 4), -1)

	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEvaluatePending_IndependentPeriods(t *testing.T) {
	// GIVEN: Two unbilled months (March, April), MinimizeInvoices off
	// WHEN: Evaluating in April after the entitlement day
	// THEN: Both periods are pending independently, each with its own
	//       base and zero carry-in

	rs := retainerRuleset()
	lastInvoiced := rs.Periodicity.PeriodNumber(2026, time.February)

	pending, err := billing.EvaluatePending(rs, date(2026, time.April, 10), lastInvoiced)

	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, time.March, pending[0].Month)
	assert.True(t, pending[0].OwnBase.Equal(dec(1000)))
	assert.True(t, pending[0].CarryIn.IsZero())

	assert.Equal(t, time.April, pending[1].Month)
	assert.True(t, pending[1].OwnBase.Equal(dec(1000)))
	assert.True(t, pending[1].CarryIn.IsZero())
}

func TestEvaluatePending_MinimizeCollapsesWithCarry(t *testing.T) {
	// GIVEN: Two unbilled months at 1000 each, MinimizeInvoices on
	// WHEN: Evaluating in April
	// THEN: A single April period carries March's base; no money is
	//       created or lost across the collapse

	rs := retainerRuleset()
	rs.MinimizeInvoices = true
	lastInvoiced := rs.Periodicity.PeriodNumber(2026, time.February)

	pending, err := billing.EvaluatePending(rs, date(2026, time.April, 10), lastInvoiced)

	require.NoError(t, err)
	require.Len(t, pending, 1)

	p := pending[0]
	assert.Equal(t, 2026, p.Year)
	assert.Equal(t, time.April, p.Month)
	assert.True(t, p.OwnBase.Equal(dec(1000)), "own base stays the period's own")
	assert.True(t, p.CarryIn.Equal(dec(1000)), "march rolls into carry-in")
	assert.True(t, p.Total().Equal(dec(2000)), "conservation across the collapse")
}

func TestEvaluatePending_ActiveFromAnchorsFirstPeriod(t *testing.T) {
	// GIVEN: A ruleset active from March 2026, nothing invoiced
	// WHEN: Evaluating in April
	// THEN: January and February are never pending

	rs := retainerRuleset()
	rs.ActiveFrom = billing.YearMonth{Year: 2026, Month: time.March}

	pending, err := billing.EvaluatePending(rs, date(2026, time.April, 10), -1)

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, time.March, pending[0].Month)
	assert.Equal(t, time.April, pending[1].Month)
}

func TestEvaluatePending_QuarterlyKeyedByFinalMonth(t *testing.T) {
	// GIVEN: A quarterly ruleset active from Q1 2026
	// WHEN: Evaluating in July, nothing invoiced
	// THEN: Q1 and Q2 are pending, keyed by March and June

	rs := retainerRuleset()
	rs.Periodicity = billing.PeriodicityQuarterly

	pending, err := billing.EvaluatePending(rs, date(2026, time.July, 1), -1)

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, time.March, pending[0].Month)
	assert.Equal(t, time.June, pending[1].Month)
}

func TestEvaluatePending_EntitlementDayClampedToMonthLength(t *testing.T) {
	// GIVEN: A ruleset due on the 31st
	// WHEN: Evaluating on February 28, 2026 (28-day month)
	// THEN: February is already pending; day 31 clamps to the 28th

	rs := retainerRuleset()
	rs.EntitlementDay = 31
	lastInvoiced := rs.Periodicity.PeriodNumber(2026, time.January)

	pending, err := billing.EvaluatePending(rs, date(2026, time.February, 28), lastInvoiced)

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, time.February, pending[0].Month)
}

func TestEvaluatePending_InvalidRulesetFailsFast(t *testing.T) {
	// GIVEN: A ruleset missing its periodicity
	// WHEN: Evaluating
	// THEN: A configuration error names the ruleset and field; nothing is
	//       guessed

	rs := retainerRuleset()
	rs.Periodicity = ""

	_, err := billing.EvaluatePending(rs, date(2026, time.April, 10), -1)

	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrRulesetInvalid)

	var cfgErr *billing.RulesetConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "periodicity", cfgErr.Field)
}

func TestEvaluatePending_AmountRuleActivationWindow(t *testing.T) {
	// GIVEN: A 1000 retainer plus a 50 hosting rule active from March
	// WHEN: Evaluating February and March bases
	// THEN: February is 1000, March is 1050

	rs := retainerRuleset()
	rs.Rules = []billing.AmountRule{
		{
			Description: "Hosting",
			Amount:      dec(50),
			ActiveFrom:  billing.YearMonth{Year: 2026, Month: time.March},
		},
	}

	assert.True(t, rs.BaseAmount(2026, time.February).Equal(dec(1000)))
	assert.True(t, rs.BaseAmount(2026, time.March).Equal(dec(1050)))
}
