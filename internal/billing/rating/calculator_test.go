package rating

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dutybill/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/dutybill/internal/pricingrule/domain"
	tripdomain "github.com/smallbiznis/dutybill/internal/trip/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rule(id int64, name, category string, kind pricingdomain.CalculationKind, rate string, priority int, cond string) pricingdomain.PricingRule {
	r := pricingdomain.PricingRule{
		ID:              snowflake.ID(id),
		FirmID:          snowflake.ID(7),
		Name:            name,
		Category:        category,
		CalculationKind: kind,
		Rate:            dec(rate),
		Priority:        priority,
		IsActive:        true,
	}
	if cond != "" {
		r.Condition = datatypes.JSON(cond)
	}
	return r
}

func tripContext(km string, minutes int64, destination *string) domain.BillingContext {
	return domain.BuildContext(tripdomain.Trip{
		ID:           snowflake.ID(1),
		FirmID:       snowflake.ID(7),
		CustomerID:   snowflake.ID(9),
		TotalKm:      dec(km),
		TotalMinutes: minutes,
		Destination:  destination,
	}, "Completed")
}

func amounts(lines []domain.BillLineItem) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Amount.StringFixed(2))
	}
	return out
}

func fareRules() []pricingdomain.PricingRule {
	return []pricingdomain.PricingRule{
		rule(1, "Base fare", "Fare", pricingdomain.CalculationFixed, "100", 1, `{"always": true}`),
		rule(2, "Extra km", "Fare", pricingdomain.CalculationPerDistanceUnit, "10", 2, `{"after_km": 80}`),
	}
}

func TestApply_FixedPlusDistanceOverAllowance(t *testing.T) {
	calc := NewCalculator("Tax")
	lines, err := calc.Apply(fareRules(), tripContext("120", 180, nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"100.00", "400.00"}, amounts(lines))
	assert.True(t, lines[1].Quantity.Equal(dec("40")))
	assert.Equal(t, 1, lines[0].Position)
	assert.Equal(t, 2, lines[1].Position)

	totals := calc.Summarize(lines)
	assert.Equal(t, "500.00", totals.SubTotal.StringFixed(2))
	assert.True(t, totals.TaxAmount.IsZero())
}

func TestApply_PercentageTaxOnFareSubtotal(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := append(fareRules(), rule(3, "GST", "Tax", pricingdomain.CalculationPercentage, "18", 3, ""))

	lines, err := calc.Apply(rules, tripContext("120", 180, nil))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "90.00", lines[2].Amount.StringFixed(2))
	assert.True(t, lines[2].Quantity.Equal(dec("18")))

	totals := calc.Summarize(lines)
	assert.Equal(t, "500.00", totals.SubTotal.StringFixed(2))
	assert.Equal(t, "90.00", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "18.00", totals.TaxPercentage.StringFixed(2))
	assert.Equal(t, "590.00", totals.GrandTotal.StringFixed(2))
	assert.True(t, totals.RoundOffAmount.IsZero())
}

func TestApply_SortsByPriorityStable(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := []pricingdomain.PricingRule{
		rule(3, "GST", "Tax", pricingdomain.CalculationPercentage, "10", 5, ""),
		rule(1, "Night", "Fare", pricingdomain.CalculationFixed, "50", 1, ""),
		rule(2, "Toll", "Fare", pricingdomain.CalculationFixed, "20", 1, ""),
	}

	lines, err := calc.Apply(rules, tripContext("10", 30, nil))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "Night", lines[0].RuleName)
	assert.Equal(t, "Toll", lines[1].RuleName)
	assert.Equal(t, "7.00", lines[2].Amount.StringFixed(2))
}

func TestApply_PercentageBaseExcludesTaxLines(t *testing.T) {
	calc := NewCalculator("tax")
	rules := []pricingdomain.PricingRule{
		rule(1, "Base", "Fare", pricingdomain.CalculationFixed, "200", 1, ""),
		rule(2, "CGST", "Tax", pricingdomain.CalculationPercentage, "9", 2, ""),
		rule(3, "SGST", "TAX", pricingdomain.CalculationPercentage, "9", 3, ""),
	}

	lines, err := calc.Apply(rules, tripContext("10", 30, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"200.00", "18.00", "18.00"}, amounts(lines))

	totals := calc.Summarize(lines)
	assert.Equal(t, "18.00", totals.TaxPercentage.StringFixed(2))
	assert.Equal(t, "236.00", totals.GrandTotal.StringFixed(2))
}

func TestApply_PriorityInterleavingIsPreserved(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := []pricingdomain.PricingRule{
		rule(1, "Base", "Fare", pricingdomain.CalculationFixed, "100", 1, ""),
		rule(2, "Service", "Fare", pricingdomain.CalculationPercentage, "10", 2, ""),
		rule(3, "Late fee", "Fare", pricingdomain.CalculationFixed, "50", 3, ""),
	}

	lines, err := calc.Apply(rules, tripContext("10", 30, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"100.00", "10.00", "50.00"}, amounts(lines))
}

func TestApply_PerUnitRulesOmitNonPositiveQuantity(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := []pricingdomain.PricingRule{
		rule(1, "Extra km", "Fare", pricingdomain.CalculationPerDistanceUnit, "10", 1, `{"after_km": 120}`),
		rule(2, "Extra hours", "Fare", pricingdomain.CalculationPerTimeUnit, "100", 2, `{"after_hours": 4}`),
	}

	lines, err := calc.Apply(rules, tripContext("120", 180, nil))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestApply_PerTimeAndPerDay(t *testing.T) {
	calc := NewCalculator("Tax")
	dest := "Pune"
	rules := []pricingdomain.PricingRule{
		rule(1, "Extra hours", "Fare", pricingdomain.CalculationPerTimeUnit, "100", 1, `{"after_hours": 8}`),
		rule(2, "Driver allowance", "Allowance", pricingdomain.CalculationPerDay, "300", 2, `{"trip_type": "outstation"}`),
		rule(3, "Local only", "Fare", pricingdomain.CalculationFixed, "999", 3, `{"trip_type": "Local"}`),
	}

	// 1590 minutes = 26.5 hours = 2 days rounded up.
	lines, err := calc.Apply(rules, tripContext("300", 1590, &dest))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Quantity.Equal(dec("18.5")))
	assert.Equal(t, "1850.00", lines[0].Amount.StringFixed(2))
	assert.True(t, lines[1].Quantity.Equal(dec("2")))
	assert.Equal(t, "600.00", lines[1].Amount.StringFixed(2))
}

func TestApply_RoundsEachLine(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := []pricingdomain.PricingRule{
		rule(1, "Per km", "Fare", pricingdomain.CalculationPerDistanceUnit, "3.333", 1, ""),
		rule(2, "GST", "Tax", pricingdomain.CalculationPercentage, "5", 2, ""),
	}

	lines, err := calc.Apply(rules, tripContext("10.5", 30, nil))
	require.NoError(t, err)
	// 10.5 * 3.333 = 34.9965
	assert.Equal(t, "35.00", lines[0].Amount.StringFixed(2))
	assert.Equal(t, "1.75", lines[1].Amount.StringFixed(2))

	totals := calc.Summarize(lines)
	assert.Equal(t, "37.00", totals.GrandTotal.StringFixed(2))
	assert.Equal(t, "0.25", totals.RoundOffAmount.StringFixed(2))
	assert.True(t, totals.GrandTotal.Equal(totals.SubTotal.Add(totals.TaxAmount).Round(0)))
	assert.True(t, totals.RoundOffAmount.Equal(totals.GrandTotal.Sub(totals.SubTotal.Add(totals.TaxAmount))))
}

func TestApply_Deterministic(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := append(fareRules(), rule(3, "GST", "Tax", pricingdomain.CalculationPercentage, "18", 3, ""))
	ctx := tripContext("120", 180, nil)

	first, err := calc.Apply(rules, ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := calc.Apply(rules, ctx)
		require.NoError(t, err)
		assert.Equal(t, amounts(first), amounts(again))
		assert.Equal(t, calc.Summarize(first), calc.Summarize(again))
	}
}

func TestApply_SubtotalConsistency(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := append(fareRules(),
		rule(3, "Parking", "Extras", pricingdomain.CalculationFixed, "45.5", 3, ""),
		rule(4, "GST", "Tax", pricingdomain.CalculationPercentage, "12", 4, ""),
	)

	lines, err := calc.Apply(rules, tripContext("150", 200, nil))
	require.NoError(t, err)

	expected := decimal.Zero
	for _, l := range lines {
		if l.Category != "Tax" {
			expected = expected.Add(l.Amount)
		}
	}
	assert.True(t, calc.Summarize(lines).SubTotal.Equal(expected))
}

func TestApply_RuleConfigurationAbortsRun(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := append(fareRules(), rule(3, "Broken", "Fare", pricingdomain.CalculationFixed, "1", 3, `{"min_km": "lots"}`))

	lines, err := calc.Apply(rules, tripContext("120", 180, nil))
	require.Error(t, err)
	assert.Nil(t, lines)
	assert.True(t, domain.IsRuleConfiguration(err))
}

func TestApply_UnknownCalculationKind(t *testing.T) {
	calc := NewCalculator("Tax")
	rules := []pricingdomain.PricingRule{rule(1, "Odd", "Fare", pricingdomain.CalculationKind("PER_STOP"), "1", 1, "")}

	lines, err := calc.Apply(rules, tripContext("1", 1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRuleConfiguration)
	assert.Contains(t, err.Error(), `"PER_STOP"`)
	assert.Nil(t, lines)
}

func TestNewCalculatorDefaultsTaxCategory(t *testing.T) {
	calc := NewCalculator("  ")
	assert.True(t, calc.IsTax("TAX"))
	assert.False(t, calc.IsTax("Fare"))
}
