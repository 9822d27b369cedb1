// Package rating turns a firm's pricing rules and a billing context into
// ordered bill line items and their totals.
package rating

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dutybill/internal/billing/condition"
	"github.com/smallbiznis/dutybill/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/dutybill/internal/pricingrule/domain"
)

const amountScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Calculator applies rules in priority order. Lines whose category equals
// the tax category are excluded from the running subtotal that later
// percentage rules are computed on.
type Calculator struct {
	taxCategory string
}

func NewCalculator(taxCategory string) *Calculator {
	taxCategory = strings.TrimSpace(taxCategory)
	if taxCategory == "" {
		taxCategory = "Tax"
	}
	return &Calculator{taxCategory: taxCategory}
}

// IsTax reports whether category is the configured tax category.
func (c *Calculator) IsTax(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), c.taxCategory)
}

// Apply evaluates rules against ctx. Rules are stable-sorted by priority so
// callers may pass them in any order. A malformed rule aborts the run.
func (c *Calculator) Apply(rules []pricingdomain.PricingRule, ctx domain.BillingContext) ([]domain.BillLineItem, error) {
	ordered := make([]pricingdomain.PricingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	running := decimal.Zero
	lines := make([]domain.BillLineItem, 0, len(ordered))

	for _, rule := range ordered {
		cond, err := condition.Parse(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %s (%s): %w", rule.ID, rule.Name, err)
		}
		if !cond.Matches(ctx) {
			continue
		}

		quantity, amount, emit, err := c.charge(rule, cond, ctx, running)
		if err != nil {
			return nil, err
		}
		if !emit {
			continue
		}

		amount = amount.Round(amountScale)
		lines = append(lines, domain.BillLineItem{
			Position:        len(lines) + 1,
			RuleID:          rule.ID,
			RuleName:        rule.Name,
			Category:        rule.Category,
			CalculationKind: string(rule.CalculationKind),
			Quantity:        quantity,
			Rate:            rule.Rate,
			Amount:          amount,
		})

		if !c.IsTax(rule.Category) {
			running = running.Add(amount)
		}
	}

	return lines, nil
}

func (c *Calculator) charge(rule pricingdomain.PricingRule, cond condition.Condition, ctx domain.BillingContext, running decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool, error) {
	if !rule.CalculationKind.Valid() {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("rule %s (%s): %w: unknown calculation kind %q", rule.ID, rule.Name, domain.ErrRuleConfiguration, rule.CalculationKind)
	}

	switch rule.CalculationKind {
	case pricingdomain.CalculationFixed:
		return decimal.NewFromInt(1), rule.Rate, true, nil
	case pricingdomain.CalculationPerDistanceUnit:
		qty := ctx.TotalKm.Sub(cond.AfterKm)
		if !qty.IsPositive() {
			return decimal.Zero, decimal.Zero, false, nil
		}
		return qty, qty.Mul(rule.Rate), true, nil
	case pricingdomain.CalculationPerTimeUnit:
		qty := ctx.Hours.Sub(cond.AfterHours)
		if !qty.IsPositive() {
			return decimal.Zero, decimal.Zero, false, nil
		}
		return qty, qty.Mul(rule.Rate), true, nil
	case pricingdomain.CalculationPerDay:
		return ctx.Days, ctx.Days.Mul(rule.Rate), true, nil
	case pricingdomain.CalculationPercentage:
		return rule.Rate, running.Mul(rule.Rate).Div(hundred), true, nil
	}
	return decimal.Zero, decimal.Zero, false, nil
}

// Summarize computes bill totals. The grand total is rounded to a whole
// unit and RoundOffAmount carries the difference.
func (c *Calculator) Summarize(lines []domain.BillLineItem) domain.BillTotals {
	subTotal := decimal.Zero
	taxAmount := decimal.Zero
	taxPercentage := decimal.Zero

	for _, line := range lines {
		if !c.IsTax(line.Category) {
			subTotal = subTotal.Add(line.Amount)
			continue
		}
		taxAmount = taxAmount.Add(line.Amount)
		if line.CalculationKind == string(pricingdomain.CalculationPercentage) {
			taxPercentage = taxPercentage.Add(line.Rate)
		}
	}

	gross := subTotal.Add(taxAmount)
	grand := gross.Round(0)

	return domain.BillTotals{
		SubTotal:       subTotal,
		TaxPercentage:  taxPercentage,
		TaxAmount:      taxAmount,
		RoundOffAmount: grand.Sub(gross),
		GrandTotal:     grand,
	}
}
