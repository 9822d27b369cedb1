// Package condition parses pricing rule eligibility documents into a small
// predicate tree and evaluates it against a billing context.
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dutybill/internal/billing/domain"
)

const (
	KeyAlways     = "always"
	KeyMinKm      = "min_km"
	KeyMinHours   = "min_hours"
	KeyTripType   = "trip_type"
	KeyAfterKm    = "after_km"
	KeyAfterHours = "after_hours"
)

// Predicate is one node of a parsed condition.
type Predicate interface {
	Eval(ctx domain.BillingContext) bool
}

// Always matches every context.
type Always struct{}

func (Always) Eval(domain.BillingContext) bool { return true }

// DistanceGreaterThan matches trips strictly longer than Km.
type DistanceGreaterThan struct{ Km decimal.Decimal }

func (p DistanceGreaterThan) Eval(ctx domain.BillingContext) bool {
	return ctx.TotalKm.GreaterThan(p.Km)
}

// HoursGreaterThan matches trips strictly longer than Hours.
type HoursGreaterThan struct{ Hours decimal.Decimal }

func (p HoursGreaterThan) Eval(ctx domain.BillingContext) bool {
	return ctx.Hours.GreaterThan(p.Hours)
}

// TripTypeEquals compares the trip classification case-insensitively.
type TripTypeEquals struct{ TripType string }

func (p TripTypeEquals) Eval(ctx domain.BillingContext) bool {
	return strings.EqualFold(strings.TrimSpace(ctx.TripType), p.TripType)
}

// And matches when every child matches. An empty And matches everything.
type And []Predicate

func (a And) Eval(ctx domain.BillingContext) bool {
	for _, p := range a {
		if !p.Eval(ctx) {
			return false
		}
	}
	return true
}

// Condition is a parsed rule document: the eligibility predicate plus the
// free thresholds used by per-unit calculations.
type Condition struct {
	Predicate  Predicate
	AfterKm    decimal.Decimal
	AfterHours decimal.Decimal
}

// Matches evaluates the predicate.
func (c Condition) Matches(ctx domain.BillingContext) bool {
	if c.Predicate == nil {
		return true
	}
	return c.Predicate.Eval(ctx)
}

// Parse decodes a condition document. An empty or null document yields
// Always. Any structural defect wraps domain.ErrRuleConfiguration.
func Parse(doc []byte) (Condition, error) {
	cond := Condition{Predicate: Always{}}

	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cond, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Condition{}, fmt.Errorf("%w: condition is not a json object: %v", domain.ErrRuleConfiguration, err)
	}
	if dec.More() {
		return Condition{}, fmt.Errorf("%w: trailing data after condition", domain.ErrRuleConfiguration)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var preds And
	for _, key := range keys {
		value := raw[key]
		if value == nil {
			continue
		}

		switch key {
		case KeyAlways:
			b, ok := value.(bool)
			if !ok || !b {
				return Condition{}, fmt.Errorf("%w: %s must be true", domain.ErrRuleConfiguration, key)
			}
		case KeyMinKm:
			v, err := number(key, value)
			if err != nil {
				return Condition{}, err
			}
			preds = append(preds, DistanceGreaterThan{Km: v})
		case KeyMinHours:
			v, err := number(key, value)
			if err != nil {
				return Condition{}, err
			}
			preds = append(preds, HoursGreaterThan{Hours: v})
		case KeyTripType:
			s, ok := value.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return Condition{}, fmt.Errorf("%w: %s must be a non-empty string", domain.ErrRuleConfiguration, key)
			}
			preds = append(preds, TripTypeEquals{TripType: strings.TrimSpace(s)})
		case KeyAfterKm:
			v, err := threshold(key, value)
			if err != nil {
				return Condition{}, err
			}
			cond.AfterKm = v
		case KeyAfterHours:
			v, err := threshold(key, value)
			if err != nil {
				return Condition{}, err
			}
			cond.AfterHours = v
		default:
			return Condition{}, fmt.Errorf("%w: unknown condition key %q", domain.ErrRuleConfiguration, key)
		}
	}

	switch len(preds) {
	case 0:
	case 1:
		cond.Predicate = preds[0]
	default:
		cond.Predicate = preds
	}
	return cond, nil
}

// Matches parses doc and evaluates it against ctx.
func Matches(doc []byte, ctx domain.BillingContext) (bool, error) {
	cond, err := Parse(doc)
	if err != nil {
		return false, err
	}
	return cond.Matches(ctx), nil
}

func number(key string, value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s is not a number", domain.ErrRuleConfiguration, key)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", domain.ErrRuleConfiguration, key)
	}
}

func threshold(key string, value any) (decimal.Decimal, error) {
	v, err := number(key, value)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must not be negative", domain.ErrRuleConfiguration, key)
	}
	return v, nil
}
