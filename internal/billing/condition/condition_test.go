package condition

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dutybill/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(km string, minutes int64, tripType string) domain.BillingContext {
	hours := decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
	return domain.BillingContext{
		TotalKm:      decimal.RequireFromString(km),
		TotalMinutes: minutes,
		Hours:        hours,
		Days:         hours.Div(decimal.NewFromInt(24)).Ceil(),
		TripType:     tripType,
	}
}

func TestParseEmptyDocumentIsAlways(t *testing.T) {
	for _, doc := range []string{"", "  ", "null", "{}"} {
		cond, err := Parse([]byte(doc))
		require.NoError(t, err, doc)
		assert.True(t, cond.Matches(testContext("0", 0, "Local")), doc)
		assert.True(t, cond.AfterKm.IsZero())
		assert.True(t, cond.AfterHours.IsZero())
	}
}

func TestMatches(t *testing.T) {
	ctx := testContext("120", 180, "Outstation")

	cases := []struct {
		name string
		doc  string
		want bool
	}{
		{"always", `{"always": true}`, true},
		{"distance above", `{"min_km": 100}`, true},
		{"distance equal is not greater", `{"min_km": 120}`, false},
		{"fractional distance", `{"min_km": 119.5}`, true},
		{"hours above", `{"min_hours": 2}`, true},
		{"hours below", `{"min_hours": 3}`, false},
		{"trip type case insensitive", `{"trip_type": "outstation"}`, true},
		{"trip type mismatch", `{"trip_type": "Local"}`, false},
		{"conjunction all true", `{"min_km": 50, "trip_type": "OUTSTATION"}`, true},
		{"conjunction one false", `{"min_km": 50, "trip_type": "Local"}`, false},
		{"null value is unconstrained", `{"min_km": null}`, true},
		{"thresholds are not predicates", `{"after_km": 500, "after_hours": 100}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Matches([]byte(tc.doc), ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	cond, err := Parse([]byte(`{"after_km": 80, "after_hours": 4}`))
	require.NoError(t, err)
	assert.True(t, cond.AfterKm.Equal(decimal.NewFromInt(80)))
	assert.True(t, cond.AfterHours.Equal(decimal.NewFromInt(4)))
	assert.IsType(t, Always{}, cond.Predicate)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	docs := []string{
		`[1,2]`,
		`"always"`,
		`{"always": false}`,
		`{"always": "yes"}`,
		`{"min_km": "far"}`,
		`{"min_km": "100"}`,
		`{"after_hours": "4"}`,
		`{"min_km": true}`,
		`{"trip_type": 7}`,
		`{"trip_type": " "}`,
		`{"after_km": -1}`,
		`{"max_km": 10}`,
		`{"min_km": 1} {}`,
		`{"min_km":`,
	}

	for _, doc := range docs {
		_, err := Parse([]byte(doc))
		require.Error(t, err, doc)
		assert.ErrorIs(t, err, domain.ErrRuleConfiguration, doc)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	doc := []byte(`{"trip_type": "Local", "min_hours": 1, "min_km": 5}`)
	first, err := Parse(doc)
	require.NoError(t, err)
	second, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
