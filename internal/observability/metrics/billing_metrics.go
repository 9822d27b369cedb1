package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OperationPreview  = "preview"
	OperationGenerate = "generate"
	OperationFinalize = "finalize"
	OperationCancel   = "cancel"
)

const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeConflict    = "conflict"
	OutcomeRuleConfig  = "rule_configuration"
	OutcomeStoreFailed = "store_error"
	OutcomeInvalid     = "invalid_request"
)

// BillingMetrics exposes Prometheus instruments for the bill lifecycle.
type BillingMetrics struct {
	operations  *prometheus.CounterVec
	ruleErrors  prometheus.Counter
	grandTotals prometheus.Histogram
}

// NewBillingMetrics registers the billing instruments on reg.
func NewBillingMetrics(reg prometheus.Registerer) (*BillingMetrics, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dutybill_bill_operations_total",
		Help: "Counts bill lifecycle operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	ruleErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dutybill_rule_configuration_errors_total",
		Help: "Counts billing runs aborted by a malformed pricing rule condition.",
	})

	grandTotals := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dutybill_bill_grand_total",
		Help:    "Grand totals of generated bills.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000},
	})

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if ruleErrors, err = register(reg, ruleErrors); err != nil {
		return nil, err
	}
	if grandTotals, err = register(reg, grandTotals); err != nil {
		return nil, err
	}

	return &BillingMetrics{
		operations:  operations,
		ruleErrors:  ruleErrors,
		grandTotals: grandTotals,
	}, nil
}

func (m *BillingMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(strings.TrimSpace(operation), strings.TrimSpace(outcome)).Inc()
}

func (m *BillingMetrics) RecordRuleConfigurationError() {
	if m == nil {
		return
	}
	m.ruleErrors.Inc()
}

func (m *BillingMetrics) ObserveGrandTotal(total float64) {
	if m == nil {
		return
	}
	m.grandTotals.Observe(total)
}

// register reuses an already registered collector so repeated wiring in tests shares state.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
