package domain

import "errors"

var (
	ErrInvalidTripID       = errors.New("invalid_trip_id")
	ErrInvalidBillID       = errors.New("invalid_bill_id")
	ErrInvalidCancelReason = errors.New("invalid_cancel_reason")

	ErrTripNotFound = errors.New("trip_not_found")
	ErrBillNotFound = errors.New("bill_not_found")

	ErrBillAlreadyFinal         = errors.New("bill_already_final")
	ErrBillNotDraft             = errors.New("bill_not_draft")
	ErrBillAlreadyCancelled     = errors.New("bill_already_cancelled")
	ErrConcurrentBillGeneration = errors.New("concurrent_bill_generation")
	ErrBillGenerationInProgress = errors.New("bill_generation_in_progress")

	ErrRuleConfiguration = errors.New("rule_configuration_error")
)

// IsNotFound reports a missing trip or bill.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTripNotFound) || errors.Is(err, ErrBillNotFound)
}

// IsInvalidTransition reports a rejected lifecycle transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrBillAlreadyFinal) ||
		errors.Is(err, ErrBillNotDraft) ||
		errors.Is(err, ErrBillAlreadyCancelled) ||
		errors.Is(err, ErrConcurrentBillGeneration) ||
		errors.Is(err, ErrBillGenerationInProgress)
}

// IsRuleConfiguration reports a malformed pricing rule.
func IsRuleConfiguration(err error) bool {
	return errors.Is(err, ErrRuleConfiguration)
}

// IsValidation reports malformed caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTripID) ||
		errors.Is(err, ErrInvalidBillID) ||
		errors.Is(err, ErrInvalidCancelReason)
}
