// Package businessflow contains the core business logic and use cases for commission settlement
package businessflow

import (
	"errors"
	"fmt"
)

// Error kinds. Every business error unwraps to exactly one of them.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrStateConflict     = errors.New("state conflict")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrGatewayFailure    = errors.New("payment gateway failure")
	ErrPartialFailure    = errors.New("partial failure")
)

// kindError is a case-specific sentinel classified under one kind
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Business flow error constants
var (
	// Lookup errors
	ErrCommissionNotFound = newKindError(ErrNotFound, "commission not found")
	ErrFeeNotFound        = newKindError(ErrNotFound, "commission fee not found")
	ErrSettlementNotFound = newKindError(ErrNotFound, "settlement not found")

	// Input errors
	ErrPropertyIDRequired      = newKindError(ErrValidation, "property ID is required")
	ErrCommissionIDRequired    = newKindError(ErrValidation, "commission ID is required")
	ErrFeeIDRequired           = newKindError(ErrValidation, "fee ID is required")
	ErrAgentIDRequired         = newKindError(ErrValidation, "agent ID is required")
	ErrReviewerIDRequired      = newKindError(ErrValidation, "reviewer ID is required")
	ErrInvalidCommissionType   = newKindError(ErrValidation, "commission type must be BUYING or RENTAL")
	ErrInvalidCommissionRate   = newKindError(ErrValidation, "commission rate must be greater than 0 and at most 100")
	ErrInvalidPrice            = newKindError(ErrValidation, "last price must be positive")
	ErrCommissionValueTooLow   = newKindError(ErrValidation, "commission value rounds to zero")
	ErrPropertyMismatch        = newKindError(ErrValidation, "commission does not belong to the property")
	ErrRejectReasonRequired    = newKindError(ErrValidation, "reject reason is required")
	ErrInvalidSalaryMonth      = newKindError(ErrValidation, "salary month must be formatted as MM/YYYY")
	ErrNegativeAdjustment      = newKindError(ErrValidation, "bonus and penalty cannot be negative")
	ErrInvalidPage             = newKindError(ErrValidation, "page must be at least 1")
	ErrInvalidPageSize         = newKindError(ErrValidation, "page size must be between 1 and 100")
	ErrStartDateAfterEndDate   = newKindError(ErrValidation, "start date cannot be after end date")
	ErrMalformedWebhook        = newKindError(ErrValidation, "malformed webhook payload")
	ErrWebhookOrderCodeUnknown = newKindError(ErrNotFound, "no commission fee for webhook order code")

	// State machine errors
	ErrCommissionNotProcessing = newKindError(ErrStateConflict, "commission is not processing")
	ErrCommissionAlreadyOpen   = newKindError(ErrStateConflict, "property already has a processing commission")
	ErrFeeNotProcessing        = newKindError(ErrStateConflict, "commission fee is not processing")
	ErrClaimAlreadyProcessing  = newKindError(ErrStateConflict, "a claim is already processing for this commission")
	ErrReviewInProgress        = newKindError(ErrStateConflict, "another review of this fee is in progress")
	ErrSettlementExists        = newKindError(ErrStateConflict, "settlement already recorded for this agent and month")

	// Trust boundary errors
	ErrWebhookSignature = newKindError(ErrSignatureMismatch, "webhook signature does not verify")
	ErrCheckoutFailed   = newKindError(ErrGatewayFailure, "payment gateway did not issue a checkout")

	// Saga errors
	ErrPropertyCompletionPending = newKindError(ErrPartialFailure, "fee confirmed but property completion is pending")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

func IsSignatureMismatch(err error) bool {
	return errors.Is(err, ErrSignatureMismatch)
}

func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrGatewayFailure)
}

func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}

// Kind returns the kind err is classified under, or nil for unclassified errors
func Kind(err error) error {
	for _, kind := range []error{
		ErrPartialFailure,
		ErrSignatureMismatch,
		ErrGatewayFailure,
		ErrValidation,
		ErrNotFound,
		ErrStateConflict,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// codeOf returns the business code carried by err, if any
func codeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Cause returns the most specific message for err, skipping BusinessError wrappers
func Cause(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return err.Error()
}

// ErrorCode returns the code to expose for err: its kind when classified, otherwise its business code
func ErrorCode(err error) string {
	switch Kind(err) {
	case ErrValidation:
		return "VALIDATION_ERROR"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrStateConflict:
		return "STATE_CONFLICT"
	case ErrSignatureMismatch:
		return "SIGNATURE_ERROR"
	case ErrGatewayFailure:
		return "GATEWAY_ERROR"
	case ErrPartialFailure:
		return "PARTIAL_FAILURE"
	}
	if c := codeOf(err); c != "" {
		return c
	}
	return "INTERNAL_ERROR"
}
