package revenue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the engine and its stores. Callers should
// match with errors.Is; stores wrap these so driver-level detail is
// preserved in the chain.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("revenue: not found")

	// ErrInvalidAmount indicates a zero or negative monetary amount.
	ErrInvalidAmount = errors.New("revenue: amount must be positive")

	// ErrUnknownSource indicates an entry source outside the closed set.
	ErrUnknownSource = errors.New("revenue: unknown entry source")

	// ErrUnknownStatus indicates an entry status outside the closed set.
	ErrUnknownStatus = errors.New("revenue: unknown entry status")

	// ErrInvalidExpiry indicates a coupon expiry that is not in the future.
	ErrInvalidExpiry = errors.New("revenue: expiry must be in the future")

	// ErrDuplicateCode indicates a coupon code that already exists.
	ErrDuplicateCode = errors.New("revenue: coupon code already exists")

	// ErrCodeGenerationExhausted indicates automatic code generation gave up
	// after the configured number of collision retries.
	ErrCodeGenerationExhausted = errors.New("revenue: coupon code generation exhausted retries")

	// ErrCouponNotFound indicates no coupon exists for the given code or id.
	ErrCouponNotFound = errors.New("revenue: coupon not found")

	// ErrCouponAlreadyUsed indicates a single-use coupon that has already
	// been redeemed or administratively expired.
	ErrCouponAlreadyUsed = errors.New("revenue: coupon already used")

	// ErrCouponExpired indicates a coupon past its expiry timestamp.
	ErrCouponExpired = errors.New("revenue: coupon expired")

	// ErrRedemptionCapReached indicates a lifetime coupon at its redemption cap.
	ErrRedemptionCapReached = errors.New("revenue: redemption cap reached")

	// ErrVersionConflict indicates a versioned update lost a concurrent race.
	ErrVersionConflict = errors.New("revenue: version conflict")

	// ErrStoreTimeout indicates the backing store did not answer in time.
	// Distinct from ErrNotFound: the record's existence is unknown.
	ErrStoreTimeout = errors.New("revenue: store timeout")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("revenue: store closed")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("revenue: validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// MultiError aggregates several validation errors into one.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "revenue: no errors"
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}

	return strings.Join(msgs, "; ")
}

// Unwrap returns the aggregated errors for errors.Is / errors.As matching.
func (e *MultiError) Unwrap() []error { return e.Errors }

// Append adds a non-nil error to the aggregate.
func (e *MultiError) Append(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrOrNil returns the MultiError if it holds anything, nil otherwise.
func (e *MultiError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}

	return e
}

// IsNotFound reports whether err indicates a missing record of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCouponNotFound)
}

// IsConflict reports whether err indicates a state conflict: an already
// used coupon, an exhausted redemption cap, a duplicate code, or a lost
// versioned update.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCouponAlreadyUsed) ||
		errors.Is(err, ErrRedemptionCapReached) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrVersionConflict)
}

// IsValidation reports whether err stems from invalid input.
func IsValidation(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}

	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownSource) ||
		errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrInvalidExpiry)
}

// IsRetryable reports whether the operation may succeed if retried.
// Timeouts and deadline expiry qualify; conflicts and validation do not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
