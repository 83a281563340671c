package scoutx

import "github.com/cockroachdb/errors"

// Direction is a sort direction.
type Direction string

const (
	// Asc sorts in ascending order.
	Asc Direction = "asc"
	// Desc sorts in descending order.
	Desc Direction = "desc"
)

// ErrorCode represents specific error codes for search operations.
type ErrorCode int

const (
	// ErrCodeTransport is returned when the search engine or the network fails.
	ErrCodeTransport ErrorCode = iota + 1000

	// ErrCodeIndexNotFound is returned when the target index does not exist.
	ErrCodeIndexNotFound

	// ErrCodeMalformedAggregation is returned when an aggregation result
	// does not contain the requested value.
	ErrCodeMalformedAggregation

	// ErrCodeInvalidPage is returned when pagination arguments are out of range.
	ErrCodeInvalidPage

	// ErrCodeTimeout is returned when a search operation times out.
	ErrCodeTimeout

	// ErrCodeCanceled is returned when a search operation is canceled.
	ErrCodeCanceled

	// ErrCodeBulkItemFailed is returned when the engine rejects items of a bulk request.
	ErrCodeBulkItemFailed
)

// String returns the human-readable string representation of the error code.
// This implements the fmt.Stringer interface.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeTransport:
		return "transport error"
	case ErrCodeIndexNotFound:
		return "index not found"
	case ErrCodeMalformedAggregation:
		return "malformed aggregation result"
	case ErrCodeInvalidPage:
		return "invalid page"
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeBulkItemFailed:
		return "bulk item failed"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Common errors that can be returned by search operations.
var (
	// ErrTransport is returned when the engine call fails. It is never retried.
	ErrTransport = newErrorWithCode(ErrCodeTransport, "scoutx: transport error")

	// ErrIndexNotFound is returned when the engine reports a missing index.
	// Only schema mapping recovers from it.
	ErrIndexNotFound = newErrorWithCode(ErrCodeIndexNotFound, "scoutx: index not found")

	// ErrMalformedAggregation is returned when aggregations.<field>.value is absent.
	ErrMalformedAggregation = newErrorWithCode(ErrCodeMalformedAggregation, "scoutx: malformed aggregation result")

	// ErrInvalidPage is returned for a page below 1 or a non-positive page size.
	ErrInvalidPage = newErrorWithCode(ErrCodeInvalidPage, "scoutx: invalid page")

	// ErrTimeout is returned when a search operation times out.
	ErrTimeout = newErrorWithCode(ErrCodeTimeout, "scoutx: operation timed out")

	// ErrCanceled is returned when a search operation is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "scoutx: operation canceled")

	// ErrBulkItemFailed is returned when a bulk response reports item errors.
	ErrBulkItemFailed = newErrorWithCode(ErrCodeBulkItemFailed, "scoutx: bulk item failed")
)
