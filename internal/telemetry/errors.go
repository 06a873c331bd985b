package telemetry

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable failure reported in a RangeResponse.
type ErrorCode string

const (
	CodeInvalidDateRange   ErrorCode = "INVALID_DATE_RANGE"
	CodeInvalidTimezone    ErrorCode = "INVALID_TIMEZONE"
	CodeDateOutOfRange     ErrorCode = "DATE_OUT_OF_RANGE"
	CodeScanFailed         ErrorCode = "SCAN_FAILED"
	CodeRecomputeCancelled ErrorCode = "RECOMPUTE_CANCELLED"
	CodeAggregateFailed    ErrorCode = "AGGREGATE_FAILED"
)

// IsValidation reports whether the code is a request-validation failure.
func (c ErrorCode) IsValidation() bool {
	switch c {
	case CodeInvalidDateRange, CodeInvalidTimezone, CodeDateOutOfRange:
		return true
	default:
		return false
	}
}

// CodedError attaches an ErrorCode to an underlying error.
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error { return e.Err }

func codedError(code ErrorCode, format string, args ...any) error {
	return &CodedError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the ErrorCode carried by err, defaulting to
// CodeAggregateFailed.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return CodeAggregateFailed
}
