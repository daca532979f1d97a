package errors

import (
	"fmt"
	"time"
)

// HTTP error type identifiers returned by the reporting API.
const (
	HttpInternalError     = "internal_error"
	HttpInvalidParams     = "invalid_parameters"
	HttpUnknownDataset    = "unknown_dataset"
	HttpInvalidRangeError = "invalid_range"
)

// ErrorResponse is the error response body for reporting API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// InvalidRangeError is returned when a query range has start > end.
// Fatal to the call; nothing is routed.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// UnknownDatasetError is returned when a dataset base name is not registered.
// New datasets must be added to the typed registry; there is no fallthrough.
type UnknownDatasetError struct {
	Base string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q", e.Base)
}

// RollupComputationError marks one (level, store, period) unit failure.
// Caught and tallied at the unit boundary; never aborts the batch.
type RollupComputationError struct {
	Level     string
	StoreID   string
	PeriodKey string
	Err       error
}

func (e *RollupComputationError) Error() string {
	return fmt.Sprintf("rollup %s store=%s period=%s: %v", e.Level, e.StoreID, e.PeriodKey, e.Err)
}

func (e *RollupComputationError) Unwrap() error { return e.Err }

// VerificationFailedError marks one archival window whose post-move check
// found rows still live in the hot tier. Aborts that window only.
type VerificationFailedError struct {
	Table       string
	WindowStart time.Time
	WindowEnd   time.Time
	Remaining   int64
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("archive verification failed for %s [%s, %s]: %d rows remain in hot tier",
		e.Table, e.WindowStart.Format("2006-01-02"), e.WindowEnd.Format("2006-01-02"), e.Remaining)
}

// ConnectionError marks a tier as unreachable. Fatal to the current unit of
// work; the external scheduler retries on its next cadence.
type ConnectionError struct {
	Tier string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s tier unreachable: %v", e.Tier, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
