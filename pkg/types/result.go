package types

import "time"

// Outcome classifies a single dispatch attempt.
type Outcome int

const (
	// OutcomeSuccess means the worker returned a numeric result.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means a connection or protocol error, or no live worker.
	OutcomeFailure
	// OutcomeTimeout means the attempt did not finish within the attempt timeout.
	OutcomeTimeout
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// DispatchResult is the outcome of one dispatch attempt.
// Exactly one of Value (success) or Reason (failure, timeout) is meaningful.
type DispatchResult struct {
	Outcome Outcome
	Value   float64
	Reason  string

	// Worker identifies the registry entry the attempt used. Index is -1 when
	// no worker could be picked.
	Index      int
	Generation uint64
	Address    string

	Latency time.Duration
}

// Success builds a successful result.
func Success(value float64) DispatchResult {
	return DispatchResult{Outcome: OutcomeSuccess, Value: value, Index: -1}
}

// Failure builds a failed result.
func Failure(reason string) DispatchResult {
	return DispatchResult{Outcome: OutcomeFailure, Reason: reason, Index: -1}
}

// Timeout builds a timed out result.
func Timeout() DispatchResult {
	return DispatchResult{Outcome: OutcomeTimeout, Reason: ErrAttemptTimeout.Error(), Index: -1}
}

// IsSuccess reports whether the attempt produced a value.
func (r DispatchResult) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess
}
