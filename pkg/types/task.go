package types

import "fmt"

// IntegrationRequest is the unit of work submitted to the coordinator.
type IntegrationRequest struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Task is one sub-interval of an IntegrationRequest.
// ID is diagnostic only; a requeued task carries the same ID and bounds.
type Task struct {
	ID    uint64
	Lower float64
	Upper float64
}

// String implements fmt.Stringer for log output.
func (t Task) String() string {
	return fmt.Sprintf("task %d [%g, %g]", t.ID, t.Lower, t.Upper)
}

// Width returns the length of the task interval.
func (t Task) Width() float64 {
	return t.Upper - t.Lower
}
