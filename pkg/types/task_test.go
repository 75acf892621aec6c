package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskString(t *testing.T) {
	task := Task{ID: 7, Lower: 2, Upper: 3}
	assert.Equal(t, "task 7 [2, 3]", task.String())
	assert.Equal(t, 1.0, task.Width())
}

func TestDispatchResultConstructors(t *testing.T) {
	ok := Success(4.5)
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 4.5, ok.Value)
	assert.Equal(t, -1, ok.Index)

	failed := Failure("connection refused")
	assert.False(t, failed.IsSuccess())
	assert.Equal(t, OutcomeFailure, failed.Outcome)
	assert.Equal(t, "connection refused", failed.Reason)

	timedOut := Timeout()
	assert.Equal(t, OutcomeTimeout, timedOut.Outcome)
	assert.Equal(t, "attempt timeout", timedOut.Reason)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "timeout", OutcomeTimeout.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
