package taskapi

import (
	"fmt"
	"time"
)

// Result is the outcome of AwaitResult: exactly one of Success, Failed or
// TimedOut.
type Result interface {
	isResult()
	// Message describes the outcome for operators.
	Message() string
}

// Success carries the result locations of a finished task.
type Success struct {
	URLs    []string
	Elapsed time.Duration
}

// Failed carries the provider's error message.
type Failed struct {
	Reason string
}

// TimedOut reports that the budget ran out while the task was still running.
type TimedOut struct {
	Elapsed time.Duration
	Polls   int
}

func (Success) isResult()  {}
func (Failed) isResult()   {}
func (TimedOut) isResult() {}

func (s Success) Message() string {
	return fmt.Sprintf("generated %d result(s) in %s", len(s.URLs), s.Elapsed.Round(time.Second))
}

func (f Failed) Message() string {
	return f.Reason
}

func (t TimedOut) Message() string {
	return fmt.Sprintf("generation timed out after %s (%d polls)", t.Elapsed.Round(time.Second), t.Polls)
}
