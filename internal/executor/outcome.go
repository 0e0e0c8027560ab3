package executor

import "fmt"

// CancelError terminates a job permanently with no retry, same as Discard
// but intended for "this work is no longer wanted" rather than "this work
// can never succeed" (spec.md §4.5 outcome `cancel`).
type CancelError struct{ Reason string }

func (e *CancelError) Error() string { return e.Reason }

// DiscardError terminates a job permanently with no retry: the handler has
// determined the error can never succeed (spec.md §4.5 outcome `discard`).
type DiscardError struct{ Reason string }

func (e *DiscardError) Error() string { return e.Reason }

// SnoozeError returns the job to queued after Seconds. It is not a failure,
// but the executions_count increment made when the job was claimed is kept,
// so the snoozed run still counts toward MaxAttempts (spec.md §4.5 outcome
// `snooze`).
type SnoozeError struct{ Seconds int }

func (e *SnoozeError) Error() string {
	return fmt.Sprintf("snoozed for %ds", e.Seconds)
}

// InterruptError signals the worker was shut down mid-run. It MUST NOT
// consume a retry attempt (spec.md §4.5 "Interrupt").
type InterruptError struct{ Reason string }

func (e *InterruptError) Error() string { return e.Reason }

// kind classifies a Run() result into the six outcomes of spec.md §4.5
// step 4. "other" folds into ok at the persistence layer — a handler that
// returns a non-error, non-special value is simply successful.
type kind string

const (
	kindOK        kind = "ok"
	kindError     kind = "error"
	kindCancel    kind = "cancel"
	kindDiscard   kind = "discard"
	kindSnooze    kind = "snooze"
	kindInterrupt kind = "interrupt"
)

func classify(err error) (kind, string, int) {
	if err == nil {
		return kindOK, "", 0
	}
	switch e := err.(type) {
	case *CancelError:
		return kindCancel, e.Reason, 0
	case *DiscardError:
		return kindDiscard, e.Reason, 0
	case *SnoozeError:
		return kindSnooze, "", e.Seconds
	case *InterruptError:
		return kindInterrupt, e.Reason, 0
	default:
		return kindError, err.Error(), 0
	}
}
