package executor

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantK   kind
		wantSec int
	}{
		{"nil is ok", nil, kindOK, 0},
		{"plain error retries", errors.New("boom"), kindError, 0},
		{"cancel is terminal", &CancelError{Reason: "no longer wanted"}, kindCancel, 0},
		{"discard is terminal", &DiscardError{Reason: "permanent"}, kindDiscard, 0},
		{"snooze carries seconds", &SnoozeError{Seconds: 30}, kindSnooze, 30},
		{"interrupt doesn't consume a retry", &InterruptError{Reason: "shutdown"}, kindInterrupt, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k, _, seconds := classify(c.err)
			if k != c.wantK {
				t.Errorf("classify() kind = %q, want %q", k, c.wantK)
			}
			if seconds != c.wantSec {
				t.Errorf("classify() seconds = %d, want %d", seconds, c.wantSec)
			}
		})
	}
}
