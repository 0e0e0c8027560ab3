package executor

import (
	"testing"
	"time"
)

func TestConstantBackoff_IgnoresAttempt(t *testing.T) {
	policy := ConstantBackoff(defaultBackoffSeconds)
	if got := policy(1); got != defaultBackoffSeconds {
		t.Errorf("attempt 1: got %s, want %s", got, defaultBackoffSeconds)
	}
	if got := policy(10); got != defaultBackoffSeconds {
		t.Errorf("attempt 10: got %s, want %s", got, defaultBackoffSeconds)
	}
}

func TestExponentialBackoff_GrowsAndCaps(t *testing.T) {
	ceiling := 100 * time.Second
	policy := ExponentialBackoff(2, ceiling, false)

	first := policy(1)
	second := policy(2)
	if second <= first {
		t.Errorf("expected backoff to grow with attempt: attempt1=%s attempt2=%s", first, second)
	}

	capped := policy(20)
	if capped > ceiling {
		t.Errorf("expected backoff capped at ceiling, got %s", capped)
	}
}
