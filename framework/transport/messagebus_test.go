package transport

import (
	"testing"
	"time"
)

func TestBatchResult_ShouldRetry(t *testing.T) {
	result := BatchResult{RetryIDs: []string{"1", "3"}}

	if !result.ShouldRetry("1") || !result.ShouldRetry("3") {
		t.Error("Expected listed ids to be retried")
	}
	if result.ShouldRetry("2") {
		t.Error("Expected unlisted id to be acknowledged")
	}
}

func TestExponentialBackoffRetryPolicy(t *testing.T) {
	policy := &ExponentialBackoffRetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		MaxAttempts:  3,
	}

	tests := []struct {
		attempt int
		delay   time.Duration
		retry   bool
	}{
		{attempt: 1, delay: 100 * time.Millisecond, retry: true},
		{attempt: 2, delay: 200 * time.Millisecond, retry: true},
		{attempt: 3, delay: 400 * time.Millisecond, retry: false},
		{attempt: 10, delay: time.Second, retry: false},
	}

	for _, tt := range tests {
		if got := policy.GetDelay(tt.attempt); got != tt.delay {
			t.Errorf("attempt %d: expected delay %v, got %v", tt.attempt, tt.delay, got)
		}
		if got := policy.ShouldRetry(tt.attempt); got != tt.retry {
			t.Errorf("attempt %d: expected retry %v, got %v", tt.attempt, tt.retry, got)
		}
	}
}
