package platform_test

import (
	"testing"
	"time"

	"github.com/xraph/replydesk/platform"
)

func TestRetrierDecide(t *testing.T) {
	r := platform.NewRetrier(3, []time.Duration{10 * time.Millisecond, 50 * time.Millisecond})

	tests := []struct {
		name    string
		result  platform.Result
		attempt int
		want    platform.Decision
	}{
		{"200 sent", platform.Result{StatusCode: 200}, 1, platform.Sent},
		{"400 fails", platform.Result{StatusCode: 400}, 1, platform.Fail},
		{"401 fails", platform.Result{StatusCode: 401}, 1, platform.Fail},
		{"429 retries", platform.Result{StatusCode: 429}, 1, platform.Retry},
		{"429 exhausted", platform.Result{StatusCode: 429}, 3, platform.Fail},
		{"500 retries", platform.Result{StatusCode: 500}, 2, platform.Retry},
		{"500 exhausted", platform.Result{StatusCode: 500}, 3, platform.Fail},
		{"transport error retries", platform.Result{Error: "connection refused"}, 1, platform.Retry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Decide(tt.result, tt.attempt); got != tt.want {
				t.Fatalf("Decide = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrierBackoff(t *testing.T) {
	r := platform.NewRetrier(5, []time.Duration{time.Second, 2 * time.Second})

	for attempt, want := range map[int]time.Duration{0: time.Second, 1: time.Second, 2: 2 * time.Second, 9: 2 * time.Second} {
		if got := r.Backoff(attempt); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
	if platform.NewRetrier(0, nil).MaxAttempts() != 1 {
		t.Error("attempt budget must be at least 1")
	}
	if platform.NewRetrier(2, nil).Backoff(1) != 0 {
		t.Error("empty schedule should not wait")
	}
}
