package poll

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type status struct {
	Value string
}

func pendingWhile(values ...string) func(status) bool {
	return func(s status) bool {
		for _, v := range values {
			if s.Value == v {
				return true
			}
		}
		return false
	}
}

func TestUntilImmediateSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(ctx context.Context) (status, error) {
		calls++
		return status{Value: "DONE"}, nil
	}

	start := time.Now()
	result, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"),
		WithInterval(time.Second), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Until returned error: %v", err)
	}

	if result.Value != "DONE" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", calls)
	}
	// no interval sleep may have happened on the zero-wait path
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected immediate return, took %s", elapsed)
	}
}

func TestUntilEventualSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(ctx context.Context) (status, error) {
		calls++
		if calls <= 2 {
			return status{Value: "IN_PROGRESS"}, nil
		}
		return status{Value: "DONE"}, nil
	}

	result, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"),
		WithInterval(10*time.Millisecond), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Until returned error: %v", err)
	}

	if result.Value != "DONE" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestUntilTimeout(t *testing.T) {
	t.Parallel()

	const (
		interval = 20 * time.Millisecond
		timeout  = 100 * time.Millisecond
	)

	op := func(ctx context.Context) (status, error) {
		return status{Value: "IN_PROGRESS"}, nil
	}

	start := time.Now()
	result, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"),
		WithInterval(interval), WithTimeout(timeout))
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}

	if elapsed < timeout {
		t.Fatalf("failed before budget elapsed: %s < %s", elapsed, timeout)
	}
	// overrun past the budget is bounded by one interval (plus slack for
	// slow test machines)
	if elapsed > timeout+interval+50*time.Millisecond {
		t.Fatalf("overran budget by more than one interval: %s", elapsed)
	}

	last, ok := timeoutErr.Last.(status)
	if !ok || last.Value != "IN_PROGRESS" {
		t.Fatalf("expected last result in error, got %+v", timeoutErr.Last)
	}
	if result.Value != "IN_PROGRESS" {
		t.Fatalf("expected last result returned alongside error, got %+v", result)
	}
}

func TestUntilZeroTimeout(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		value     string
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "terminal first result succeeds",
			value:     "DONE",
			wantCalls: 1,
		},
		{
			name:      "pending first result fails immediately",
			value:     "IN_PROGRESS",
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			op := func(ctx context.Context) (status, error) {
				calls++
				return status{Value: tc.value}, nil
			}

			_, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"),
				WithInterval(time.Second), WithTimeout(0))

			var timeoutErr *TimeoutError
			if tc.wantErr {
				if !errors.As(err, &timeoutErr) {
					t.Fatalf("expected *TimeoutError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Until returned error: %v", err)
			}

			if calls != tc.wantCalls {
				t.Fatalf("expected %d invocations, got %d", tc.wantCalls, calls)
			}
		})
	}
}

func TestUntilOperationErrorPropagates(t *testing.T) {
	t.Parallel()

	opErr := errors.New("throttled")
	calls := 0
	op := func(ctx context.Context) (status, error) {
		calls++
		if calls == 1 {
			return status{Value: "IN_PROGRESS"}, nil
		}
		return status{}, opErr
	}

	_, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"),
		WithInterval(time.Millisecond), WithTimeout(time.Second))

	if !errors.Is(err, opErr) {
		t.Fatalf("expected operation error to propagate, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected no retry after operation error, got %d calls", calls)
	}
}

func TestUntilContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	op := func(ctx context.Context) (status, error) {
		cancel()
		return status{Value: "IN_PROGRESS"}, nil
	}

	_, err := Until(ctx, op, pendingWhile("IN_PROGRESS"),
		WithInterval(time.Hour), WithTimeout(time.Hour))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUntilInvalidOptions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		opt           Option
		wantErrSubstr string
	}{
		{
			name:          "zero interval",
			opt:           WithInterval(0),
			wantErrSubstr: "interval must be positive",
		},
		{
			name:          "negative interval",
			opt:           WithInterval(-time.Second),
			wantErrSubstr: "interval must be positive",
		},
		{
			name:          "negative timeout",
			opt:           WithTimeout(-time.Second),
			wantErrSubstr: "timeout cannot be negative",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			op := func(ctx context.Context) (status, error) {
				calls++
				return status{}, nil
			}

			_, err := Until(context.Background(), op, pendingWhile("IN_PROGRESS"), tc.opt)
			if err == nil || !strings.Contains(err.Error(), tc.wantErrSubstr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErrSubstr, err)
			}
			if calls != 0 {
				t.Fatalf("operation must not run with invalid options, got %d calls", calls)
			}
		})
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	t.Parallel()

	err := &TimeoutError{Budget: 30 * time.Second, Elapsed: 31 * time.Second}
	if !strings.Contains(err.Error(), "30s") {
		t.Fatalf("expected budget in message, got %q", err.Error())
	}
}
