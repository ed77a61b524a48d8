package asyncx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/identity/pkg/asyncx"
)

func TestAllSettled_KeepsOrderAndErrors(t *testing.T) {
	boom := errors.New("boom")
	results := asyncx.AllSettled(context.Background(),
		func(context.Context) (string, error) { time.Sleep(10 * time.Millisecond); return "db", nil },
		func(context.Context) (string, error) { return "", boom },
	)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].OK() || results[0].Value != "db" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].OK() || !errors.Is(results[1].Err, boom) {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}

func TestRetryWithBackoff_SucceedsEventually(t *testing.T) {
	calls := 0
	var retried []int
	v, err := asyncx.RetryWithBackoff(context.Background(), 3, time.Millisecond,
		func(attempt int, _ error) { retried = append(retried, attempt) },
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("not yet")
			}
			return 42, nil
		})

	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d %v", v, err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("unexpected retry callbacks %v", retried)
	}
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	last := errors.New("still down")
	_, err := asyncx.RetryWithBackoff(context.Background(), 2, time.Millisecond, nil,
		func(context.Context) (int, error) { return 0, last })
	if !errors.Is(err, last) {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestWithTimeout_Deadline(t *testing.T) {
	_, err := asyncx.WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
