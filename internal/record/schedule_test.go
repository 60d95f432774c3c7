package record

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleRunsUntilRuleExhausted(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Schedule(ctx, "FREQ=SECONDLY;COUNT=2", func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 scheduled runs, got %d", got)
	}
}

func TestScheduleStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Schedule(ctx, "FREQ=HOURLY", func() error { return nil }, nil)
	if err == nil {
		t.Fatalf("expected context cancellation to surface as an error")
	}
}

func TestScheduleReportsRunOnceErrorsWithoutStopping(t *testing.T) {
	var calls int32
	var errs int32
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := Schedule(ctx, "FREQ=SECONDLY;COUNT=2", func() error {
		atomic.AddInt32(&calls, 1)
		return errTestRunOnce
	}, func(error) { atomic.AddInt32(&errs, 1) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 || atomic.LoadInt32(&errs) != 2 {
		t.Fatalf("expected both runs to fail and be reported, got calls=%d errs=%d", calls, errs)
	}
}

func TestScheduleRejectsInvalidRule(t *testing.T) {
	err := Schedule(context.Background(), "not a valid rule", func() error { return nil }, nil)
	if err == nil {
		t.Fatalf("expected an error for an invalid RRULE string")
	}
}

var errTestRunOnce = errFixedTest("boom")

type errFixedTest string

func (e errFixedTest) Error() string { return string(e) }
