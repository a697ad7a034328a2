package crawler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedScroller replays trigger visibility and item counts per attempt.
type scriptedScroller struct {
	found    []bool
	counts   []int
	countErr error

	scrolls  int
	triggers int
	counted  int
}

func (s *scriptedScroller) ScrollToBottom(context.Context) error {
	s.scrolls++
	return nil
}

func (s *scriptedScroller) TriggerLoadMore(_ context.Context, phrases []string) (bool, error) {
	s.triggers++
	if len(phrases) == 0 {
		return false, errors.New("no phrases")
	}
	i := s.triggers - 1
	if i < len(s.found) {
		return s.found[i], nil
	}
	return false, nil
}

func (s *scriptedScroller) CountItems(context.Context) (int, error) {
	s.counted++
	if s.countErr != nil {
		return 0, s.countErr
	}
	i := s.counted - 1
	if i < len(s.counts) {
		return s.counts[i], nil
	}
	return s.counts[len(s.counts)-1], nil
}

// recordSleeper records requested delays without waiting.
type recordSleeper struct {
	delays []time.Duration
}

func (r *recordSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestExhaustHardStopsAfterFiveMisses(t *testing.T) {
	sc := &scriptedScroller{
		found:  []bool{true, true, true},
		counts: []int{10, 20, 30, 31, 32, 33, 34},
	}
	sl := &recordSleeper{}
	var observed []int

	report, err := DefaultScrollPolicy().Exhaust(context.Background(), sc, sl.sleep, func(_, loaded int) {
		observed = append(observed, loaded)
	})
	if err != nil {
		t.Fatalf("Exhaust: %v", err)
	}
	if report.Attempts != 8 || report.Reason != StopTriggerGone {
		t.Fatalf("expected hard stop at attempt 8, got %+v", report)
	}
	if report.Clicks != 3 {
		t.Fatalf("expected 3 clicks, got %d", report.Clicks)
	}
	// the fifth miss stops before re-counting
	if sc.counted != 7 || len(observed) != 7 {
		t.Fatalf("expected 7 counts, got %d (observed %v)", sc.counted, observed)
	}
	if report.Loaded != 34 {
		t.Fatalf("expected 34 loaded, got %d", report.Loaded)
	}
}

func TestExhaustStopsWhenCountStableAndTriggerMissing(t *testing.T) {
	sc := &scriptedScroller{
		found:  []bool{true, true, true},
		counts: []int{10, 20, 30, 30, 30, 30, 30, 30},
	}
	sl := &recordSleeper{}

	report, err := DefaultScrollPolicy().Exhaust(context.Background(), sc, sl.sleep, nil)
	if err != nil {
		t.Fatalf("Exhaust: %v", err)
	}
	if report.Reason != StopStable || report.Attempts != 6 {
		t.Fatalf("expected stable stop at attempt 6, got %+v", report)
	}
	if report.Loaded != 30 {
		t.Fatalf("expected 30 loaded, got %d", report.Loaded)
	}
}

func TestExhaustUsesSettleDelays(t *testing.T) {
	sc := &scriptedScroller{found: []bool{true}, counts: []int{5, 5, 5, 5, 5}}
	sl := &recordSleeper{}
	policy := DefaultScrollPolicy()

	if _, err := policy.Exhaust(context.Background(), sc, sl.sleep, nil); err != nil {
		t.Fatalf("Exhaust: %v", err)
	}
	if len(sl.delays) < 4 {
		t.Fatalf("expected settle delays, got %v", sl.delays)
	}
	if sl.delays[0] != ScrollSettle || sl.delays[1] != ClickSettle {
		t.Fatalf("unexpected first attempt delays %v", sl.delays[:2])
	}
	if sl.delays[2] != ScrollSettle || sl.delays[3] != MissSettle {
		t.Fatalf("unexpected second attempt delays %v", sl.delays[2:4])
	}
}

func TestExhaustTreatsCountErrorsAsUnchanged(t *testing.T) {
	sc := &scriptedScroller{found: []bool{true, true, true, true}, countErr: errors.New("detached")}
	sl := &recordSleeper{}
	policy := DefaultScrollPolicy()
	policy.MaxAttempts = 4

	report, err := policy.Exhaust(context.Background(), sc, sl.sleep, nil)
	if err != nil {
		t.Fatalf("Exhaust: %v", err)
	}
	// the trigger never went missing, so only the attempt cap ends the loop
	if report.Reason != StopMaxAttempts || report.Attempts != 4 {
		t.Fatalf("expected max attempts stop, got %+v", report)
	}
	if report.Errors != 4 || report.Loaded != 0 {
		t.Fatalf("expected 4 errors and nothing loaded, got %+v", report)
	}
}

func TestExhaustAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &scriptedScroller{found: []bool{true, true}, counts: []int{1, 2, 3}}
	sl := &recordSleeper{}

	_, err := DefaultScrollPolicy().Exhaust(ctx, sc, func(c context.Context, d time.Duration) error {
		if len(sl.delays) == 2 {
			cancel()
		}
		return sl.sleep(c, d)
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sc.scrolls != 2 {
		t.Fatalf("expected loop to stop in the second attempt, got %d scrolls", sc.scrolls)
	}
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero delay: %v", err)
	}
}
