package crawler

import (
	"context"
	"time"
)

// Infinite-scroll tuning.
const (
	MaxScrollAttempts   = 100
	TriggerMissLimit    = 5
	StableCountLimit    = 3
	StableTriggerMisses = 2

	ScrollSettle = 1000 * time.Millisecond
	ClickSettle  = 3000 * time.Millisecond
	MissSettle   = 1500 * time.Millisecond
)

// LoadMorePhrases is the lower-case vocabulary matched against trigger text.
var LoadMorePhrases = []string{
	"načítať viac",
	"load more",
	"viac produktov",
	"show more",
}

// Scroller is the rendered-page surface the scroll loop drives.
type Scroller interface {
	ScrollToBottom(ctx context.Context) error
	// TriggerLoadMore clicks the first visible control whose text contains one
	// of phrases and reports whether one was clicked.
	TriggerLoadMore(ctx context.Context, phrases []string) (bool, error)
	CountItems(ctx context.Context) (int, error)
}

// ScrollPolicy holds the thresholds of the infinite-scroll loop.
type ScrollPolicy struct {
	MaxAttempts      int
	TriggerMissLimit int
	StableLimit      int
	StableMissLimit  int
	ScrollSettle     time.Duration
	ClickSettle      time.Duration
	MissSettle       time.Duration
	Phrases          []string
}

// DefaultScrollPolicy returns the production thresholds.
func DefaultScrollPolicy() ScrollPolicy {
	return ScrollPolicy{
		MaxAttempts:      MaxScrollAttempts,
		TriggerMissLimit: TriggerMissLimit,
		StableLimit:      StableCountLimit,
		StableMissLimit:  StableTriggerMisses,
		ScrollSettle:     ScrollSettle,
		ClickSettle:      ClickSettle,
		MissSettle:       MissSettle,
		Phrases:          append([]string(nil), LoadMorePhrases...),
	}
}

// Stop reasons reported by Exhaust.
const (
	StopTriggerGone = "trigger_not_found"
	StopStable      = "count_stable"
	StopMaxAttempts = "max_attempts"
)

// ScrollReport summarizes one scroll loop.
type ScrollReport struct {
	Attempts int    `json:"attempts"`
	Loaded   int    `json:"loaded"`
	Clicks   int    `json:"clicks"`
	Errors   int    `json:"errors"`
	Reason   string `json:"reason"`
}

// Exhaust scrolls and clicks the load-more trigger until the feed stops
// growing. It stops after TriggerMissLimit consecutive misses, or once the item
// count has been flat for StableLimit attempts while the trigger has been
// missing for StableMissLimit attempts. Scroller errors count as a miss or an
// unchanged count; only cancellation aborts the loop.
func (p ScrollPolicy) Exhaust(ctx context.Context, sc Scroller, sleep Sleeper, observe func(attempt, loaded int)) (ScrollReport, error) {
	if sleep == nil {
		sleep = SleepContext
	}
	p = p.normalized()

	var (
		report   ScrollReport
		previous int
		misses   int
		stable   int
	)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		report.Attempts = attempt

		if err := sc.ScrollToBottom(ctx); err != nil {
			report.Errors++
		}
		if err := sleep(ctx, p.ScrollSettle); err != nil {
			return report, err
		}

		clicked, err := sc.TriggerLoadMore(ctx, p.Phrases)
		if err != nil {
			report.Errors++
			clicked = false
		}
		if clicked {
			report.Clicks++
			misses = 0
			if err := sleep(ctx, p.ClickSettle); err != nil {
				return report, err
			}
		} else {
			misses++
			if misses >= p.TriggerMissLimit {
				report.Reason = StopTriggerGone
				return report, nil
			}
			if err := sleep(ctx, p.MissSettle); err != nil {
				return report, err
			}
		}

		count, err := sc.CountItems(ctx)
		if err != nil {
			report.Errors++
			count = previous
		}
		report.Loaded = count
		if observe != nil {
			observe(attempt, count)
		}

		if count == previous {
			stable++
			if stable >= p.StableLimit && misses >= p.StableMissLimit {
				report.Reason = StopStable
				return report, nil
			}
		} else {
			stable = 0
		}
		previous = count
	}

	report.Reason = StopMaxAttempts
	return report, nil
}

func (p ScrollPolicy) normalized() ScrollPolicy {
	def := DefaultScrollPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.TriggerMissLimit <= 0 {
		p.TriggerMissLimit = def.TriggerMissLimit
	}
	if p.StableLimit <= 0 {
		p.StableLimit = def.StableLimit
	}
	if p.StableMissLimit <= 0 {
		p.StableMissLimit = def.StableMissLimit
	}
	if len(p.Phrases) == 0 {
		p.Phrases = def.Phrases
	}
	return p
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the timer-backed Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
