package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
)

var (
	// ErrCancelled is returned when the run context is cancelled. Items
	// accumulated before cancellation are discarded.
	ErrCancelled = errors.New("scrape cancelled")
	// ErrCapability is returned when the source's fetch capability cannot be acquired.
	ErrCapability = errors.New("scrape capability unavailable")
	// ErrInvalidRequest is returned for a missing source or start URL.
	ErrInvalidRequest = errors.New("invalid scrape request")
)

// Pacing holds the politeness delays of a run.
type Pacing struct {
	ChunkDelay time.Duration
	PageDelay  time.Duration
}

// DefaultPacing returns the production delays.
func DefaultPacing() Pacing {
	return Pacing{ChunkDelay: DefaultChunkDelay, PageDelay: DefaultPageDelay}
}

// Request is one scrape invocation. The cancellation token is the Run context.
type Request struct {
	StartURL string
	// PageCap <= 0 means uncapped.
	PageCap    int
	OnProgress ProgressFunc
}

// Service runs paginated scrapes against a Source.
type Service struct {
	log    Logger
	pacing Pacing
	sleep  Sleeper
}

// NewService wires a scrape orchestrator.
func NewService(log Logger, pacing Pacing) *Service {
	return &Service{
		log:    ensureLogger(log),
		pacing: pacing,
		sleep:  SleepContext,
	}
}

// Run walks the source's pages sequentially, enriching each page's listings in
// bounded batches, until the pagination strategy stops or ctx is cancelled.
func (s *Service) Run(ctx context.Context, src Source, req Request) ([]domain.EnrichedListing, error) {
	if s == nil {
		return nil, fmt.Errorf("crawler service is not initialized")
	}
	if src == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.StartURL) == "" {
		return nil, fmt.Errorf("%w: start url is required", ErrInvalidRequest)
	}

	r := &run{
		svc:      s,
		src:      src,
		req:      req,
		state:    newRunState(),
		progress: monotonic(req.OnProgress),
	}
	return r.execute(ctx)
}

type run struct {
	svc      *Service
	src      Source
	req      Request
	state    *RunState
	progress ProgressFunc
}

func (r *run) execute(ctx context.Context) ([]domain.EnrichedListing, error) {
	id := r.src.ID()
	r.progress(fmt.Sprintf("Starting %s scrape...", id), 0)

	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	strategy := r.src.Strategy(r.req.StartURL, r.req.PageCap)

	session, err := r.src.Open(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.cancel(ctxErr)
		}
		r.state.finish(PhaseFailed)
		r.svc.log.ErrorObj("scrape capability failed", "scrape_error", map[string]any{
			"source_id": id,
			"start_url": r.req.StartURL,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("%w: open %s: %w", ErrCapability, id, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.svc.log.WarnObj("scrape session close failed", "scrape_warning", map[string]any{
				"source_id": id,
				"error":     cerr.Error(),
			})
		}
	}()

	r.state.start()
	r.svc.log.InfoObj("scrape started", "scrape_run", map[string]any{
		"source_id": id,
		"start_url": r.req.StartURL,
		"page_cap":  r.req.PageCap,
		"strategy":  string(strategy.Kind()),
	})

	runner := BatchRunner{
		Width:      r.src.BatchWidth(),
		ChunkDelay: r.svc.pacing.ChunkDelay,
		Sleep:      r.svc.sleep,
	}

	var last *Outcome
	for {
		step := strategy.Next(last)
		if !step.Continue {
			break
		}
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}
		if r.state.PagesFetched > 0 {
			if err := r.svc.sleep(ctx, r.svc.pacing.PageDelay); err != nil {
				return r.cancel(err)
			}
		}

		outcome, err := r.page(ctx, session, runner, step.Request)
		if err != nil {
			return r.cancel(err)
		}
		last = outcome
	}

	r.state.finish(PhaseCompleted)
	r.progress("Scraping complete", len(r.state.Items))
	r.svc.log.InfoObj("scrape completed", "scrape_result", withSource(id, r.state.Snapshot()))
	return r.state.Items, nil
}

// page loads, extracts and enriches one page. The returned error is non-nil
// only for cancellation.
func (r *run) page(ctx context.Context, session Session, runner BatchRunner, pr PageRequest) (*Outcome, error) {
	id := r.src.ID()
	r.state.PageIndex = pr.Index
	r.progress(fmt.Sprintf("Scraping page %d...", pr.Index), len(r.state.Items))

	if pr.Scroll != nil && pr.OnScroll == nil {
		pr.OnScroll = func(_, loaded int) {
			r.progress(fmt.Sprintf("Loading products (%d found)...", loaded), len(r.state.Items))
		}
	}

	page, err := session.LoadPage(ctx, pr)
	r.state.PagesFetched++
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.svc.log.WarnObj("page fetch failed", "page_error", map[string]any{
			"source_id": id,
			"page":      pr.Index,
			"url":       pr.URL,
			"error":     err.Error(),
		})
		return &Outcome{Request: pr, Err: err}, nil
	}

	listings := linkedOnly(page.Listings)
	if dropped := len(page.Listings) - len(listings); dropped > 0 {
		r.svc.log.DebugObj("listings without link dropped", "page_result", map[string]any{
			"source_id": id,
			"page":      pr.Index,
			"dropped":   dropped,
		})
	}

	if len(listings) == 0 {
		fields := map[string]any{"source_id": id, "page": pr.Index, "url": pr.URL}
		if pr.Index == 1 {
			r.svc.log.WarnObj("first page has no listings, likely configuration error", "page_result", fields)
		} else {
			r.svc.log.InfoObj("page has no listings", "page_result", fields)
		}
		return &Outcome{Request: pr, NextURL: page.NextURL}, nil
	}

	base := len(r.state.Items)
	enriched, err := runner.Run(ctx, listings, session, func(done int) {
		r.progress(fmt.Sprintf("Scraping page %d: %d/%d listings enriched", pr.Index, done, len(listings)), base+done)
	})
	if err != nil {
		return nil, err
	}
	r.state.Items = append(r.state.Items, enriched...)

	r.svc.log.DebugObj("page scraped", "page_result", map[string]any{
		"source_id": id,
		"page":      pr.Index,
		"listings":  len(listings),
		"total":     len(r.state.Items),
		"has_next":  page.NextURL != "",
	})
	return &Outcome{Request: pr, Listings: len(listings), NextURL: page.NextURL}, nil
}

func (r *run) cancel(cause error) ([]domain.EnrichedListing, error) {
	count := len(r.state.Items)
	r.state.finish(PhaseCancelled)
	r.progress("Scraping cancelled", count)
	snapshot := r.state.Snapshot()
	snapshot["discarded"] = count
	r.svc.log.WarnObj("scrape cancelled", "scrape_result", withSource(r.src.ID(), snapshot))
	return nil, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func linkedOnly(items []domain.ListingSummary) []domain.ListingSummary {
	out := make([]domain.ListingSummary, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Link) == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}

// monotonic guards a progress sink so the count it sees never decreases.
func monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(string, int) {}
	}
	high := 0
	return func(message string, count int) {
		if count < high {
			count = high
		}
		high = count
		fn(message, count)
	}
}

func withSource(id string, fields map[string]any) map[string]any {
	fields["source_id"] = id
	return fields
}
