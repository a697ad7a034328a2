package crawler

import (
	"context"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Default batch widths and pacing.
const (
	HTTPBatchWidth    = 5
	BrowserBatchWidth = 3

	DefaultChunkDelay = 500 * time.Millisecond
	DefaultPageDelay  = 1000 * time.Millisecond
)

// BatchRunner enriches listings in consecutive chunks of Width items.
type BatchRunner struct {
	Width      int
	ChunkDelay time.Duration
	Sleep      Sleeper
}

// Run enriches items chunk by chunk and returns the results in input order.
// Cancellation is observed before each chunk and during the inter-chunk delay;
// a chunk that has started always completes. onChunk receives the number of
// items enriched so far after every chunk.
func (b BatchRunner) Run(ctx context.Context, items []domain.ListingSummary, enricher Enricher, onChunk func(done int)) ([]domain.EnrichedListing, error) {
	if len(items) == 0 {
		return nil, nil
	}
	width := b.Width
	if width < 1 {
		width = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	out := make([]domain.EnrichedListing, len(items))
	inFlight := context.WithoutCancel(ctx)

	for start := 0; start < len(items); start += width {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if start > 0 {
			if err := sleep(ctx, b.ChunkDelay); err != nil {
				return nil, err
			}
		}

		end := start + width
		if end > len(items) {
			end = len(items)
		}

		var g errgroup.Group
		g.SetLimit(width)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				out[i] = enricher.Enrich(inFlight, items[i])
				return nil
			})
		}
		_ = g.Wait()

		if onChunk != nil {
			onChunk(end)
		}
	}

	return out, nil
}
