package crawler

import (
	"context"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
)

// Source is one listing site. Implementations own their field-location rules;
// the Service only sees normalized listings.
type Source interface {
	ID() string
	// BatchWidth is the number of detail enrichments run concurrently.
	BatchWidth() int
	// Strategy picks the pagination variant for one run.
	Strategy(startURL string, pageCap int) Strategy
	// Open acquires the fetch capability for one run.
	Open(ctx context.Context) (Session, error)
}

// Session is the per-run fetch capability of a source. It is closed by the
// Service on every exit path.
type Session interface {
	Enricher
	LoadPage(ctx context.Context, req PageRequest) (Page, error)
	Close() error
}

// Enricher turns a summary into an enriched listing. It never fails: on any
// error it returns the summary promoted with body = summary.
type Enricher interface {
	Enrich(ctx context.Context, item domain.ListingSummary) domain.EnrichedListing
}

// EnricherFunc adapts a function to Enricher.
type EnricherFunc func(ctx context.Context, item domain.ListingSummary) domain.EnrichedListing

func (f EnricherFunc) Enrich(ctx context.Context, item domain.ListingSummary) domain.EnrichedListing {
	return f(ctx, item)
}

// Page is what a session extracted from one result page.
type Page struct {
	Listings []domain.ListingSummary
	// NextURL is the absolute "next page" link, when the page has one.
	NextURL string
}

// ProgressFunc receives a phase message and the running item count.
// It must not block.
type ProgressFunc func(message string, count int)

// Logger defines the logging surface the crawler relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
