package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/config"
	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/Adda-Baaj/bazar-scraper/internal/storage"
	"github.com/Adda-Baaj/bazar-scraper/pkg/publishers"
	"github.com/Adda-Baaj/bazar-scraper/pkg/sources"
)

// staticSource serves one page of listings.
type staticSource struct {
	id      string
	items   []domain.ListingSummary
	openErr error
}

func (s *staticSource) ID() string      { return s.id }
func (s *staticSource) BatchWidth() int { return 2 }
func (s *staticSource) Strategy(start string, pageCap int) crawler.Strategy {
	return crawler.NewLinkFollowing(start, pageCap)
}

func (s *staticSource) Open(context.Context) (crawler.Session, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &staticSession{items: s.items}, nil
}

type staticSession struct {
	items []domain.ListingSummary
}

func (s *staticSession) LoadPage(context.Context, crawler.PageRequest) (crawler.Page, error) {
	return crawler.Page{Listings: s.items}, nil
}

func (s *staticSession) Enrich(_ context.Context, item domain.ListingSummary) domain.EnrichedListing {
	return item.WithBody("body of " + item.Heading)
}

func (s *staticSession) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (p *recordingPublisher) ID() string   { return "rec" }
func (p *recordingPublisher) Type() string { return publishers.TypeHTTP }
func (p *recordingPublisher) Publish(_ context.Context, evt publishers.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func newTestRuntime(t *testing.T, src *staticSource, pub publishers.Publisher) *Runtime {
	t.Helper()
	registry, err := sources.NewRegistry(sources.SourceConfig{
		ID:           src.id,
		Name:         "Test",
		Type:         "static",
		AllowedHosts: []string{"*.example.com", "example.com"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	builders := sources.NewBuilderRegistry(map[string]sources.Builder{
		"static": func(sources.SourceConfig, sources.Deps) (crawler.Source, error) { return src, nil },
	})
	store, err := storage.NewStore("none", "", storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var pubs []publishers.Publisher
	if pub != nil {
		pubs = append(pubs, pub)
	}
	cfg := &config.Config{MaxPages: 20, DefaultPages: 1}
	rt, err := newRuntime(cfg, registry, builders, sources.Deps{}, publishers.NewFanout(pubs), store, nil)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	rt.newRunID = func() string { return "run-1" }
	rt.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return rt
}

func TestRuntimeScrapePublishesCompletedEvent(t *testing.T) {
	src := &staticSource{id: "static", items: []domain.ListingSummary{
		{Heading: "a", Link: "https://example.com/a"},
		{Heading: "b", Link: "https://example.com/b"},
	}}
	pub := &recordingPublisher{}
	rt := newTestRuntime(t, src, pub)

	items, err := rt.Scrape(context.Background(), "https://shop.example.com/list", 1, nil)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(items) != 2 || items[1].Body != "body of b" {
		t.Fatalf("unexpected items %#v", items)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.RunID != "run-1" || evt.SourceID != "static" || evt.Status != publishers.StatusCompleted || evt.ItemCount != 2 {
		t.Fatalf("unexpected event %#v", evt)
	}
}

func TestRuntimeScrapePublishesFailureAndKeepsError(t *testing.T) {
	src := &staticSource{id: "static", openErr: errors.New("no chrome")}
	pub := &recordingPublisher{err: errors.New("sink down")}
	rt := newTestRuntime(t, src, pub)

	_, err := rt.Scrape(context.Background(), "https://example.com/list", 1, nil)
	if !errors.Is(err, crawler.ErrCapability) {
		t.Fatalf("expected ErrCapability, got %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Status != publishers.StatusFailed || pub.events[0].Error == "" {
		t.Fatalf("expected failed event, got %#v", pub.events)
	}
}

func TestRuntimeScrapeCancelledStillPublishes(t *testing.T) {
	src := &staticSource{id: "static", items: []domain.ListingSummary{{Heading: "a", Link: "https://example.com/a"}}}
	pub := &recordingPublisher{}
	rt := newTestRuntime(t, src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items, err := rt.Scrape(ctx, "https://example.com/list", 1, nil)
	if !errors.Is(err, crawler.ErrCancelled) || items != nil {
		t.Fatalf("expected cancellation without items, got %v %v", items, err)
	}
	if len(pub.events) != 1 || pub.events[0].Status != publishers.StatusCancelled {
		t.Fatalf("expected cancelled event, got %#v", pub.events)
	}
}

func TestRuntimeRejectsUnknownHost(t *testing.T) {
	rt := newTestRuntime(t, &staticSource{id: "static"}, nil)

	if _, err := rt.ResolveSource("https://elsewhere.org/x"); !errors.Is(err, sources.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := rt.Scrape(context.Background(), "ftp://example.com/x", 1, nil); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
