package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/config"
	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/Adda-Baaj/bazar-scraper/internal/logger"
	"github.com/Adda-Baaj/bazar-scraper/internal/storage"
	"github.com/Adda-Baaj/bazar-scraper/pkg/browser"
	"github.com/Adda-Baaj/bazar-scraper/pkg/httpclient"
	"github.com/Adda-Baaj/bazar-scraper/pkg/publishers"
	"github.com/Adda-Baaj/bazar-scraper/pkg/sources"
	"github.com/google/uuid"
)

const publishTimeout = 10 * time.Second

// Runtime wires the source registry, fetch capabilities, the page cache and
// run-event publishers around a crawler.Service. It is safe for concurrent
// Scrape calls; every call owns its own run state.
type Runtime struct {
	registry *sources.Registry
	sources  map[string]crawler.Source
	service  *crawler.Service
	fanout   *publishers.Fanout
	store    storage.Store
	log      logger.Logger

	newRunID func() string
	now      func() time.Time
}

// NewRuntime builds a scraper runtime from config files.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	registry, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceIDs := make([]string, 0, len(registry.Sources()))
	for _, s := range registry.Sources() {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	fanout, err := loadPublishers(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		PageTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"page_ttl_seconds":         int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	deps := sources.Deps{
		HTTP: httpclient.NewRestyClient(httpclient.Options{
			Timeout:   cfg.HTTPTimeout,
			UserAgent: cfg.UserAgent,
		}),
		Cache: store,
		Browser: browser.NewChromeLauncher(browser.Options{
			Headless:  cfg.BrowserHeadless,
			ExecPath:  cfg.BrowserExecPath,
			RemoteURL: cfg.BrowserRemoteURL,
			UserAgent: cfg.UserAgent,
		}),
		Log:             log,
		NavTimeout:      cfg.BrowserNavTimeout,
		SelectorTimeout: cfg.BrowserSelectorTimeout,
	}

	rt, err := newRuntime(cfg, registry, sources.DefaultBuilders(), deps, fanout, store, log)
	if err != nil {
		_ = store.Close()
		_ = fanout.Close()
		return nil, err
	}
	return rt, nil
}

func loadPublishers(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; run events disabled", "publishers_meta", map[string]any{"count": 0})
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

func newRuntime(cfg *config.Config, registry *sources.Registry, builders *sources.BuilderRegistry, deps sources.Deps, fanout *publishers.Fanout, store storage.Store, log logger.Logger) (*Runtime, error) {
	if log == nil {
		log = &logger.NopLogger{}
	}
	built := make(map[string]crawler.Source, len(registry.Sources()))
	for _, sc := range registry.Sources() {
		src, err := builders.Build(sc, deps)
		if err != nil {
			return nil, fmt.Errorf("build source %q: %w", sc.ID, err)
		}
		built[sc.ID] = src
	}

	pacing := crawler.Pacing{ChunkDelay: cfg.ChunkDelay, PageDelay: cfg.PageDelay}

	return &Runtime{
		registry: registry,
		sources:  built,
		service:  crawler.NewService(log, pacing),
		fanout:   fanout,
		store:    store,
		log:      log,
		newRunID: uuid.NewString,
		now:      time.Now,
	}, nil
}

// ResolveSource returns the id of the source that accepts rawURL.
func (r *Runtime) ResolveSource(rawURL string) (string, error) {
	sc, err := r.registry.ForURL(rawURL)
	if err != nil {
		return "", err
	}
	if _, ok := r.sources[sc.ID]; !ok {
		return "", fmt.Errorf("%w: %s", sources.ErrUnknownSource, sc.ID)
	}
	return sc.ID, nil
}

// Scrape runs one scrape of rawURL. pageCap <= 0 requests an uncapped run.
// A run event is published whatever the outcome; publisher failures are
// logged and never change the result.
func (r *Runtime) Scrape(ctx context.Context, rawURL string, pageCap int, onProgress crawler.ProgressFunc) ([]domain.EnrichedListing, error) {
	if r == nil || r.service == nil {
		return nil, fmt.Errorf("runtime is not initialized")
	}
	id, err := r.ResolveSource(rawURL)
	if err != nil {
		return nil, err
	}

	evt := publishers.Event{
		RunID:     r.newRunID(),
		SourceID:  id,
		StartURL:  rawURL,
		PageCap:   pageCap,
		StartedAt: r.now().UTC(),
	}

	items, runErr := r.service.Run(ctx, r.sources[id], crawler.Request{
		StartURL:   rawURL,
		PageCap:    pageCap,
		OnProgress: onProgress,
	})

	evt.FinishedAt = r.now().UTC()
	evt.ItemCount = len(items)
	evt.Items = items
	switch {
	case runErr == nil:
		evt.Status = publishers.StatusCompleted
	case errors.Is(runErr, crawler.ErrCancelled):
		evt.Status = publishers.StatusCancelled
		evt.Error = runErr.Error()
	default:
		evt.Status = publishers.StatusFailed
		evt.Error = runErr.Error()
	}
	r.publish(ctx, evt)

	return items, runErr
}

func (r *Runtime) publish(ctx context.Context, evt publishers.Event) {
	if r.fanout.Size() == 0 {
		return
	}
	// cancelled runs still report
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	delivered, err := r.fanout.Publish(pubCtx, evt)
	if err != nil {
		r.log.ErrorObj("run event publish failed", "publish_error", map[string]any{
			"run_id":    evt.RunID,
			"source_id": evt.SourceID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	r.log.DebugObj("run event published", "publish_result", map[string]any{
		"run_id":    evt.RunID,
		"status":    evt.Status,
		"delivered": delivered,
	})
}

// Close releases the page cache and publisher clients.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
