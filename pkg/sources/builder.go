package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/pkg/browser"
	"github.com/Adda-Baaj/bazar-scraper/pkg/httpclient"
)

// Source types understood by DefaultBuilders.
const (
	TypeBazosListing = "bazos_listing"
	TypeDMCatalog    = "dm_catalog"
)

// PageCache stores fetched page bodies by URL.
type PageCache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, body []byte) error
}

// Deps are the capabilities a builder may hand to a source.
type Deps struct {
	HTTP            httpclient.Client
	Cache           PageCache
	Browser         browser.Launcher
	Log             Logger
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	DetailSettle    time.Duration
	Scroll          crawler.ScrollPolicy
	// Sleep is used for settle delays; defaults to crawler.SleepContext.
	Sleep crawler.Sleeper
}

const (
	defaultNavTimeout      = 30 * time.Second
	defaultSelectorTimeout = 15 * time.Second
	defaultDetailSettle    = 1 * time.Second
)

func (d Deps) normalized() Deps {
	d.Log = ensureLogger(d.Log)
	if d.NavTimeout <= 0 {
		d.NavTimeout = defaultNavTimeout
	}
	if d.SelectorTimeout <= 0 {
		d.SelectorTimeout = defaultSelectorTimeout
	}
	if d.DetailSettle <= 0 {
		d.DetailSettle = defaultDetailSettle
	}
	if d.Scroll.MaxAttempts <= 0 {
		d.Scroll = crawler.DefaultScrollPolicy()
	}
	if d.Sleep == nil {
		d.Sleep = crawler.SleepContext
	}
	return d
}

// Builder constructs a crawler.Source for a config entry.
type Builder func(cfg SourceConfig, deps Deps) (crawler.Source, error)

// BuilderRegistry resolves builders by source id first, then by type.
type BuilderRegistry struct {
	mu     sync.RWMutex
	byID   map[string]Builder
	byType map[string]Builder
}

// NewBuilderRegistry builds a registry from type-keyed builders.
func NewBuilderRegistry(typeBuilders map[string]Builder) *BuilderRegistry {
	reg := &BuilderRegistry{
		byID:   make(map[string]Builder),
		byType: make(map[string]Builder),
	}
	for typ, b := range typeBuilders {
		reg.RegisterType(typ, b)
	}
	return reg
}

// DefaultBuilders wires the known source types.
func DefaultBuilders() *BuilderRegistry {
	return NewBuilderRegistry(map[string]Builder{
		TypeBazosListing: NewBazosSource,
		TypeDMCatalog:    NewDMSource,
	})
}

// RegisterType registers b for a source type.
func (r *BuilderRegistry) RegisterType(typ string, b Builder) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if b == nil || key == "" {
		return
	}
	r.mu.Lock()
	r.byType[key] = b
	r.mu.Unlock()
}

// RegisterID registers b for a single source id, overriding its type builder.
func (r *BuilderRegistry) RegisterID(id string, b Builder) {
	key := strings.ToLower(strings.TrimSpace(id))
	if b == nil || key == "" {
		return
	}
	r.mu.Lock()
	r.byID[key] = b
	r.mu.Unlock()
}

// Build constructs the source for cfg.
func (r *BuilderRegistry) Build(cfg SourceConfig, deps Deps) (crawler.Source, error) {
	if r == nil {
		return nil, fmt.Errorf("builder registry is nil")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("source id is empty")
	}

	r.mu.RLock()
	b, ok := r.byID[strings.ToLower(strings.TrimSpace(cfg.ID))]
	if !ok {
		b, ok = r.byType[strings.ToLower(strings.TrimSpace(cfg.Type))]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no builder registered for source %q (type %q)", cfg.ID, cfg.Type)
	}
	return b(cfg, deps.normalized())
}
