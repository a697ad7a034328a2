package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage caches fetched detail pages between runs.

// Store is a TTL key/value cache for page bodies keyed by URL.
type Store interface {
	Close() error
	// Get returns the cached body and whether it was present and unexpired.
	Get(key string) ([]byte, bool, error)
	Put(key string, body []byte) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	PageTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultPageTTL         = 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.PageTTL <= 0 {
		opts.PageTTL = defaultPageTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                     { return nil }
func (noopStore) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (noopStore) Put(string, []byte) error         { return nil }
