package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package sources contains the listing-site registry (YAML/JSON) and the
// per-site extractors and enrichers.

// SourceConfig describes one listing site.
type SourceConfig struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// BaseURL, when set, is the base relative links are resolved against.
	// Otherwise links resolve against the page they were found on.
	BaseURL      string         `json:"base_url" yaml:"base_url"`
	AllowedHosts []string       `json:"allowed_hosts" yaml:"allowed_hosts"`
	Config       map[string]any `json:"config" yaml:"config"`
}

// ErrUnknownSource is returned when no configured source accepts a URL.
var ErrUnknownSource = errors.New("no source configured for url")

type registryFile struct {
	Sources []SourceConfig `json:"sources" yaml:"sources"`
}

// Registry is the loaded, validated set of sources.
type Registry struct {
	sources []SourceConfig
	byID    map[string]SourceConfig
}

// LoadRegistry loads the source registry from a YAML or JSON file.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(reg.Sources...)
}

// NewRegistry sanitizes and validates cfgs into a Registry.
func NewRegistry(cfgs ...SourceConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	r := &Registry{
		sources: make([]SourceConfig, 0, len(cfgs)),
		byID:    make(map[string]SourceConfig, len(cfgs)),
	}
	for i := range cfgs {
		s := sanitizeSource(cfgs[i])
		if err := validateSource(s); err != nil {
			return nil, fmt.Errorf("source[%d]: %w", i, err)
		}
		if _, exists := r.byID[s.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		r.sources = append(r.sources, s)
		r.byID[s.ID] = s
	}
	return r, nil
}

// Sources returns a copy of the loaded sources.
func (r *Registry) Sources() []SourceConfig {
	if r == nil || len(r.sources) == 0 {
		return nil
	}
	out := make([]SourceConfig, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByID returns the source entry for id, if loaded.
func (r *Registry) ByID(id string) (SourceConfig, bool) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" {
		return SourceConfig{}, false
	}
	s, ok := r.byID[id]
	return s, ok
}

// ForURL returns the first source whose allowed hosts include raw's host.
func (r *Registry) ForURL(raw string) (SourceConfig, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return SourceConfig{}, fmt.Errorf("invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return SourceConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if r != nil {
		for _, s := range r.sources {
			if s.AllowsHost(u.Hostname()) {
				return s, nil
			}
		}
	}
	return SourceConfig{}, fmt.Errorf("%w: %s", ErrUnknownSource, u.Hostname())
}

// AllowsHost reports whether host matches one of the source's allowed hosts.
// Entries starting with "*." or "." match any subdomain.
func (s SourceConfig) AllowsHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return false
	}
	for _, pattern := range s.AllowedHosts {
		switch {
		case strings.HasPrefix(pattern, "*."):
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s sources: %w", name, err)
	}
	return reg, nil
}

func sanitizeSource(s SourceConfig) SourceConfig {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.BaseURL = strings.TrimSpace(s.BaseURL)

	hosts := make([]string, 0, len(s.AllowedHosts))
	for _, h := range s.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	s.AllowedHosts = hosts

	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return s
}

func validateSource(s SourceConfig) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required for source %q", s.ID)
	}
	if s.Type == "" {
		return fmt.Errorf("type is required for source %q", s.ID)
	}
	if len(s.AllowedHosts) == 0 {
		return fmt.Errorf("allowed_hosts is required for source %q", s.ID)
	}
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("base_url %q is not an absolute url for source %q", s.BaseURL, s.ID)
		}
	}
	return nil
}
