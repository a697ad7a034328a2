package sources

import (
	"fmt"
	"strconv"
	"strings"
)

// Source config keys.
const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigBatchWidthKey     = "batch_width"
	ConfigNextLabelsKey     = "next_labels"
	ConfigPageParamKey      = "page_param"
)

// ConfigString returns the trimmed string value for key from cfg.Config or a fallback.
func ConfigString(cfg SourceConfig, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// ConfigInt returns the positive integer value for key or a fallback.
// YAML decodes numbers as int, JSON as float64; numeric strings are accepted too.
func ConfigInt(cfg SourceConfig, key string, fallback int) int {
	if cfg.Config == nil {
		return fallback
	}
	var n int
	switch v := cfg.Config[key].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		n = parsed
	default:
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}

// ConfigStrings returns the non-empty string list for key or a fallback.
func ConfigStrings(cfg SourceConfig, key string, fallback []string) []string {
	if cfg.Config == nil {
		return fallback
	}
	raw, ok := cfg.Config[key].([]any)
	if !ok {
		return fallback
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Headers builds the request headers from a source config (skips empty values).
func Headers(cfg SourceConfig) map[string]string {
	headers := make(map[string]string, 3)

	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}

	return headers
}
