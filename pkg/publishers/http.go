package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// httpPublisher delivers each event as a JSON request to a webhook.
type httpPublisher struct {
	id     string
	cfg    HTTPPublisherConfig
	client *resty.Client
	log    Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	hc := *cfg.HTTP
	hc.normalize()

	return &httpPublisher{
		id:  cfg.ID,
		cfg: hc,
		client: httpclient.NewRestyHTTPClient(httpclient.Options{
			Timeout: time.Duration(hc.TimeoutSeconds) * time.Second,
		}),
		log: ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeaders(h.cfg.Headers).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Execute(h.cfg.Method, h.cfg.URL)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	h.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"run_id":       evt.RunID,
		"status_code":  resp.StatusCode(),
	})
	return nil
}
