package publishers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
)

// Run statuses carried by events.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Event describes one finished scrape run.
type Event struct {
	RunID     string                   `json:"run_id"`
	SourceID  string                   `json:"source_id"`
	StartURL  string                   `json:"start_url"`
	PageCap   int                      `json:"page_cap"`
	Status    string                   `json:"status"`
	ItemCount int                      `json:"item_count"`
	Items     []domain.EnrichedListing `json:"items,omitempty"`
	// ItemsTruncated is set when Items were left out to fit a sink's
	// message size limit. ItemCount still reports the whole run.
	ItemsTruncated bool      `json:"items_truncated,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Message size limits of the queue sinks, with headroom for attributes.
const (
	maxAWSMessageBytes    = 240 << 10 // SQS and SNS: 256 KiB
	maxPubSubMessageBytes = 9 << 20   // Pub/Sub: 10 MB
)

// encode marshals the event, dropping Items when the payload is larger than
// limit. A limit <= 0 disables the check.
func (e Event) encode(limit int) (payload []byte, truncated bool, err error) {
	payload, err = json.Marshal(e)
	if err != nil {
		return nil, false, fmt.Errorf("marshal event: %w", err)
	}
	if limit <= 0 || len(payload) <= limit || len(e.Items) == 0 {
		return payload, false, nil
	}

	e.Items = nil
	e.ItemsTruncated = true
	payload, err = json.Marshal(e)
	if err != nil {
		return nil, false, fmt.Errorf("marshal event: %w", err)
	}
	if len(payload) > limit {
		return nil, false, fmt.Errorf("event is %d bytes without items, limit %d", len(payload), limit)
	}
	return payload, true, nil
}

// encodeFor encodes evt for a size-limited sink and logs when items had to
// be dropped.
func encodeFor(log Logger, sink string, evt Event, limit int) ([]byte, error) {
	payload, truncated, err := evt.encode(limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		log.WarnObj("run event items dropped to fit message size limit", "publisher_payload_truncated", map[string]any{
			"sink":       sink,
			"run_id":     evt.RunID,
			"item_count": evt.ItemCount,
			"limit":      limit,
		})
	}
	return payload, nil
}

// attributes are the routing attributes attached to queue messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"source_id": e.SourceID,
		"status":    e.Status,
		"run_id":    e.RunID,
	}
}
