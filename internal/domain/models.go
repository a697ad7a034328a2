package domain

// Domain contains the listing shapes shared by sources, the crawler and transports.

// ListingSummary is one listing as visible on a result page.
type ListingSummary struct {
	Heading string `json:"heading"`
	Price   string `json:"price"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

// EnrichedListing is a summary plus the text of its detail page.
type EnrichedListing struct {
	ListingSummary
	Body string `json:"body"`
}

// WithBody promotes the summary to an enriched listing carrying body.
func (s ListingSummary) WithBody(body string) EnrichedListing {
	return EnrichedListing{ListingSummary: s, Body: body}
}

// Fallback promotes the summary using its own summary text as the body.
func (s ListingSummary) Fallback() EnrichedListing {
	return s.WithBody(s.Summary)
}
