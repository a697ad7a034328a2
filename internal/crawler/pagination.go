package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// StrategyKind names a pagination variant.
type StrategyKind string

const (
	LinkFollowing      StrategyKind = "link_following"
	ParameterIncrement StrategyKind = "parameter_increment"
	InfiniteScroll     StrategyKind = "infinite_scroll"
)

// PageRequest describes one page the Service asks a session to load.
// It lives for a single loop iteration.
type PageRequest struct {
	URL string
	// Index is 1-based.
	Index int
	// Scroll is set when the page must be exhausted by scrolling before extraction.
	Scroll *ScrollPolicy
	// OnScroll, when set, observes each scroll attempt.
	OnScroll func(attempt, loaded int)
}

// Outcome is the result of the last page request, fed back to the strategy.
type Outcome struct {
	Request  PageRequest
	Listings int
	NextURL  string
	Err      error
}

// Step is the strategy's decision: load Request, or stop when Continue is false.
type Step struct {
	Request  PageRequest
	Continue bool
}

func stop() Step { return Step{} }

// Strategy decides the next page to load and when to stop.
type Strategy interface {
	Kind() StrategyKind
	// Next receives nil before the first page.
	Next(last *Outcome) Step
}

// linkFollowing walks explicit "next page" anchors.
type linkFollowing struct {
	start   string
	pageCap int
}

// NewLinkFollowing builds the next-anchor strategy. pageCap <= 0 means uncapped.
func NewLinkFollowing(startURL string, pageCap int) Strategy {
	return &linkFollowing{start: startURL, pageCap: pageCap}
}

func (s *linkFollowing) Kind() StrategyKind { return LinkFollowing }

func (s *linkFollowing) Next(last *Outcome) Step {
	if last == nil {
		return Step{Request: PageRequest{URL: s.start, Index: 1}, Continue: true}
	}
	switch {
	case last.Err != nil, last.Listings == 0:
		return stop()
	case s.pageCap > 0 && last.Request.Index >= s.pageCap:
		return stop()
	case last.NextURL == "", last.NextURL == last.Request.URL:
		return stop()
	}
	return Step{Request: PageRequest{URL: last.NextURL, Index: last.Request.Index + 1}, Continue: true}
}

// parameterIncrement rewrites a page-number query parameter 1..cap.
type parameterIncrement struct {
	start   string
	param   string
	pageCap int
}

// NewParameterIncrement builds the page-number strategy. The cap is required;
// values below 1 are treated as 1.
func NewParameterIncrement(startURL, param string, pageCap int) Strategy {
	if pageCap < 1 {
		pageCap = 1
	}
	if strings.TrimSpace(param) == "" {
		param = "page"
	}
	return &parameterIncrement{start: startURL, param: param, pageCap: pageCap}
}

func (s *parameterIncrement) Kind() StrategyKind { return ParameterIncrement }

func (s *parameterIncrement) Next(last *Outcome) Step {
	next := 1
	if last != nil {
		// an empty first page means the start URL is wrong, not that results ran out
		if last.Request.Index == 1 && last.Listings == 0 {
			return stop()
		}
		if last.Request.Index >= s.pageCap {
			return stop()
		}
		next = last.Request.Index + 1
	}
	return Step{Request: PageRequest{URL: WithPageParam(s.start, s.param, next), Index: next}, Continue: true}
}

// infiniteScroll loads a single page and exhausts its load-more trigger.
type infiniteScroll struct {
	start  string
	policy ScrollPolicy
}

// NewInfiniteScroll builds the scroll strategy, used only for uncapped runs.
func NewInfiniteScroll(startURL string, policy ScrollPolicy) Strategy {
	return &infiniteScroll{start: startURL, policy: policy}
}

func (s *infiniteScroll) Kind() StrategyKind { return InfiniteScroll }

func (s *infiniteScroll) Next(last *Outcome) Step {
	if last != nil {
		return stop()
	}
	policy := s.policy
	return Step{Request: PageRequest{URL: s.start, Index: 1, Scroll: &policy}, Continue: true}
}

// WithPageParam returns raw with its param query value set to page. An existing
// value is rewritten in place so the rest of the query keeps its order.
func WithPageParam(raw, param string, page int) string {
	value := strconv.Itoa(page)
	re := regexp.MustCompile(`([?&]` + regexp.QuoteMeta(param) + `=)[^&#]*`)
	if re.MatchString(raw) {
		return re.ReplaceAllString(raw, "${1}"+value)
	}

	u, err := url.Parse(raw)
	if err != nil {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%s%s=%s", raw, sep, param, value)
	}
	q := u.RawQuery
	if q != "" {
		q += "&"
	}
	u.RawQuery = q + url.QueryEscape(param) + "=" + value
	return u.String()
}
