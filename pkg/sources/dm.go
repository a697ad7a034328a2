package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/Adda-Baaj/bazar-scraper/pkg/browser"

	"github.com/PuerkitoBio/goquery"
)

// dm catalog markup.
const (
	dmTileSelector  = `div[data-dmid="product-tile"]`
	dmPriceSelector = `[data-dmid="product-tile-price"]`
	dmA11ySelector  = ".sr-only"

	// DefaultDMPageParam is the catalog's page-number query parameter.
	DefaultDMPageParam = "currentPage"
)

var dmTitleSelectors = []string{`[data-dmid="product-title"]`, "h2", "h3"}

var (
	dmBrandRe = regexp.MustCompile(`Značka:\s*([^;]+)`)
	dmNameRe  = regexp.MustCompile(`Názov produktu:\s*([^;]+)`)
	dmPriceRe = regexp.MustCompile(`Cena:\s*([^;]+)`)
)

// DMSource scrapes the dm catalog through a headless browser. Capped runs
// walk the page-number parameter; uncapped runs exhaust the infinite scroll.
type DMSource struct {
	cfg             SourceConfig
	launcher        browser.Launcher
	log             Logger
	navTimeout      time.Duration
	selectorTimeout time.Duration
	settle          time.Duration
	scroll          crawler.ScrollPolicy
	sleep           crawler.Sleeper
	param           string
	width           int
}

// NewDMSource builds a DMSource; deps.Browser is required.
func NewDMSource(cfg SourceConfig, deps Deps) (crawler.Source, error) {
	if deps.Browser == nil {
		return nil, fmt.Errorf("source %q: browser launcher is required", cfg.ID)
	}
	deps = deps.normalized()
	return &DMSource{
		cfg:             cfg,
		launcher:        deps.Browser,
		log:             deps.Log,
		navTimeout:      deps.NavTimeout,
		selectorTimeout: deps.SelectorTimeout,
		settle:          deps.DetailSettle,
		scroll:          deps.Scroll,
		sleep:           deps.Sleep,
		param:           ConfigString(cfg, ConfigPageParamKey, DefaultDMPageParam),
		width:           ConfigInt(cfg, ConfigBatchWidthKey, crawler.BrowserBatchWidth),
	}, nil
}

func (s *DMSource) ID() string      { return s.cfg.ID }
func (s *DMSource) BatchWidth() int { return s.width }

func (s *DMSource) Strategy(startURL string, pageCap int) crawler.Strategy {
	if pageCap > 0 {
		return crawler.NewParameterIncrement(startURL, s.param, pageCap)
	}
	return crawler.NewInfiniteScroll(startURL, s.scroll)
}

// Open launches the browser for one run.
func (s *DMSource) Open(ctx context.Context) (crawler.Session, error) {
	b, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &dmSession{src: s, browser: b}, nil
}

type dmSession struct {
	src     *DMSource
	browser browser.Browser
}

// LoadPage renders one catalog page in its own tab, closed before returning.
func (d *dmSession) LoadPage(ctx context.Context, req crawler.PageRequest) (crawler.Page, error) {
	tab, err := d.browser.NewSession(ctx)
	if err != nil {
		return crawler.Page{}, err
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, req.URL, d.src.navTimeout); err != nil {
		return crawler.Page{}, err
	}
	if err := tab.WaitForSelector(ctx, dmTileSelector, d.src.selectorTimeout); err != nil {
		if ctx.Err() != nil {
			return crawler.Page{}, err
		}
		// no tiles rendered: an empty catalog page, not a failed fetch
		d.src.log.DebugObj("no product tiles rendered", "page_result", map[string]any{
			"source_id": d.src.cfg.ID,
			"url":       req.URL,
			"error":     err.Error(),
		})
		return crawler.Page{}, nil
	}

	if req.Scroll != nil {
		report, err := req.Scroll.Exhaust(ctx, &tabScroller{tab: tab, itemSelector: dmTileSelector}, d.src.sleep, req.OnScroll)
		if err != nil {
			return crawler.Page{}, err
		}
		d.src.log.InfoObj("infinite scroll finished", "scroll_result", map[string]any{
			"source_id": d.src.cfg.ID,
			"url":       req.URL,
			"attempts":  report.Attempts,
			"loaded":    report.Loaded,
			"clicks":    report.Clicks,
			"errors":    report.Errors,
			"reason":    report.Reason,
		})
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return crawler.Page{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.Page{}, fmt.Errorf("parse catalog page %s: %w", req.URL, err)
	}

	return crawler.Page{Listings: ExtractDMListings(doc, crawler.ParseBase(d.src.cfg.BaseURL, req.URL))}, nil
}

// Enrich renders the product page in a fresh tab and parses its sections.
func (d *dmSession) Enrich(ctx context.Context, item domain.ListingSummary) domain.EnrichedListing {
	text, err := d.productText(ctx, item.Link)
	if err != nil {
		d.src.log.WarnObj("detail fetch failed", "detail_error", map[string]any{
			"source_id": d.src.cfg.ID,
			"url":       item.Link,
			"error":     err.Error(),
		})
		return item.Fallback()
	}

	detail := ParseDMDetail(text)
	if detail.Empty() {
		return item.Fallback()
	}
	return item.WithBody(detail.Body(item.Summary))
}

func (d *dmSession) productText(ctx context.Context, link string) (string, error) {
	tab, err := d.browser.NewSession(ctx)
	if err != nil {
		return "", err
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, link, d.src.navTimeout); err != nil {
		return "", err
	}
	if err := d.src.sleep(ctx, d.src.settle); err != nil {
		return "", err
	}
	html, err := tab.HTML(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse product page: %w", err)
	}
	return PageText(doc), nil
}

func (d *dmSession) Close() error {
	return d.browser.Close()
}

// ExtractDMListings reads the product tiles of a rendered catalog page. The
// accessible label text is preferred; visible markup is the fallback. Tiles
// without a link or heading are dropped.
func ExtractDMListings(doc *goquery.Document, base *url.URL) []domain.ListingSummary {
	var out []domain.ListingSummary
	doc.Find(dmTileSelector).Each(func(_ int, tile *goquery.Selection) {
		href, _ := tile.Find("a").First().Attr("href")
		link := crawler.ResolveLink(href, base)
		if link == "" {
			return
		}

		label := tile.Find(dmA11ySelector).First().Text()
		brand := labelValue(dmBrandRe, label)
		heading := labelValue(dmNameRe, label)
		price := labelValue(dmPriceRe, label)

		if heading == "" {
			for _, sel := range dmTitleSelectors {
				if heading = crawler.CleanText(tile.Find(sel).First().Text()); heading != "" {
					break
				}
			}
		}
		if price == "" {
			price = crawler.CleanText(tile.Find(dmPriceSelector).First().Text())
		}
		if heading == "" {
			return
		}

		summary := heading
		if brand != "" {
			summary = brand + " - " + heading
		}
		out = append(out, domain.ListingSummary{
			Heading: heading,
			Price:   price,
			Link:    link,
			Summary: summary,
		})
	})
	return out
}

func labelValue(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return crawler.CleanText(m[1])
	}
	return ""
}

// tabScroller drives the infinite-scroll loop inside a browser tab.
type tabScroller struct {
	tab          browser.Session
	itemSelector string
}

const loadMoreJS = `(() => {
  const phrases = %s;
  const trigger = Array.from(document.querySelectorAll('button, a')).find(el => {
    const text = (el.textContent || '').toLowerCase();
    return phrases.some(p => text.includes(p));
  });
  if (trigger && trigger.offsetParent !== null) {
    trigger.click();
    return true;
  }
  return false;
})()`

const countItemsJS = `document.querySelectorAll(%s).length`

func (t *tabScroller) ScrollToBottom(ctx context.Context) error {
	return t.tab.ScrollToBottom(ctx)
}

func (t *tabScroller) TriggerLoadMore(ctx context.Context, phrases []string) (bool, error) {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	encoded, err := json.Marshal(lowered)
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := t.tab.Evaluate(ctx, fmt.Sprintf(loadMoreJS, encoded), &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

func (t *tabScroller) CountItems(ctx context.Context) (int, error) {
	sel, err := json.Marshal(t.itemSelector)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.tab.Evaluate(ctx, fmt.Sprintf(countItemsJS, sel), &n); err != nil {
		return 0, err
	}
	return n, nil
}
