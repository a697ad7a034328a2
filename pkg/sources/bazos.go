package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/Adda-Baaj/bazar-scraper/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

// Bazos classified-ad markup.
const (
	bazosRowSelector     = ".inzeraty.inzeratyflex"
	bazosTitleSelector   = ".inzeratynadpis .nadpis a"
	bazosPriceSelector   = ".inzeratycena b"
	bazosSummarySelector = ".inzeratynadpis .popis"
	bazosPagerSelector   = ".strankovani a"
	bazosDetailSelector  = ".popisdetail"
)

// DefaultNextLabels are the pager captions of the "next page" anchor.
var DefaultNextLabels = []string{"Ďalšia", "Další", "Next"}

// BazosSource scrapes bazos.sk style classifieds over plain HTTP, following
// the pager's "next" anchor.
type BazosSource struct {
	cfg     SourceConfig
	client  httpclient.Client
	cache   PageCache
	log     Logger
	headers map[string]string
	labels  []string
	width   int
}

// NewBazosSource builds a BazosSource; deps.HTTP is required.
func NewBazosSource(cfg SourceConfig, deps Deps) (crawler.Source, error) {
	if deps.HTTP == nil {
		return nil, fmt.Errorf("source %q: http client is required", cfg.ID)
	}
	return &BazosSource{
		cfg:     cfg,
		client:  deps.HTTP,
		cache:   deps.Cache,
		log:     ensureLogger(deps.Log),
		headers: Headers(cfg),
		labels:  ConfigStrings(cfg, ConfigNextLabelsKey, DefaultNextLabels),
		width:   ConfigInt(cfg, ConfigBatchWidthKey, crawler.HTTPBatchWidth),
	}, nil
}

func (s *BazosSource) ID() string      { return s.cfg.ID }
func (s *BazosSource) BatchWidth() int { return s.width }

// Strategy always follows the pager links.
func (s *BazosSource) Strategy(startURL string, pageCap int) crawler.Strategy {
	return crawler.NewLinkFollowing(startURL, pageCap)
}

// Open returns a stateless HTTP session.
func (s *BazosSource) Open(context.Context) (crawler.Session, error) {
	return &bazosSession{src: s}, nil
}

type bazosSession struct {
	src *BazosSource
}

func (b *bazosSession) LoadPage(ctx context.Context, req crawler.PageRequest) (crawler.Page, error) {
	body, err := httpclient.FetchPage(ctx, b.src.client, req.URL, b.src.headers)
	if err != nil {
		return crawler.Page{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Page{}, fmt.Errorf("parse listing page %s: %w", req.URL, err)
	}

	base := crawler.ParseBase(b.src.cfg.BaseURL, req.URL)
	return crawler.Page{
		Listings: ExtractBazosListings(doc, base),
		NextURL:  FindNextLink(doc, bazosPagerSelector, b.src.labels, base),
	}, nil
}

// Enrich fetches the ad page and uses its description as the body.
func (b *bazosSession) Enrich(ctx context.Context, item domain.ListingSummary) domain.EnrichedListing {
	html, err := b.detailHTML(ctx, item.Link)
	if err != nil {
		b.src.log.WarnObj("detail fetch failed", "detail_error", map[string]any{
			"source_id": b.src.cfg.ID,
			"url":       item.Link,
			"error":     err.Error(),
		})
		return item.Fallback()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return item.Fallback()
	}
	text := ExtractBazosDetail(doc)
	if text == "" {
		return item.Fallback()
	}
	return item.WithBody(text)
}

func (b *bazosSession) detailHTML(ctx context.Context, link string) ([]byte, error) {
	if b.src.cache != nil {
		cached, ok, err := b.src.cache.Get(link)
		if err != nil {
			b.src.log.WarnObj("page cache read failed", "cache_error", map[string]any{"url": link, "error": err.Error()})
		} else if ok {
			return cached, nil
		}
	}

	body, err := httpclient.FetchPage(ctx, b.src.client, link, b.src.headers)
	if err != nil {
		return nil, err
	}

	if b.src.cache != nil {
		if err := b.src.cache.Put(link, body); err != nil {
			b.src.log.WarnObj("page cache write failed", "cache_error", map[string]any{"url": link, "error": err.Error()})
		}
	}
	return body, nil
}

func (b *bazosSession) Close() error { return nil }

// ExtractBazosListings reads the ad rows of a result page. Rows without a
// resolvable link are dropped.
func ExtractBazosListings(doc *goquery.Document, base *url.URL) []domain.ListingSummary {
	var out []domain.ListingSummary
	doc.Find(bazosRowSelector).Each(func(_ int, row *goquery.Selection) {
		title := row.Find(bazosTitleSelector).First()
		href, _ := title.Attr("href")
		link := crawler.ResolveLink(href, base)
		if link == "" {
			return
		}
		out = append(out, domain.ListingSummary{
			Heading: crawler.CleanText(title.Text()),
			Price:   crawler.CleanText(row.Find(bazosPriceSelector).First().Text()),
			Link:    link,
			Summary: crawler.CleanText(row.Find(bazosSummarySelector).First().Text()),
		})
	})
	return out
}

// ExtractBazosDetail returns the ad description text of a detail page.
func ExtractBazosDetail(doc *goquery.Document) string {
	return crawler.CleanText(doc.Find(bazosDetailSelector).Text())
}

// FindNextLink returns the absolute href of the first anchor under selector
// whose text contains one of labels, or "" when there is none.
func FindNextLink(doc *goquery.Document, selector string, labels []string, base *url.URL) string {
	next := ""
	doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := crawler.CleanText(a.Text())
		for _, label := range labels {
			if label == "" || !strings.Contains(text, label) {
				continue
			}
			href, _ := a.Attr("href")
			if link := crawler.ResolveLink(href, base); link != "" {
				next = link
				return false
			}
		}
		return true
	})
	return next
}
