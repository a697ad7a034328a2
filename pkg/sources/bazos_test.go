package sources

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/Adda-Baaj/bazar-scraper/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func fixtureDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loadFixture(t, name)))
	if err != nil {
		t.Fatalf("parse fixture %s: %v", name, err)
	}
	return doc
}

func TestExtractBazosListings(t *testing.T) {
	doc := fixtureDoc(t, "bazos_listing.html")
	base := crawler.ParseBase("", "https://pc.bazos.sk/notebook/")

	got := ExtractBazosListings(doc, base)
	want := []domain.ListingSummary{
		{
			Heading: "Lenovo ThinkPad T480",
			Price:   "320 €",
			Link:    "https://pc.bazos.sk/inzerat/171234567/lenovo-thinkpad-t480.php",
			Summary: `i5-8350U, 16 GB RAM, 256 GB SSD | "ako nový"`,
		},
		{
			Heading: "Dell Latitude 7490",
			Price:   "Dohodou",
			Link:    "https://pc.bazos.sk/inzerat/171234999/dell-latitude.php",
			Summary: "Batéria drží 5 hodín",
		},
		{
			Heading: "MacBook Air M1",
			Price:   "650 €",
			Link:    "https://pc.bazos.sk/notebook/inzerat/171235000/macbook-air.php",
			Summary: "Ako nový",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected listings:\n got %#v\nwant %#v", got, want)
	}
}

func TestExtractBazosListingsIsIdempotentAndAbsolute(t *testing.T) {
	base := crawler.ParseBase("", "https://pc.bazos.sk/notebook/")
	first := ExtractBazosListings(fixtureDoc(t, "bazos_listing.html"), base)
	second := ExtractBazosListings(fixtureDoc(t, "bazos_listing.html"), base)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not idempotent")
	}
	for _, it := range first {
		if !strings.HasPrefix(it.Link, "https://") {
			t.Fatalf("link %q is not absolute", it.Link)
		}
	}
}

func TestFindNextLink(t *testing.T) {
	base := crawler.ParseBase("", "https://pc.bazos.sk/notebook/")

	next := FindNextLink(fixtureDoc(t, "bazos_listing.html"), bazosPagerSelector, DefaultNextLabels, base)
	if next != "https://pc.bazos.sk/notebook/20/" {
		t.Fatalf("unexpected next link %q", next)
	}
	if last := FindNextLink(fixtureDoc(t, "bazos_last_page.html"), bazosPagerSelector, DefaultNextLabels, base); last != "" {
		t.Fatalf("expected no next link on last page, got %q", last)
	}
}

func TestExtractBazosDetail(t *testing.T) {
	got := ExtractBazosDetail(fixtureDoc(t, "bazos_detail.html"))
	want := "Predám notebook Lenovo ThinkPad T480. Procesor i5-8350U, 16 GB RAM. Nabíjačka v cene."
	if got != want {
		t.Fatalf("detail got %q want %q", got, want)
	}
}

// stubResponse implements httpclient.Response.
type stubResponse struct {
	body   []byte
	status int
}

func (s stubResponse) Body() []byte    { return s.body }
func (s stubResponse) StatusCode() int { return s.status }

// stubClient serves canned bodies by URL and counts requests.
type stubClient struct {
	mu    sync.Mutex
	pages map[string][]byte
	calls map[string]int
}

func (s *stubClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[url]++
	body, ok := s.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return stubResponse{body: body, status: http.StatusOK}, nil
}

// memCache is an in-memory PageCache.
type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memCache) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[key]
	return b, ok, nil
}

func (m *memCache) Put(key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string][]byte{}
	}
	m.items[key] = body
	return nil
}

func TestBazosEnrichFallsBackToSummary(t *testing.T) {
	src, err := NewBazosSource(SourceConfig{ID: "bazos"}, Deps{HTTP: &stubClient{}})
	if err != nil {
		t.Fatalf("NewBazosSource: %v", err)
	}
	session, _ := src.Open(context.Background())

	item := domain.ListingSummary{Heading: "x", Link: "https://pc.bazos.sk/inzerat/1/x.php", Summary: "short summary"}
	got := session.Enrich(context.Background(), item)
	if got.Body != item.Summary {
		t.Fatalf("expected fallback body %q, got %q", item.Summary, got.Body)
	}
}

func TestBazosEnrichUsesPageCache(t *testing.T) {
	link := "https://pc.bazos.sk/inzerat/171234567/lenovo-thinkpad-t480.php"
	client := &stubClient{pages: map[string][]byte{link: loadFixture(t, "bazos_detail.html")}}
	cache := &memCache{}

	src, err := NewBazosSource(SourceConfig{ID: "bazos"}, Deps{HTTP: client, Cache: cache})
	if err != nil {
		t.Fatalf("NewBazosSource: %v", err)
	}
	session, _ := src.Open(context.Background())
	item := domain.ListingSummary{Heading: "Lenovo", Link: link, Summary: "s"}

	first := session.Enrich(context.Background(), item)
	second := session.Enrich(context.Background(), item)
	if first.Body != second.Body || !strings.HasPrefix(first.Body, "Predám notebook") {
		t.Fatalf("unexpected bodies %q / %q", first.Body, second.Body)
	}
	if client.calls[link] != 1 {
		t.Fatalf("expected a single fetch, got %d", client.calls[link])
	}
}

func TestBazosSourceEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	listing := loadFixture(t, "bazos_listing.html")
	last := loadFixture(t, "bazos_last_page.html")
	detail := loadFixture(t, "bazos_detail.html")

	var mu sync.Mutex
	requested := map[string]int{}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested[r.URL.Path]++
		mu.Unlock()
		switch {
		case r.URL.Path == "/notebook/":
			_, _ = w.Write(listing)
		case r.URL.Path == "/notebook/20/":
			_, _ = w.Write(last)
		case strings.Contains(r.URL.Path, "dell-latitude"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.HasPrefix(r.URL.Path, "/inzerat/"), strings.HasPrefix(r.URL.Path, "/notebook/inzerat/"):
			_, _ = w.Write(detail)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// the fixture's absolute link points at pc.bazos.sk; route it to the test server
	listing = bytes.ReplaceAll(listing, []byte("https://pc.bazos.sk"), []byte(srv.URL))

	src, err := NewBazosSource(SourceConfig{ID: "bazos"}, Deps{HTTP: httpclient.NewRestyClient(httpclient.Options{Timeout: 5 * time.Second})})
	if err != nil {
		t.Fatalf("NewBazosSource: %v", err)
	}

	svc := crawler.NewService(nil, crawler.Pacing{})
	items, err := svc.Run(context.Background(), src, crawler.Request{StartURL: srv.URL + "/notebook/", PageCap: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 listings over 2 pages, got %d", len(items))
	}
	if requested["/notebook/"] != 1 || requested["/notebook/20/"] != 1 {
		t.Fatalf("unexpected page requests %v", requested)
	}
	if items[0].Body == items[0].Summary {
		t.Fatalf("expected detail body for first item")
	}
	if items[1].Heading != "Dell Latitude 7490" || items[1].Body != items[1].Summary {
		t.Fatalf("expected fallback body for failed detail, got %+v", items[1])
	}
	if items[3].Heading != "Asus ZenBook" {
		t.Fatalf("unexpected order, last item %+v", items[3])
	}
}
