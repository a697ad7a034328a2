// Package server exposes scrape runs over HTTP: a JSON endpoint returning all
// results at once and a server-sent-event stream carrying progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/bazar-scraper/internal/config"
	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Client-facing messages. Internal errors are logged, never returned.
const (
	msgURLRequired   = "URL is required"
	msgInvalidDomain = "Invalid domain. No source is configured for this host."
	msgInvalidPages  = "pages must be a positive number or \"all\""
	msgScrapeFailed  = "Scraping failed"
)

const progressBuffer = 32

// Scraper runs scrapes for the transport.
type Scraper interface {
	ResolveSource(rawURL string) (string, error)
	Scrape(ctx context.Context, rawURL string, pageCap int, onProgress crawler.ProgressFunc) ([]domain.EnrichedListing, error)
}

// Logger defines the logging surface the server relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

// Server handles scrape requests.
type Server struct {
	scraper Scraper
	cfg     *config.Config
	log     Logger
}

// New builds a Server.
func New(scraper Scraper, cfg *config.Config, log Logger) *Server {
	if log == nil {
		log = noopLogger{}
	}
	return &Server{scraper: scraper, cfg: cfg, log: log}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/scrape", s.handleScrape)
	r.Get("/api/scrape/stream", s.handleStream)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("starting server", "server", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.log.InfoObj("shutting down server", "server", map[string]any{"addr": addr})
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type scrapeParams struct {
	url     string
	source  string
	pageCap int
}

// params validates the query. A non-empty message means a 400 response.
func (s *Server) params(r *http.Request) (scrapeParams, string) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("url"))
	if raw == "" {
		return scrapeParams{}, msgURLRequired
	}
	id, err := s.scraper.ResolveSource(raw)
	if err != nil {
		s.log.WarnObj("scrape request rejected", "request_error", map[string]any{
			"url":   raw,
			"error": err.Error(),
		})
		return scrapeParams{}, msgInvalidDomain
	}
	pageCap, err := s.cfg.ResolvePages(q.Get("pages"))
	if err != nil {
		return scrapeParams{}, msgInvalidPages
	}
	return scrapeParams{url: raw, source: id, pageCap: pageCap}, ""
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	p, msg := s.params(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	results, err := s.scraper.Scrape(r.Context(), p.url, p.pageCap, nil)
	if err != nil {
		s.logFailure(r, p, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgScrapeFailed})
		return
	}
	if results == nil {
		results = []domain.EnrichedListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type progressEvent struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	p, msg := s.params(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	progress := make(chan progressEvent, progressBuffer)
	type result struct {
		items []domain.EnrichedListing
		err   error
	}
	done := make(chan result, 1)

	go func() {
		items, err := s.scraper.Scrape(r.Context(), p.url, p.pageCap, func(message string, count int) {
			// a slow client loses intermediate updates, never blocks the run
			select {
			case progress <- progressEvent{Message: message, Count: count}:
			default:
			}
		})
		done <- result{items: items, err: err}
	}()

	for {
		select {
		case ev := <-progress:
			if err := writeEvent(w, "progress", ev); err != nil {
				continue
			}
			flusher.Flush()
		case res := <-done:
			drain(w, progress)
			if res.err != nil {
				s.logFailure(r, p, res.err)
				if r.Context().Err() == nil {
					_ = writeEvent(w, "error", map[string]string{"message": msgScrapeFailed})
				}
			} else {
				items := res.items
				if items == nil {
					items = []domain.EnrichedListing{}
				}
				_ = writeEvent(w, "complete", map[string]any{"results": items})
			}
			flusher.Flush()
			return
		}
	}
}

func drain(w http.ResponseWriter, progress <-chan progressEvent) {
	for {
		select {
		case ev := <-progress:
			_ = writeEvent(w, "progress", ev)
		default:
			return
		}
	}
}

func (s *Server) logFailure(r *http.Request, p scrapeParams, err error) {
	fields := map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"source_id":  p.source,
		"url":        p.url,
		"page_cap":   p.pageCap,
		"error":      err.Error(),
	}
	if errors.Is(err, crawler.ErrCancelled) {
		s.log.InfoObj("scrape cancelled by client", "scrape_request", fields)
		return
	}
	s.log.ErrorObj("scrape request failed", "scrape_request", fields)
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
