package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the headless Chrome process.
type Options struct {
	Headless bool
	ExecPath string
	// RemoteURL attaches to a running Chrome's DevTools websocket instead of
	// starting a local process.
	RemoteURL    string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

const (
	defaultWindowWidth  = 1440
	defaultWindowHeight = 900
)

// ChromeLauncher launches Chrome through chromedp.
type ChromeLauncher struct {
	opts Options
}

// NewChromeLauncher returns a launcher for opts.
func NewChromeLauncher(opts Options) *ChromeLauncher {
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = defaultWindowWidth
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = defaultWindowHeight
	}
	return &ChromeLauncher{opts: opts}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(l.opts.WindowWidth, l.opts.WindowHeight),
	)
	if p := strings.TrimSpace(l.opts.ExecPath); p != "" {
		opts = append(opts, chromedp.ExecPath(p))
	}
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	return opts
}

// Launch starts Chrome, or connects to RemoteURL, and waits until it accepts
// commands. The browser lives until Close, independent of ctx cancellation.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if remote := strings.TrimSpace(l.opts.RemoteURL); remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), remote)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	if err := startTarget(ctx, browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &chromeBrowser{ctx: browserCtx, cancel: cancel}, nil
}

// startTarget performs the first Run on a chromedp context. chromedp binds the
// target's event loop to the context of that first Run, so it must be the
// long-lived context itself; ctx only bounds how long the caller waits.
func startTarget(ctx, target context.Context) error {
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(target) }()

	select {
	case err := <-started:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewSession opens a new tab.
func (b *chromeBrowser) NewSession(ctx context.Context) (Session, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser closed: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := startTarget(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromeSession{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close terminates the browser process.
func (b *chromeBrowser) Close() error {
	b.once.Do(b.cancel)
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on an already attached tab, bounded by timeout and the
// caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.run(ctx, 0, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

const scrollToBottomJS = `window.scrollTo(0, document.body.scrollHeight)`

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	if err := s.run(ctx, 0, chromedp.Evaluate(scrollToBottomJS, nil)); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close closes the tab.
func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
