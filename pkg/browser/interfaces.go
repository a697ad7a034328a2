package browser

import (
	"context"
	"time"
)

// Session is one rendered browser tab. Every call may fail with a timeout.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate runs script in the page and decodes its result into out (nil discards it).
	Evaluate(ctx context.Context, script string, out any) error
	ScrollToBottom(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Browser is a running browser process that hands out tabs.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}
