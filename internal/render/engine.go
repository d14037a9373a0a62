package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/paperfold/paperfold/internal/config"
	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/monitoring"
)

// Render failures.
var (
	ErrRenderTimeout      = errors.New("render deadline exceeded")
	ErrRenderFailure      = errors.New("render failed")
	ErrBrowserUnavailable = errors.New("browser is unavailable")
)

// Grace periods applied after the DOM is parsed, giving web fonts and
// script-driven layout a bounded chance to settle. The URL path gets a
// longer grace since remote pages carry more async content.
const (
	markupGracePeriod = time.Second
	urlGracePeriod    = 2 * time.Second
)

// Engine rasterizes markup or live URLs into PDF bytes using headless
// Chrome. One browser process is shared, but every call gets its own
// isolated incognito session that is torn down on every exit path.
type Engine struct {
	browser *rod.Browser
	cfg     *config.RenderConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewEngine launches the browser process and connects to it.
func NewEngine(cfg *config.RenderConfig) (*Engine, error) {
	l := launcher.New().Headless(true)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || cfg.BrowserBin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "browser",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Engine{
		browser: browser,
		cfg:     cfg,
		breaker: breaker,
		logger:  logging.NewLogger("render"),
	}, nil
}

// Close shuts down the browser process.
func (e *Engine) Close() error {
	if e.browser != nil {
		return e.browser.Close()
	}
	return nil
}

// Health verifies the browser connection is alive.
func (e *Engine) Health() error {
	if e.browser == nil {
		return ErrBrowserUnavailable
	}
	if _, err := e.browser.Version(); err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	return nil
}

// Render rasterizes markup into a PDF under the markup deadline.
// The markup is staged to a temp file so relative resolution and
// encoding behave like a normal page load.
func (e *Engine) Render(ctx context.Context, markup string, opts *Options) ([]byte, error) {
	start := time.Now()
	pdf, err := e.withBreaker(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, e.cfg.MarkupTimeout)
		defer cancel()

		tmpPath, cleanup, err := stageMarkup(markup)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		return e.renderPage(ctx, "file://"+tmpPath, opts, "", markupGracePeriod)
	})
	e.observe("markup", start, len(pdf), err)
	return pdf, err
}

// RenderURL navigates to a live URL and rasterizes it under the longer
// URL deadline. When waitFor is non-empty the engine waits for that
// selector (bounded by the selector timeout) instead of the fixed grace.
func (e *Engine) RenderURL(ctx context.Context, url string, opts *Options, waitFor string) ([]byte, error) {
	start := time.Now()
	pdf, err := e.withBreaker(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, e.cfg.URLTimeout)
		defer cancel()

		return e.renderPage(ctx, url, opts, waitFor, urlGracePeriod)
	})
	e.observe("url", start, len(pdf), err)
	return pdf, err
}

// renderPage drives one isolated browser session: navigate, wait for
// the DOM to be parsed (not network idle, to bound latency on pages
// with streaming subresources), settle, print. The session is torn
// down on every exit path.
func (e *Engine) renderPage(ctx context.Context, url string, opts *Options, waitFor string, grace time.Duration) ([]byte, error) {
	pdfOpts, err := buildPrintOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	session, err := e.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("%w: creating session: %v", ErrRenderFailure, err)
	}
	defer func() {
		// Closing the page alone leaves the incognito context alive in
		// the shared Chrome process; Close on the derived browser
		// disposes the context itself.
		if err := session.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to dispose render session")
		}
	}()

	page, err := session.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: creating page: %v", ErrRenderFailure, err)
	}
	page = page.Context(ctx)
	defer func() {
		// Teardown must survive an expired request context.
		if err := page.Context(context.Background()).Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close render page")
		}
	}()

	domReady := page.WaitEvent(&proto.PageDomContentEventFired{})
	if err := page.Navigate(url); err != nil {
		return nil, e.classify(ctx, fmt.Errorf("navigating: %w", err))
	}
	domReady()
	if err := ctx.Err(); err != nil {
		return nil, e.classify(ctx, err)
	}

	if waitFor != "" {
		selCtx, cancel := context.WithTimeout(ctx, e.cfg.SelectorTimeout)
		if _, err := page.Context(selCtx).Element(waitFor); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: selector %q did not appear", ErrRenderTimeout, waitFor)
		}
		cancel()
	} else {
		select {
		case <-time.After(grace):
		case <-ctx.Done():
			return nil, e.classify(ctx, ctx.Err())
		}
	}

	reader, err := page.PDF(pdfOpts)
	if err != nil {
		return nil, e.classify(ctx, fmt.Errorf("printing: %w", err))
	}
	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, e.classify(ctx, fmt.Errorf("reading PDF stream: %w", err))
	}

	return pdf, nil
}

// withBreaker routes a render through the browser circuit breaker so a
// wedged Chrome fails fast instead of queueing doomed sessions.
func (e *Engine) withBreaker(fn func() ([]byte, error)) ([]byte, error) {
	out, err := e.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: too many recent failures", ErrBrowserUnavailable)
		}
		return nil, err
	}
	return out.([]byte), nil
}

// classify folds low-level errors into the render taxonomy: a dead
// context is a timeout, anything else a render failure.
func (e *Engine) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrRenderTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrRenderFailure, err)
}

func (e *Engine) observe(kind string, start time.Time, bytes int, err error) {
	elapsed := time.Since(start)
	m := monitoring.Get()
	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrRenderTimeout) {
			m.RenderTimeouts.Inc()
			outcome = "timeout"
		}
	}
	m.RendersTotal.WithLabelValues(kind, outcome).Inc()
	m.RenderDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	event := e.logger.Info()
	if err != nil {
		event = e.logger.Error().Err(err)
	}
	event.
		Str("kind", kind).
		Dur("duration", elapsed).
		Int("pdf_bytes", bytes).
		Msg("Render completed")
}

// stageMarkup writes markup to a temp file and returns its path plus a
// cleanup func.
func stageMarkup(markup string) (string, func(), error) {
	f, err := os.CreateTemp("", "paperfold-*.html")
	if err != nil {
		return "", nil, fmt.Errorf("%w: staging markup: %v", ErrRenderFailure, err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.WriteString(markup); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("%w: staging markup: %v", ErrRenderFailure, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: staging markup: %v", ErrRenderFailure, err)
	}
	return f.Name(), cleanup, nil
}
