package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealscout/config"
	"dealscout/metrics"
	"dealscout/models"
	"dealscout/ratelimit"
	"dealscout/session"
)

// ErrLoginRedirect means the final URL landed on a login page. The stored
// cookies were invalidated; the caller gets the error, never the login page
// as content.
var ErrLoginRedirect = errors.New("login redirect detected")

const (
	maxAttempts       = 3
	defaultRetryAfter = 30 * time.Second
)

var defaultLoginMarkers = []string{"/login", "/signin", "/auth", "redirect_to="}

var errScriptShell = errors.New("response looks script-rendered")

// StatusError is a non-2xx response that exhausted (or never had) retries.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

type cookieSource interface {
	Load(ctx context.Context, platform string) ([]models.Cookie, error)
	Invalidate(ctx context.Context, platform, reason string) error
}

// Fetcher retrieves pages for scraping platforms. Every fetch passes through
// the platform's rate limiter exactly once; retries ride the backoff policy:
// 429 honors Retry-After (default 30s), 500/502/503/504 back off 2^attempt
// seconds, any other non-2xx fails hard. Three attempts total.
type Fetcher struct {
	direct    Strategy
	browser   Strategy // nil disables the headless fallback
	cookies   cookieSource
	limits    *ratelimit.Registry
	platforms map[string]*config.PlatformConfig

	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewFetcher(direct, browser Strategy, cookies cookieSource, limits *ratelimit.Registry, platforms map[string]*config.PlatformConfig) *Fetcher {
	return &Fetcher{
		direct:    direct,
		browser:   browser,
		cookies:   cookies,
		limits:    limits,
		platforms: platforms,
		sleepFn:   sleepCtx,
	}
}

// FetchPage retrieves one page for the platform.
func (f *Fetcher) FetchPage(ctx context.Context, platform, pageURL string) (*Result, error) {
	timeout := 30 * time.Second
	markers := defaultLoginMarkers
	if p, ok := f.platforms[platform]; ok {
		if p.RequestTimeout > 0 {
			timeout = time.Duration(p.RequestTimeout) * time.Second
		}
		if len(p.LoginMarkers) > 0 {
			markers = p.LoginMarkers
		}
	}

	waitStart := time.Now()
	if err := f.limits.For(platform).WaitForSlot(ctx); err != nil {
		return nil, err
	}
	metrics.RateLimitWait.WithLabelValues(platform).Observe(time.Since(waitStart).Seconds())

	cookies, err := f.cookies.Load(ctx, platform)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := f.attempt(ctx, platform, pageURL, cookies, timeout, markers)
		if err != nil {
			if errors.Is(err, ErrLoginRedirect) || ctx.Err() != nil {
				metrics.FetchesTotal.WithLabelValues(platform, "direct", "login_redirect").Inc()
				return nil, err
			}
			lastErr = err
			if attempt < maxAttempts {
				if serr := f.sleepFn(ctx, time.Duration(1<<attempt)*time.Second); serr != nil {
					return nil, serr
				}
			}
			continue
		}

		switch {
		case res.StatusCode >= 200 && res.StatusCode < 300:
			metrics.FetchesTotal.WithLabelValues(platform, res.Strategy, "ok").Inc()
			metrics.FetchDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
			return res, nil

		case res.StatusCode == http.StatusTooManyRequests:
			lastErr = &StatusError{URL: pageURL, Code: res.StatusCode}
			if attempt < maxAttempts {
				if serr := f.sleepFn(ctx, retryAfterDelay(res.Header)); serr != nil {
					return nil, serr
				}
			}

		case res.StatusCode == 500 || res.StatusCode == 502 || res.StatusCode == 503 || res.StatusCode == 504:
			lastErr = &StatusError{URL: pageURL, Code: res.StatusCode}
			if attempt < maxAttempts {
				if serr := f.sleepFn(ctx, time.Duration(1<<attempt)*time.Second); serr != nil {
					return nil, serr
				}
			}

		default:
			metrics.FetchesTotal.WithLabelValues(platform, res.Strategy, "hard_status").Inc()
			return nil, &StatusError{URL: pageURL, Code: res.StatusCode}
		}
	}

	metrics.FetchesTotal.WithLabelValues(platform, "direct", "exhausted").Inc()
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", pageURL, maxAttempts, lastErr)
}

// attempt runs the direct strategy, escapes to the browser when the response
// looks script-rendered or the transport fails, and rejects login redirects.
func (f *Fetcher) attempt(ctx context.Context, platform, pageURL string, cookies []models.Cookie, timeout time.Duration, markers []string) (*Result, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := f.direct.Fetch(actx, pageURL, cookies)
	switch {
	case err != nil:
		res, err = f.fallback(actx, pageURL, cookies, err)
	case res.StatusCode < 300 && LooksScriptRendered(res.Body):
		res, err = f.fallback(actx, pageURL, cookies, errScriptShell)
	}
	if err != nil {
		return nil, err
	}

	if isLoginRedirect(res.FinalURL, markers) {
		if ierr := f.cookies.Invalidate(ctx, platform, session.ReasonLoginRedirect); ierr != nil {
			log.Printf("Warning: failed to invalidate cookies for %s: %v", platform, ierr)
		}
		return nil, fmt.Errorf("fetch %s landed on %s: %w", pageURL, res.FinalURL, ErrLoginRedirect)
	}

	return res, nil
}

func (f *Fetcher) fallback(ctx context.Context, pageURL string, cookies []models.Cookie, cause error) (*Result, error) {
	if f.browser == nil {
		return nil, cause
	}
	log.Printf("Fetch: browser fallback for %s (%v)", pageURL, cause)
	res, err := f.browser.Fetch(ctx, pageURL, cookies)
	if err != nil {
		return nil, fmt.Errorf("browser fallback for %s after %v: %w", pageURL, cause, err)
	}
	return res, nil
}

func isLoginRedirect(finalURL string, markers []string) bool {
	lower := strings.ToLower(finalURL)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func retryAfterDelay(header http.Header) time.Duration {
	if header == nil {
		return defaultRetryAfter
	}
	raw := header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
