package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"dealscout/models"
)

// BrowserStrategy renders pages in headless Chromium. The browser launches
// lazily on first use and is shared; each fetch gets a fresh context so
// cookies never bleed across platforms.
type BrowserStrategy struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserStrategy() *BrowserStrategy {
	return &BrowserStrategy{}
}

func (s *BrowserStrategy) Name() string { return "browser" }

func (s *BrowserStrategy) ensureBrowser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	var err error
	s.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	s.browser, err = s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.initialized = true
	return nil
}

func (s *BrowserStrategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
	s.initialized = false
}

func (s *BrowserStrategy) Fetch(ctx context.Context, pageURL string, cookies []models.Cookie) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureBrowser(); err != nil {
		return nil, err
	}

	bctx, err := s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	if len(cookies) > 0 {
		if err := bctx.AddCookies(toPlaywrightCookies(pageURL, cookies)); err != nil {
			return nil, fmt.Errorf("failed to apply cookies: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := 60000.0
	if deadline, ok := ctx.Deadline(); ok {
		if ms := float64(deadlineMillis(deadline)); ms > 0 && ms < timeout {
			timeout = ms
		}
	}

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("browser goto %s: %w", pageURL, err)
	}

	// give client-side rendering a beat to hydrate
	page.WaitForTimeout(1500)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("browser content %s: %w", pageURL, err)
	}

	status := 200
	if resp != nil {
		status = resp.Status()
	}

	return &Result{
		Body:       []byte(content),
		FinalURL:   page.URL(),
		StatusCode: status,
		Strategy:   s.Name(),
	}, nil
}

func deadlineMillis(deadline time.Time) int64 {
	return time.Until(deadline).Milliseconds()
}

func toPlaywrightCookies(pageURL string, cookies []models.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, ck := range cookies {
		pc := playwright.OptionalCookie{
			Name:  ck.Name,
			Value: ck.Value,
		}
		if ck.Domain != "" {
			pc.Domain = playwright.String(ck.Domain)
			path := ck.Path
			if path == "" {
				path = "/"
			}
			pc.Path = playwright.String(path)
		} else {
			pc.URL = playwright.String(pageURL)
		}
		if ck.Expires != nil {
			pc.Expires = playwright.Float(float64(ck.Expires.Unix()))
		}
		if ck.Secure {
			pc.Secure = playwright.Bool(true)
		}
		if ck.HTTPOnly {
			pc.HttpOnly = playwright.Bool(true)
		}
		out = append(out, pc)
	}
	return out
}
