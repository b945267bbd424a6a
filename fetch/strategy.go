package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"dealscout/models"
)

const maxBodyBytes = 10 << 20

// Result is one fetched page. FinalURL is the URL after redirects; the login
// detection in the fetcher inspects it, not the requested URL.
type Result struct {
	Body       []byte
	FinalURL   string
	StatusCode int
	Header     http.Header
	Strategy   string
}

// Strategy is one way of retrieving a page. The direct strategy is plain HTTP;
// the browser strategy drives a headless Chromium for script-rendered sites.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, pageURL string, cookies []models.Cookie) (*Result, error)
}

// DirectStrategy fetches with a plain HTTP client that follows redirects.
type DirectStrategy struct {
	client *http.Client
}

func NewDirectStrategy(client *http.Client) *DirectStrategy {
	return &DirectStrategy{client: client}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Fetch(ctx context.Context, pageURL string, cookies []models.Cookie) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	setBrowserHeaders(req)
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:       body,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Strategy:   s.Name(),
	}, nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// LooksScriptRendered is the pure heuristic that picks the browser strategy:
// an implausibly short body that still carries script tags is almost always a
// JS shell waiting to hydrate, not real content.
func LooksScriptRendered(body []byte) bool {
	if len(body) >= 4096 {
		return false
	}
	lower := bytes.ToLower(body)
	if !bytes.Contains(lower, []byte("<script")) {
		return false
	}
	if bytes.Contains(lower, []byte("id=\"root\"")) ||
		bytes.Contains(lower, []byte("id=\"app\"")) ||
		bytes.Contains(lower, []byte("enable javascript")) ||
		bytes.Contains(lower, []byte("window.__")) {
		return true
	}
	// short page, scripts, and nearly no text content
	stripped := bytesWithoutTags(lower)
	return len(stripped) < 256
}

func bytesWithoutTags(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inTag := false
	for _, c := range b {
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
		case !inTag && c != ' ' && c != '\n' && c != '\t' && c != '\r':
			out = append(out, c)
		}
	}
	return out
}
