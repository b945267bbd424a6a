package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, follows redirects (final URL matters)
	NoFollow *http.Client // scraping transport, redirects surfaced to the caller
	API      *http.Client // direct, for provider/token endpoints
}

// NewClients builds the shared HTTP clients. proxyURL may be empty. The
// scraping transport disables HTTP/2 because the target sites fingerprint h2
// clients more aggressively than h1.
func NewClients(proxyURL string, timeout time.Duration) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		NoFollow: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
