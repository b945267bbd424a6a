// Package identity derives the stable keys the pipeline dedupes on: a content
// hash for mailbox messages and a canonical form for listing source URLs.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Tracking parameters stripped during URL canonicalization. Marketplace alert
// links arrive wrapped in campaign junk that would otherwise split one source
// into many.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"mc_cid":       true,
	"mc_eid":       true,
	"ref":          true,
}

// MessageHash is the cross-account identity of a mailbox message: the same
// message synced through two different accounts hashes identically regardless
// of provider message ids. Truncated to 32 hex chars.
func MessageHash(fromAddress, subject string, sentAt time.Time) string {
	input := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(fromAddress)),
		strings.ToLower(strings.TrimSpace(subject)),
		sentAt.UTC().Format(time.RFC3339),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// CanonicalURL normalizes a listing URL into the ListingSource key: lowercase
// scheme/host, no fragment, no tracking params, no trailing slash. Unparseable
// input is returned trimmed rather than rejected; a stable wrong key still
// dedupes consistently.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
