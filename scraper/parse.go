package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyRe    = regexp.MustCompile(`(?i)\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(k|m|thousand|million)?\b`)
	spaceRe    = regexp.MustCompile(`\s+`)
	locationRe = regexp.MustCompile(`^([^,]+),\s*([A-Za-z]{2})(?:\s+(\d{5}))?(?:\s*\(([^)]+?)(?:\s+County)?\))?$`)
)

// parseMoney turns a display amount ("$1,250,000", "$1.2M", "450K") into a
// value. Returns nil for empty, undisclosed or zero amounts so callers can
// tell "not stated" apart from a real figure.
func parseMoney(s string) *float64 {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "not disclosed") || strings.Contains(lower, "n/a") || strings.Contains(lower, "contact") {
		return nil
	}
	m := moneyRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		v *= 1_000
	case "m", "million":
		v *= 1_000_000
	}
	if v == 0 {
		return nil
	}
	return &v
}

// parseIntField extracts the digits from s ("12 employees", "Est. 1998").
// Nil when s carries no digits at all.
func parseIntField(s string) *int {
	var n int
	seen := false
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &n
}

// parseYesNo maps the usual availability phrasings onto a tri-state bool.
// Nil when the text commits to neither.
func parseYesNo(s string) *bool {
	switch strings.ToLower(cleanText(s)) {
	case "yes", "available", "included", "true":
		v := true
		return &v
	case "no", "not available", "none", "false":
		v := false
		return &v
	}
	return nil
}

// parseLocation splits "Phoenix, AZ 85004 (Maricopa County)" into its parts.
// Zip and county are optional in the source text.
func parseLocation(s string) (city, state, zip, county string) {
	m := locationRe.FindStringSubmatch(cleanText(s))
	if m == nil {
		return "", "", "", ""
	}
	return m[1], strings.ToUpper(m[2]), m[3], m[4]
}

func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// normalizeLabel lowercases a <dt>/<th> caption and drops the trailing colon
// so adapters can switch on it.
func normalizeLabel(s string) string {
	return strings.TrimSuffix(strings.ToLower(cleanText(s)), ":")
}

// absURL resolves href against base. Search and pagination links on both
// platforms are usually root-relative.
func absURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

