package mailsync

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealscout/identity"
	"dealscout/models"
)

var (
	alertMoneyRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*)`)
	// Footer plumbing and search pages, never listing detail links.
	ignoredPathRe = regexp.MustCompile(`(?i)unsubscribe|email-preferences|privacy|terms|login|saved-search`)
	genericLinkRe = regexp.MustCompile(`(?i)^(view( listing| details| business)?|see( details| more)?|learn more|more info(rmation)?|click here|photo)[\s».>]*$`)
)

// ExtractListings pulls marketplace listing references out of an alert email
// body. hosts maps marketplace host suffixes to platform ids; links to other
// hosts are ignored. Multiple links to the same listing (title, image, CTA)
// collapse into one reference keyed by canonical URL.
func ExtractListings(body string, hosts map[string]string) []models.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]*models.RawListing)
	var order []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		platform, canonical := matchListingLink(href, hosts)
		if platform == "" {
			return
		}

		raw, ok := seen[canonical]
		if !ok {
			raw = &models.RawListing{Platform: platform, SourceURL: canonical}
			seen[canonical] = raw
			order = append(order, canonical)
		}
		if raw.Title == "" {
			if text := collapseSpace(s.Text()); text != "" && !genericLinkRe.MatchString(text) {
				raw.Title = text
			}
		}
		if raw.AskingPrice == nil {
			block := s.Closest("td, div, li").Text()
			if m := alertMoneyRe.FindStringSubmatch(block); m != nil {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && v > 0 {
					raw.AskingPrice = &v
				}
			}
		}
	})

	out := make([]models.RawListing, 0, len(order))
	for _, key := range order {
		out = append(out, *seen[key])
	}
	return out
}

// matchListingLink maps a link to its platform. Only links into a known
// marketplace host with a detail-shaped path (two or more segments) count.
func matchListingLink(href string, hosts map[string]string) (string, string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return "", ""
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return "", ""
	}
	if ignoredPathRe.MatchString(u.Path) {
		return "", ""
	}
	segments := strings.Trim(u.Path, "/")
	if segments == "" || !strings.Contains(segments, "/") {
		return "", ""
	}

	host := strings.ToLower(u.Host)
	for suffix, platform := range hosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return platform, identity.CanonicalURL(href)
		}
	}
	return "", ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
