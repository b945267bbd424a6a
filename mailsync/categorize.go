package mailsync

import (
	"regexp"
	"strings"

	"dealscout/models"
)

// Checked in order; the first match wins. Alert detection runs before the
// generic buckets so a marketplace digest never lands in "newsletter".
var (
	alertSubjectRe = regexp.MustCompile(`(?i)\b(new listings?|listings? matching|saved search|price (?:drop|reduction)|business(?:es)? for sale)\b`)
	diligenceRe    = regexp.MustCompile(`(?i)\b(due diligence|letter of intent|loi|purchase agreement|quality of earnings)\b`)
	dealUpdateRe   = regexp.MustCompile(`(?i)\b(under contract|counter ?offer|offer accepted|closing date|escrow)\b`)
	brokerRe       = regexp.MustCompile(`(?i)\b(nda|confidentiality agreement|confidential information memorandum|cim|teaser|acquisition opportunity|off[- ]market)\b`)
	newsletterRe   = regexp.MustCompile(`(?i)\b(unsubscribe|view (?:this email )?in browser|weekly digest)\b`)
)

// Categorize assigns the pipeline category from sender, subject and preview
// alone. Pure: no store access, no network.
func Categorize(raw *models.RawMessage, alertDomains map[string]bool) string {
	if isAlertDomain(alertDomains, senderDomain(raw.FromAddress)) {
		return models.CategoryListingAlert
	}
	if alertSubjectRe.MatchString(raw.Subject) {
		return models.CategoryListingAlert
	}

	haystack := raw.Subject + " " + raw.Preview
	switch {
	case diligenceRe.MatchString(haystack):
		return models.CategoryDiligence
	case dealUpdateRe.MatchString(haystack):
		return models.CategoryDealUpdate
	case brokerRe.MatchString(haystack):
		return models.CategoryBrokerOutreach
	case newsletterRe.MatchString(haystack):
		return models.CategoryNewsletter
	}
	return models.CategoryOther
}

func senderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// isAlertDomain matches exactly or by parent domain, so alerts.bizbuysell.com
// is covered by a configured bizbuysell.com.
func isAlertDomain(domains map[string]bool, domain string) bool {
	if domain == "" {
		return false
	}
	if domains[domain] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
