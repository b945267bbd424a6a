package mailsync

import (
	"testing"
)

var alertHosts = map[string]string{
	"bizbuysell.com": "bizbuysell",
	"bizquest.com":   "bizquest",
}

func TestExtractListings(t *testing.T) {
	body := `<html><body>
<table>
  <tr><td>
    <a href="https://www.bizbuysell.com/business-opportunity/commercial-hvac-service-company/2214307/?utm_source=alert&utm_medium=email&ref=digest">Commercial HVAC Service Company</a><br>
    Phoenix, AZ | Asking Price: $1,250,000
    <a href="https://www.bizbuysell.com/business-opportunity/commercial-hvac-service-company/2214307/?utm_source=alert&utm_campaign=cta">View Listing &raquo;</a>
  </td></tr>
  <tr><td>
    <div><a href="https://www.bizquest.com/business-for-sale/pool-route-312-accounts-phoenix/BW2029811/">Pool Route with 312 Accounts</a> Asking $185,000</div>
  </td></tr>
</table>
<p>
  <a href="https://www.bizbuysell.com/">BizBuySell</a>
  <a href="https://www.bizbuysell.com/brokers">Find a Broker</a>
  <a href="https://tracking.example.com/click/abc/def">Sponsored</a>
  <a href="mailto:support@bizbuysell.com">Contact</a>
  <a href="https://www.bizbuysell.com/account/email-preferences/unsubscribe">Unsubscribe</a>
</p>
</body></html>`

	got := ExtractListings(body, alertHosts)
	if len(got) != 2 {
		t.Fatalf("extracted %d listings, want 2: %+v", len(got), got)
	}

	hvac := got[0]
	if hvac.Platform != "bizbuysell" {
		t.Fatalf("platform = %s", hvac.Platform)
	}
	if hvac.SourceURL != "https://www.bizbuysell.com/business-opportunity/commercial-hvac-service-company/2214307" {
		t.Fatalf("source url = %s, want tracking params stripped", hvac.SourceURL)
	}
	if hvac.Title != "Commercial HVAC Service Company" {
		t.Fatalf("title = %q", hvac.Title)
	}
	if hvac.AskingPrice == nil || *hvac.AskingPrice != 1250000 {
		t.Fatalf("asking price = %v", hvac.AskingPrice)
	}

	pool := got[1]
	if pool.Platform != "bizquest" {
		t.Fatalf("platform = %s", pool.Platform)
	}
	if pool.SourceURL != "https://www.bizquest.com/business-for-sale/pool-route-312-accounts-phoenix/BW2029811" {
		t.Fatalf("source url = %s", pool.SourceURL)
	}
	if pool.Title != "Pool Route with 312 Accounts" {
		t.Fatalf("title = %q", pool.Title)
	}
	if pool.AskingPrice == nil || *pool.AskingPrice != 185000 {
		t.Fatalf("asking price = %v", pool.AskingPrice)
	}
}

func TestExtractListings_CTATextNeverTitles(t *testing.T) {
	body := `<div>
<a href="https://www.bizbuysell.com/business-opportunity/electrical-contracting-firm/2201440/">View Listing &raquo;</a>
<a href="https://www.bizbuysell.com/business-opportunity/electrical-contracting-firm/2201440/">Electrical Contracting Firm</a>
</div>`

	got := ExtractListings(body, alertHosts)
	if len(got) != 1 {
		t.Fatalf("extracted %d listings, want 1", len(got))
	}
	if got[0].Title != "Electrical Contracting Firm" {
		t.Fatalf("title = %q, want the non-generic link text", got[0].Title)
	}
}

func TestExtractListings_SubdomainHostMatches(t *testing.T) {
	body := `<a href="https://m.bizbuysell.com/business-opportunity/hvac-contractor/2214307/">HVAC Contractor</a>`

	got := ExtractListings(body, alertHosts)
	if len(got) != 1 {
		t.Fatalf("extracted %d listings, want 1", len(got))
	}
	if got[0].Platform != "bizbuysell" {
		t.Fatalf("platform = %s", got[0].Platform)
	}
	if got[0].SourceURL != "https://m.bizbuysell.com/business-opportunity/hvac-contractor/2214307" {
		t.Fatalf("source url = %s", got[0].SourceURL)
	}
}

func TestExtractListings_IgnoresNonHTML(t *testing.T) {
	got := ExtractListings("Your search matched 4 new listings near $500,000", alertHosts)
	if len(got) != 0 {
		t.Fatalf("extracted %d listings from plain text", len(got))
	}
}
