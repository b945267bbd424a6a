package scraper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dealscout/config"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func bizBuySellCfg() *config.PlatformConfig {
	return &config.PlatformConfig{
		ID:         PlatformBizBuySell,
		BaseURL:    "https://www.bizbuysell.com",
		SearchPath: "/businesses-for-sale/",
	}
}

func bizQuestCfg() *config.PlatformConfig {
	return &config.PlatformConfig{
		ID:         PlatformBizQuest,
		BaseURL:    "https://www.bizquest.com",
		SearchPath: "/businesses-for-sale/",
	}
}

func TestBizBuySell_BuildSearchURL(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())

	got := a.BuildSearchURL(SearchFilters{Region: "phoenix-az", MinPrice: 500000, MaxPrice: 2000000})
	want := "https://www.bizbuysell.com/businesses-for-sale/?location=phoenix-az&price_max=2000000&price_min=500000"
	if got != want {
		t.Fatalf("search url = %s, want %s", got, want)
	}

	if got := a.BuildSearchURL(SearchFilters{}); got != "https://www.bizbuysell.com/businesses-for-sale/" {
		t.Fatalf("empty filters url = %s", got)
	}
}

func TestBizBuySell_ParseSearchResults(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())
	html := loadFixture(t, "bizbuysell_search.html")

	results, err := a.ParseSearchResults(html)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.URL != "https://www.bizbuysell.com/business-opportunity/commercial-hvac-service-company/2214307/" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.Preview.Title != "Commercial HVAC Service Company" {
		t.Fatalf("unexpected title: %s", first.Preview.Title)
	}
	if first.Preview.AskingPrice == nil || *first.Preview.AskingPrice != 1250000 {
		t.Fatalf("asking price = %v, want 1250000", first.Preview.AskingPrice)
	}
	if first.Preview.CashFlow == nil || *first.Preview.CashFlow != 385000 {
		t.Fatalf("cash flow = %v, want 385000", first.Preview.CashFlow)
	}
	if first.Preview.City != "Phoenix" || first.Preview.State != "AZ" {
		t.Fatalf("location = %s, %s", first.Preview.City, first.Preview.State)
	}
	if first.Preview.Platform != PlatformBizBuySell {
		t.Fatalf("platform = %s", first.Preview.Platform)
	}

	second := results[1]
	if second.Preview.CashFlow != nil {
		t.Fatalf("undisclosed cash flow should be nil, got %v", *second.Preview.CashFlow)
	}
	if second.Preview.AskingPrice == nil || *second.Preview.AskingPrice != 675000 {
		t.Fatalf("asking price = %v, want 675000", second.Preview.AskingPrice)
	}
}

func TestBizBuySell_ParseDetailPage_Full(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())
	html := loadFixture(t, "bizbuysell_detail_full.html")

	raw, err := a.ParseDetailPage(html, "https://www.bizbuysell.com/business-opportunity/commercial-hvac-service-company/2214307/")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if raw.Title != "Commercial HVAC Service Company" {
		t.Fatalf("title = %s", raw.Title)
	}
	if raw.BusinessName != "Desert Air Mechanical LLC" {
		t.Fatalf("business name = %s", raw.BusinessName)
	}
	if raw.City != "Phoenix" || raw.State != "AZ" || raw.Zip != "85004" || raw.County != "Maricopa" {
		t.Fatalf("location = %s/%s/%s/%s", raw.City, raw.State, raw.Zip, raw.County)
	}
	if raw.AskingPrice == nil || *raw.AskingPrice != 1250000 {
		t.Fatalf("asking price = %v", raw.AskingPrice)
	}
	if raw.Revenue == nil || *raw.Revenue != 2100000 {
		t.Fatalf("revenue = %v", raw.Revenue)
	}
	if raw.CashFlow == nil || *raw.CashFlow != 385000 {
		t.Fatalf("cash flow = %v", raw.CashFlow)
	}
	if raw.SDE == nil || *raw.SDE != 385000 {
		t.Fatalf("sde should mirror the cash flow (sde) row, got %v", raw.SDE)
	}
	if raw.EBITDA == nil || *raw.EBITDA != 310000 {
		t.Fatalf("ebitda = %v", raw.EBITDA)
	}
	if raw.EstablishedYear == nil || *raw.EstablishedYear != 1998 {
		t.Fatalf("established = %v", raw.EstablishedYear)
	}
	if raw.Employees == nil || *raw.Employees != 12 {
		t.Fatalf("employees = %v", raw.Employees)
	}
	if raw.SellerFinancing == nil || !*raw.SellerFinancing {
		t.Fatalf("seller financing = %v", raw.SellerFinancing)
	}
	if raw.BrokerName != "Dan Whitfield" || raw.BrokerCompany != "Sunbelt Business Brokers of Phoenix" {
		t.Fatalf("broker = %s / %s", raw.BrokerName, raw.BrokerCompany)
	}
	if raw.BrokerPhone != "(602) 555-0148" {
		t.Fatalf("broker phone = %s", raw.BrokerPhone)
	}
	if raw.Industry != "Service Businesses" || raw.Category != "HVAC Businesses" || raw.Subcategory != "Commercial HVAC" {
		t.Fatalf("breadcrumb = %s / %s / %s", raw.Industry, raw.Category, raw.Subcategory)
	}
	if !strings.Contains(raw.Description, "recurring maintenance agreements") {
		t.Fatalf("description not extracted: %q", raw.Description)
	}
}

func TestBizBuySell_ParseDetailPage_Sparse(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())
	html := loadFixture(t, "bizbuysell_detail_sparse.html")

	raw, err := a.ParseDetailPage(html, "https://www.bizbuysell.com/business-opportunity/profitable-plumbing-contractor/2198852/")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if raw.AskingPrice == nil || *raw.AskingPrice != 675000 {
		t.Fatalf("asking price = %v", raw.AskingPrice)
	}
	if raw.Revenue != nil {
		t.Fatalf("undisclosed revenue should be nil, got %v", *raw.Revenue)
	}
	if raw.CashFlow != nil || raw.SDE != nil || raw.EBITDA != nil {
		t.Fatalf("undisclosed earnings should stay nil: cf=%v sde=%v ebitda=%v", raw.CashFlow, raw.SDE, raw.EBITDA)
	}
	if raw.City != "Mesa" || raw.State != "AZ" {
		t.Fatalf("location = %s, %s", raw.City, raw.State)
	}
	if raw.Zip != "" || raw.County != "" {
		t.Fatalf("zip/county should be empty, got %s / %s", raw.Zip, raw.County)
	}
	if raw.BrokerName != "" {
		t.Fatalf("broker name should be empty, got %s", raw.BrokerName)
	}
	if raw.Employees != nil || raw.EstablishedYear != nil || raw.SellerFinancing != nil {
		t.Fatalf("absent details should stay nil")
	}
}

func TestBizBuySell_ParseDetailPage_NotAListing(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())

	if _, err := a.ParseDetailPage([]byte("<html><body><h1>Page not found</h1></body></html>"), "https://www.bizbuysell.com/gone"); err == nil {
		t.Fatal("expected error for a page without a listing title")
	}
}

func TestBizBuySell_NextPageURL(t *testing.T) {
	a := NewBizBuySell(bizBuySellCfg())

	next := a.NextPageURL(loadFixture(t, "bizbuysell_search.html"))
	if next != "https://www.bizbuysell.com/businesses-for-sale/?location=phoenix-az&page=2" {
		t.Fatalf("next url = %s", next)
	}

	if next := a.NextPageURL(loadFixture(t, "bizbuysell_search_last.html")); next != "" {
		t.Fatalf("last page should have no next url, got %s", next)
	}
}

func TestBizQuest_BuildSearchURL(t *testing.T) {
	a := NewBizQuest(bizQuestCfg())

	got := a.BuildSearchURL(SearchFilters{Region: "AZ", Keyword: "hvac", MinCashFlow: 100000})
	want := "https://www.bizquest.com/businesses-for-sale/?keywords=hvac&mincashflow=100000&state=AZ"
	if got != want {
		t.Fatalf("search url = %s, want %s", got, want)
	}
}

func TestBizQuest_ParseSearchResults(t *testing.T) {
	a := NewBizQuest(bizQuestCfg())

	results, err := a.ParseSearchResults(loadFixture(t, "bizquest_search.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.URL != "https://www.bizquest.com/business-for-sale/landscaping-and-irrigation-company/BW2032455/" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.Preview.Title != "Landscaping & Irrigation Company" {
		t.Fatalf("title = %s", first.Preview.Title)
	}
	if first.Preview.AskingPrice == nil || *first.Preview.AskingPrice != 550000 {
		t.Fatalf("asking price = %v", first.Preview.AskingPrice)
	}
	if first.Preview.City != "Scottsdale" || first.Preview.State != "AZ" {
		t.Fatalf("location = %s, %s", first.Preview.City, first.Preview.State)
	}
	if first.Preview.Platform != PlatformBizQuest {
		t.Fatalf("platform = %s", first.Preview.Platform)
	}
}

func TestBizQuest_ParseDetailPage(t *testing.T) {
	a := NewBizQuest(bizQuestCfg())

	raw, err := a.ParseDetailPage(loadFixture(t, "bizquest_detail.html"), "https://www.bizquest.com/business-for-sale/landscaping-and-irrigation-company/BW2032455/")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if raw.Title != "Landscaping & Irrigation Company" {
		t.Fatalf("title = %s", raw.Title)
	}
	if raw.City != "Scottsdale" || raw.State != "AZ" || raw.Zip != "85251" || raw.County != "Maricopa" {
		t.Fatalf("location = %s/%s/%s/%s", raw.City, raw.State, raw.Zip, raw.County)
	}
	if raw.AskingPrice == nil || *raw.AskingPrice != 550000 {
		t.Fatalf("asking price = %v", raw.AskingPrice)
	}
	if raw.Revenue == nil || *raw.Revenue != 1400000 {
		t.Fatalf("gross income should map to revenue, got %v", raw.Revenue)
	}
	if raw.CashFlow == nil || *raw.CashFlow != 185000 {
		t.Fatalf("cash flow = %v", raw.CashFlow)
	}
	if raw.SDE != nil || raw.EBITDA != nil {
		t.Fatalf("sde/ebitda not on the page, got %v / %v", raw.SDE, raw.EBITDA)
	}
	if raw.EstablishedYear == nil || *raw.EstablishedYear != 2009 {
		t.Fatalf("established = %v", raw.EstablishedYear)
	}
	if raw.Employees == nil || *raw.Employees != 9 {
		t.Fatalf("employees = %v", raw.Employees)
	}
	if raw.SellerFinancing == nil || !*raw.SellerFinancing {
		t.Fatalf("seller financing = %v", raw.SellerFinancing)
	}
	if raw.BrokerName != "Maria Delgado" || raw.BrokerPhone != "(480) 555-0192" {
		t.Fatalf("broker = %s / %s", raw.BrokerName, raw.BrokerPhone)
	}
	if raw.Industry != "Service Businesses" || raw.Category != "Landscaping and Yard Services" {
		t.Fatalf("industry = %s / %s", raw.Industry, raw.Category)
	}
}

func TestBizQuest_NextPageURL(t *testing.T) {
	a := NewBizQuest(bizQuestCfg())

	next := a.NextPageURL(loadFixture(t, "bizquest_search.html"))
	if next != "https://www.bizquest.com/businesses-for-sale/?state=AZ&page=2" {
		t.Fatalf("next url = %s", next)
	}
}

func TestRegistry_New(t *testing.T) {
	reg := NewRegistry()

	a, err := reg.New(bizBuySellCfg())
	if err != nil {
		t.Fatalf("known platform failed: %v", err)
	}
	if a.Platform() != PlatformBizBuySell {
		t.Fatalf("platform = %s", a.Platform())
	}

	if _, err := reg.New(&config.PlatformConfig{ID: "craigslist"}); err == nil {
		t.Fatal("expected error for unregistered platform")
	}
}
