package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealscout/config"
	"dealscout/models"
)

const PlatformBizBuySell = "bizbuysell"

// BizBuySell parses bizbuysell.com search and detail pages. Result cards sit
// in a grid; detail pages carry financials and business facts in <dl> blocks.
type BizBuySell struct {
	cfg *config.PlatformConfig
}

func NewBizBuySell(cfg *config.PlatformConfig) *BizBuySell {
	return &BizBuySell{cfg: cfg}
}

func (b *BizBuySell) Platform() string { return PlatformBizBuySell }

func (b *BizBuySell) BuildSearchURL(filters SearchFilters) string {
	base := strings.TrimRight(b.cfg.BaseURL, "/") + b.cfg.SearchPath
	q := url.Values{}
	if filters.Region != "" {
		q.Set("location", filters.Region)
	}
	if filters.Keyword != "" {
		q.Set("q", filters.Keyword)
	}
	if filters.MinPrice > 0 {
		q.Set("price_min", strconv.Itoa(filters.MinPrice))
	}
	if filters.MaxPrice > 0 {
		q.Set("price_max", strconv.Itoa(filters.MaxPrice))
	}
	if filters.MinCashFlow > 0 {
		q.Set("cash_flow_min", strconv.Itoa(filters.MinCashFlow))
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func (b *BizBuySell) ParseSearchResults(html []byte) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []SearchResult
	doc.Find("div.listing-card").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Find("a.listing-link").Attr("href")
		if href == "" {
			return
		}
		r := SearchResult{URL: absURL(b.cfg.BaseURL, href)}
		r.Preview.Platform = PlatformBizBuySell
		r.Preview.SourceURL = r.URL
		r.Preview.Title = cleanText(s.Find("h3.listing-title").Text())
		r.Preview.AskingPrice = parseMoney(s.Find(".listing-price").Text())
		r.Preview.CashFlow = parseMoney(s.Find(".listing-cash-flow").Text())
		r.Preview.Description = cleanText(s.Find("p.listing-teaser").Text())
		city, state, _, _ := parseLocation(s.Find(".listing-location").Text())
		r.Preview.City = city
		r.Preview.State = state
		results = append(results, r)
	})
	return results, nil
}

func (b *BizBuySell) ParseDetailPage(html []byte, pageURL string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := &models.RawListing{
		Platform:  PlatformBizBuySell,
		SourceURL: pageURL,
	}

	raw.Title = cleanText(doc.Find("h1.listing-title").First().Text())
	if raw.Title == "" {
		return nil, fmt.Errorf("detail page missing title: %s", pageURL)
	}
	raw.BusinessName = cleanText(doc.Find(".business-name").First().Text())
	raw.Description = cleanText(doc.Find(".business-description").First().Text())

	raw.City, raw.State, raw.Zip, raw.County = parseLocation(doc.Find(".listing-location").First().Text())

	// Financials and business facts share the same <dt>/<dd> layout.
	doc.Find("section.financials dl, section.business-details dl").Each(func(_ int, dl *goquery.Selection) {
		dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			label := normalizeLabel(dt.Text())
			value := cleanText(dt.NextFiltered("dd").Text())
			applyBizBuySellField(raw, label, value)
		})
	})

	card := doc.Find(".broker-card").First()
	raw.BrokerName = cleanText(card.Find(".broker-name").Text())
	raw.BrokerCompany = cleanText(card.Find(".broker-company").Text())
	raw.BrokerPhone = cleanText(card.Find(".broker-phone").Text())

	crumbs := doc.Find("nav.industry-breadcrumb a")
	if crumbs.Length() > 0 {
		raw.Industry = cleanText(crumbs.Eq(0).Text())
	}
	if crumbs.Length() > 1 {
		raw.Category = cleanText(crumbs.Eq(1).Text())
	}
	if crumbs.Length() > 2 {
		raw.Subcategory = cleanText(crumbs.Eq(2).Text())
	}

	return raw, nil
}

func applyBizBuySellField(raw *models.RawListing, label, value string) {
	switch label {
	case "asking price":
		raw.AskingPrice = parseMoney(value)
	case "gross revenue", "revenue":
		raw.Revenue = parseMoney(value)
	case "cash flow":
		raw.CashFlow = parseMoney(value)
	case "cash flow (sde)":
		// The site labels SDE as cash flow on some listings.
		raw.CashFlow = parseMoney(value)
		raw.SDE = parseMoney(value)
	case "ebitda":
		raw.EBITDA = parseMoney(value)
	case "sde", "seller's discretionary earnings":
		raw.SDE = parseMoney(value)
	case "established":
		raw.EstablishedYear = parseIntField(value)
	case "employees":
		raw.Employees = parseIntField(value)
	case "seller financing":
		raw.SellerFinancing = parseYesNo(value)
	}
}

func (b *BizBuySell) NextPageURL(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find("a[rel=next]").First().Attr("href")
	if href == "" {
		return ""
	}
	return absURL(b.cfg.BaseURL, href)
}
