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

const PlatformBizQuest = "bizquest"

// BizQuest parses bizquest.com pages. Unlike BizBuySell the search results are
// flat <article> rows and detail financials live in a two-column table.
type BizQuest struct {
	cfg *config.PlatformConfig
}

func NewBizQuest(cfg *config.PlatformConfig) *BizQuest {
	return &BizQuest{cfg: cfg}
}

func (b *BizQuest) Platform() string { return PlatformBizQuest }

func (b *BizQuest) BuildSearchURL(filters SearchFilters) string {
	base := strings.TrimRight(b.cfg.BaseURL, "/") + b.cfg.SearchPath
	q := url.Values{}
	if filters.Region != "" {
		q.Set("state", filters.Region)
	}
	if filters.Keyword != "" {
		q.Set("keywords", filters.Keyword)
	}
	if filters.MinPrice > 0 {
		q.Set("minprice", strconv.Itoa(filters.MinPrice))
	}
	if filters.MaxPrice > 0 {
		q.Set("maxprice", strconv.Itoa(filters.MaxPrice))
	}
	if filters.MinCashFlow > 0 {
		q.Set("mincashflow", strconv.Itoa(filters.MinCashFlow))
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func (b *BizQuest) ParseSearchResults(html []byte) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []SearchResult
	doc.Find("article.result").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Find("a.result-title").Attr("href")
		if href == "" {
			return
		}
		r := SearchResult{URL: absURL(b.cfg.BaseURL, href)}
		r.Preview.Platform = PlatformBizQuest
		r.Preview.SourceURL = r.URL
		r.Preview.Title = cleanText(s.Find("a.result-title").Text())
		r.Preview.AskingPrice = parseMoney(s.Find("span.result-price").Text())
		r.Preview.CashFlow = parseMoney(s.Find("span.result-cash-flow").Text())
		r.Preview.Description = cleanText(s.Find("p.result-summary").Text())
		city, state, _, _ := parseLocation(s.Find("span.result-location").Text())
		r.Preview.City = city
		r.Preview.State = state
		results = append(results, r)
	})
	return results, nil
}

func (b *BizQuest) ParseDetailPage(html []byte, pageURL string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := &models.RawListing{
		Platform:  PlatformBizQuest,
		SourceURL: pageURL,
	}

	raw.Title = cleanText(doc.Find("h1.listing-header").First().Text())
	if raw.Title == "" {
		return nil, fmt.Errorf("detail page missing title: %s", pageURL)
	}
	raw.Description = cleanText(doc.Find("#business-description").First().Text())
	raw.City, raw.State, raw.Zip, raw.County = parseLocation(doc.Find("span.listing-area").First().Text())

	doc.Find("table.listing-financials tr").Each(func(_ int, tr *goquery.Selection) {
		label := normalizeLabel(tr.Find("th").Text())
		value := cleanText(tr.Find("td").Text())
		applyBizQuestField(raw, label, value)
	})

	box := doc.Find("div.contact-box").First()
	raw.BrokerName = cleanText(box.Find(".contact-name").Text())
	raw.BrokerCompany = cleanText(box.Find(".contact-company").Text())
	raw.BrokerPhone = cleanText(box.Find(".contact-phone").Text())

	raw.Industry = cleanText(doc.Find("span.listing-industry").First().Text())
	raw.Category = cleanText(doc.Find("span.listing-category").First().Text())

	return raw, nil
}

func applyBizQuestField(raw *models.RawListing, label, value string) {
	switch label {
	case "asking price":
		raw.AskingPrice = parseMoney(value)
	case "gross income", "gross revenue":
		raw.Revenue = parseMoney(value)
	case "cash flow":
		raw.CashFlow = parseMoney(value)
	case "ebitda":
		raw.EBITDA = parseMoney(value)
	case "seller's discretionary earnings", "sde":
		raw.SDE = parseMoney(value)
	case "year established", "established":
		raw.EstablishedYear = parseIntField(value)
	case "employees", "number of employees":
		raw.Employees = parseIntField(value)
	case "financing", "seller financing":
		raw.SellerFinancing = parseYesNo(value)
	}
}

func (b *BizQuest) NextPageURL(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find("div.paging a.next").First().Attr("href")
	if href == "" {
		return ""
	}
	return absURL(b.cfg.BaseURL, href)
}
