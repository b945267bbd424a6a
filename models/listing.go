package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Listing is the canonical business-for-sale record. One row per opportunity,
// fed by every source that observes it. Observation fields are first-writer-wins:
// once non-null they are never overwritten (see FillFromRaw). Liveness and derived
// fields (LastSeenAt, multiples, UpdatedAt) are recomputed on every observation.
type Listing struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	BusinessName string    `json:"business_name" db:"business_name"`
	Description  string    `json:"description" db:"description"`

	AskingPrice *float64 `json:"asking_price" db:"asking_price"`
	Revenue     *float64 `json:"revenue" db:"revenue"`
	EBITDA      *float64 `json:"ebitda" db:"ebitda"`
	SDE         *float64 `json:"sde" db:"sde"`
	CashFlow    *float64 `json:"cash_flow" db:"cash_flow"`

	PriceRevenueMultiple  *float64 `json:"price_revenue_multiple" db:"price_revenue_multiple"`
	PriceSDEMultiple      *float64 `json:"price_sde_multiple" db:"price_sde_multiple"`
	PriceCashFlowMultiple *float64 `json:"price_cash_flow_multiple" db:"price_cash_flow_multiple"`

	City   string `json:"city" db:"city"`
	State  string `json:"state" db:"state"`
	Zip    string `json:"zip" db:"zip"`
	County string `json:"county" db:"county"`
	Metro  string `json:"metro" db:"metro"`

	Industry    string `json:"industry" db:"industry"`
	Category    string `json:"category" db:"category"`
	Subcategory string `json:"subcategory" db:"subcategory"`
	Trade       string `json:"trade" db:"trade"` // detected primary trade (hvac, plumbing, etc.)

	BrokerName    string `json:"broker_name" db:"broker_name"`
	BrokerCompany string `json:"broker_company" db:"broker_company"`
	BrokerPhone   string `json:"broker_phone" db:"broker_phone"`

	Employees       *int  `json:"employees" db:"employees"`
	EstablishedYear *int  `json:"established_year" db:"established_year"`
	SellerFinancing *bool `json:"seller_financing" db:"seller_financing"`

	InferredEBITDA      *float64 `json:"inferred_ebitda" db:"inferred_ebitda"`
	InferredSDE         *float64 `json:"inferred_sde" db:"inferred_sde"`
	InferenceMethod     string   `json:"inference_method" db:"inference_method"`
	InferenceConfidence *float32 `json:"inference_confidence" db:"inference_confidence"`
	InferenceAttempts   int      `json:"inference_attempts" db:"inference_attempts"`

	FitScore *int   `json:"fit_score" db:"fit_score"`
	FitTier  string `json:"fit_tier" db:"fit_tier"` // A, B, C, D

	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ListingSource is one scraped observation stream for a Listing: one row per
// (platform, canonical source URL), keyed by URL. Holds the verbatim last payload.
// Never merged across URLs.
type ListingSource struct {
	ID             int64           `json:"id" db:"id"`
	ListingID      uuid.UUID       `json:"listing_id" db:"listing_id"`
	Platform       string          `json:"platform" db:"platform"`
	SourceURL      string          `json:"source_url" db:"source_url"`
	RawPayload     json.RawMessage `json:"raw_payload" db:"raw_payload"`
	Alive          bool            `json:"alive" db:"alive"`
	LastCheckedAt  *time.Time      `json:"last_checked_at" db:"last_checked_at"`
	ArchivedAt     *time.Time      `json:"archived_at" db:"archived_at"`
	FirstScrapedAt time.Time       `json:"first_scraped_at" db:"first_scraped_at"`
	LastScrapedAt  time.Time       `json:"last_scraped_at" db:"last_scraped_at"`
}

// RawListing is a parsed observation from one source (detail page or alert email)
// before reconciliation. Nil pointer / empty string means the source did not state it.
type RawListing struct {
	Title        string `json:"title"`
	BusinessName string `json:"business_name"`
	Description  string `json:"description"`

	AskingPrice *float64 `json:"asking_price"`
	Revenue     *float64 `json:"revenue"`
	EBITDA      *float64 `json:"ebitda"`
	SDE         *float64 `json:"sde"`
	CashFlow    *float64 `json:"cash_flow"`

	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	County string `json:"county"`

	Industry    string `json:"industry"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`

	BrokerName    string `json:"broker_name"`
	BrokerCompany string `json:"broker_company"`
	BrokerPhone   string `json:"broker_phone"`

	Employees       *int  `json:"employees"`
	EstablishedYear *int  `json:"established_year"`
	SellerFinancing *bool `json:"seller_financing"`

	Platform  string          `json:"platform"`
	SourceURL string          `json:"source_url"`
	Data      json.RawMessage `json:"data"` // verbatim payload for audit
}

// Fit tiers
const (
	FitTierA = "A"
	FitTierB = "B"
	FitTierC = "C"
	FitTierD = "D"
)

// Inference methods
const (
	InferenceCashFlowProxy  = "cash_flow_proxy"
	InferenceIndustryMargin = "industry_margin"
)

// FillFromRaw applies raw onto l under the merge-only-null policy: a field is
// written only when l's value is currently null/empty and raw carries a value.
// Derived multiples are recomputed afterward. Returns true when any observation
// field changed. LastSeenAt is the caller's responsibility.
func (l *Listing) FillFromRaw(raw *RawListing) bool {
	changed := false
	fillStr(&l.Title, raw.Title, &changed)
	fillStr(&l.BusinessName, raw.BusinessName, &changed)
	fillStr(&l.Description, raw.Description, &changed)
	fillFloat(&l.AskingPrice, raw.AskingPrice, &changed)
	fillFloat(&l.Revenue, raw.Revenue, &changed)
	fillFloat(&l.EBITDA, raw.EBITDA, &changed)
	fillFloat(&l.SDE, raw.SDE, &changed)
	fillFloat(&l.CashFlow, raw.CashFlow, &changed)
	fillStr(&l.City, raw.City, &changed)
	fillStr(&l.State, raw.State, &changed)
	fillStr(&l.Zip, raw.Zip, &changed)
	fillStr(&l.County, raw.County, &changed)
	fillStr(&l.Industry, raw.Industry, &changed)
	fillStr(&l.Category, raw.Category, &changed)
	fillStr(&l.Subcategory, raw.Subcategory, &changed)
	fillStr(&l.BrokerName, raw.BrokerName, &changed)
	fillStr(&l.BrokerCompany, raw.BrokerCompany, &changed)
	fillStr(&l.BrokerPhone, raw.BrokerPhone, &changed)
	fillInt(&l.Employees, raw.Employees, &changed)
	fillInt(&l.EstablishedYear, raw.EstablishedYear, &changed)
	if l.SellerFinancing == nil && raw.SellerFinancing != nil {
		v := *raw.SellerFinancing
		l.SellerFinancing = &v
		changed = true
	}
	l.RecomputeMultiples()
	return changed
}

// RecomputeMultiples refreshes the derived price multiples from whatever inputs
// are currently populated. Multiples are metadata, not observations, so they are
// always recomputed rather than merge-filled.
func (l *Listing) RecomputeMultiples() {
	l.PriceRevenueMultiple = ratio(l.AskingPrice, l.Revenue)
	l.PriceSDEMultiple = ratio(l.AskingPrice, l.SDE)
	l.PriceCashFlowMultiple = ratio(l.AskingPrice, l.CashFlow)
}

// NeedsInference reports whether the financial-inference collaborator should run:
// only when EBITDA or SDE is still unknown.
func (l *Listing) NeedsInference() bool {
	return l.EBITDA == nil || l.SDE == nil
}

// InferenceAttempted reports whether the inference collaborator already ran for
// this listing, successfully or not. Re-observations of the same URL must not
// re-infer.
func (l *Listing) InferenceAttempted() bool {
	return l.InferredEBITDA != nil || l.InferredSDE != nil || l.InferenceAttempts > 0
}

func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den
	return &v
}

func fillStr(dst *string, src string, changed *bool) {
	if *dst == "" && src != "" {
		*dst = src
		*changed = true
	}
}

func fillFloat(dst **float64, src *float64, changed *bool) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*changed = true
	}
}

func fillInt(dst **int, src *int, changed *bool) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*changed = true
	}
}
