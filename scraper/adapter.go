package scraper

import (
	"fmt"

	"dealscout/config"
	"dealscout/models"
)

// SearchFilters narrow a scrape run. Zero values mean "no constraint".
type SearchFilters struct {
	Region      string `json:"region,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	MinPrice    int    `json:"min_price,omitempty"`
	MaxPrice    int    `json:"max_price,omitempty"`
	MinCashFlow int    `json:"min_cash_flow,omitempty"`
}

// SearchResult is one card on a search results page: the detail URL plus
// whatever preview fields the card exposes.
type SearchResult struct {
	URL     string
	Preview models.RawListing
}

// Adapter is the per-marketplace scraping contract. Implementations are pure
// URL builders and parsers; fetching, retry, and pacing live in the runner.
type Adapter interface {
	Platform() string
	BuildSearchURL(filters SearchFilters) string
	ParseSearchResults(html []byte) ([]SearchResult, error)
	ParseDetailPage(html []byte, pageURL string) (*models.RawListing, error)
	// NextPageURL returns the absolute URL of the next results page, or ""
	// when this is the last one.
	NextPageURL(html []byte) string
}

// AdapterConstructor builds an adapter from its platform config.
type AdapterConstructor func(cfg *config.PlatformConfig) Adapter

// Registry maps platform id to adapter constructor. The set of platforms is
// closed: constructors register here at process start and nothing else
// dispatches on platform identity.
type Registry struct {
	constructors map[string]AdapterConstructor
}

// NewRegistry returns a registry with every built-in platform registered.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]AdapterConstructor)}
	r.Register(PlatformBizBuySell, func(cfg *config.PlatformConfig) Adapter { return NewBizBuySell(cfg) })
	r.Register(PlatformBizQuest, func(cfg *config.PlatformConfig) Adapter { return NewBizQuest(cfg) })
	return r
}

func (r *Registry) Register(platform string, ctor AdapterConstructor) {
	r.constructors[platform] = ctor
}

// New constructs the adapter for the platform named in cfg.
func (r *Registry) New(cfg *config.PlatformConfig) (Adapter, error) {
	ctor, ok := r.constructors[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", cfg.ID)
	}
	return ctor(cfg), nil
}

// Platforms lists the registered platform ids.
func (r *Registry) Platforms() []string {
	var ids []string
	for id := range r.constructors {
		ids = append(ids, id)
	}
	return ids
}
