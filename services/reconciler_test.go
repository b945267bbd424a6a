package services

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"dealscout/models"
)

// fakeListingStore mirrors the canonical store's contract: reads return fresh
// copies, UpdateListing leaves the trade/fit/inference columns alone.
type fakeListingStore struct {
	sources  map[string]*models.ListingSource
	listings map[uuid.UUID]*models.Listing
	nextID   int64
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{
		sources:  make(map[string]*models.ListingSource),
		listings: make(map[uuid.UUID]*models.Listing),
	}
}

func (f *fakeListingStore) GetListingSourceByURL(_ context.Context, sourceURL string) (*models.ListingSource, error) {
	src, ok := f.sources[sourceURL]
	if !ok {
		return nil, nil
	}
	cp := *src
	return &cp, nil
}

func (f *fakeListingStore) UpsertListingSource(_ context.Context, src *models.ListingSource) error {
	if existing, ok := f.sources[src.SourceURL]; ok {
		src.ID = existing.ID
	} else {
		f.nextID++
		src.ID = f.nextID
	}
	cp := *src
	f.sources[src.SourceURL] = &cp
	return nil
}

func (f *fakeListingStore) CreateListing(_ context.Context, l *models.Listing) error {
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingStore) GetListingByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListingStore) UpdateListing(_ context.Context, l *models.Listing) error {
	cur, ok := f.listings[l.ID]
	if !ok {
		return fmt.Errorf("listing %s not found", l.ID)
	}
	merged := *l
	merged.Trade = cur.Trade
	merged.FitScore = cur.FitScore
	merged.FitTier = cur.FitTier
	merged.InferredEBITDA = cur.InferredEBITDA
	merged.InferredSDE = cur.InferredSDE
	merged.InferenceMethod = cur.InferenceMethod
	merged.InferenceConfidence = cur.InferenceConfidence
	merged.InferenceAttempts = cur.InferenceAttempts
	f.listings[l.ID] = &merged
	return nil
}

func (f *fakeListingStore) UpdateListingInference(_ context.Context, id uuid.UUID, ebitda, sde *float64, method string, confidence *float32, attempts int) error {
	l, ok := f.listings[id]
	if !ok {
		return fmt.Errorf("listing %s not found", id)
	}
	l.InferredEBITDA = ebitda
	l.InferredSDE = sde
	l.InferenceMethod = method
	l.InferenceConfidence = confidence
	l.InferenceAttempts = attempts
	return nil
}

func (f *fakeListingStore) BumpInferenceAttempts(_ context.Context, id uuid.UUID) error {
	l, ok := f.listings[id]
	if !ok {
		return fmt.Errorf("listing %s not found", id)
	}
	l.InferenceAttempts++
	return nil
}

func (f *fakeListingStore) UpdateListingTradeFit(_ context.Context, id uuid.UUID, trade string, fitScore *int, fitTier string) error {
	l, ok := f.listings[id]
	if !ok {
		return fmt.Errorf("listing %s not found", id)
	}
	l.Trade = trade
	l.FitScore = fitScore
	l.FitTier = fitTier
	return nil
}

type countingInferrer struct {
	calls int
	inner FinancialInferrer
}

func (c *countingInferrer) InferFinancials(l *models.Listing) *InferredFinancials {
	c.calls++
	if c.inner == nil {
		return nil
	}
	return c.inner.InferFinancials(l)
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func fullRaw() *models.RawListing {
	yes := true
	return &models.RawListing{
		Title:           "Commercial HVAC Service Company",
		BusinessName:    "Desert Air Mechanical LLC",
		Description:     "Established commercial HVAC contractor with recurring maintenance contracts.",
		AskingPrice:     f64(1250000),
		Revenue:         f64(2100000),
		EBITDA:          f64(310000),
		SDE:             f64(385000),
		CashFlow:        f64(385000),
		City:            "Phoenix",
		State:           "AZ",
		Zip:             "85004",
		County:          "Maricopa",
		Industry:        "Service Businesses",
		Category:        "HVAC Businesses",
		BrokerName:      "Dan Whitfield",
		BrokerCompany:   "Sunbelt Business Brokers of Phoenix",
		Employees:       intp(12),
		EstablishedYear: intp(1998),
		SellerFinancing: &yes,
		Platform:        "bizbuysell",
		SourceURL:       "https://www.bizbuysell.com/business-opportunity/hvac/2214307",
	}
}

func sparseRaw() *models.RawListing {
	return &models.RawListing{
		Title:       "Profitable Plumbing Contractor",
		AskingPrice: f64(675000),
		Platform:    "bizbuysell",
		SourceURL:   "https://www.bizbuysell.com/business-opportunity/plumbing/2198852",
	}
}

func newTestReconciler(store *fakeListingStore, infer FinancialInferrer) *Reconciler {
	r := NewReconciler(store, infer)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	r.nowFn = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	return r
}

func TestProcessListing_NewURL(t *testing.T) {
	store := newFakeListingStore()
	infer := &countingInferrer{inner: NewMarginInferrer()}
	rec := newTestReconciler(store, infer)

	result, err := rec.ProcessListing(context.Background(), fullRaw())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !result.IsNewListing {
		t.Fatal("expected a new listing")
	}
	if result.SourceID == 0 {
		t.Fatal("source id not assigned")
	}

	l := store.listings[result.ListingID]
	if l == nil {
		t.Fatal("listing not persisted")
	}
	if l.Metro != "Phoenix-Mesa-Chandler, AZ" {
		t.Fatalf("metro = %q", l.Metro)
	}
	if l.Trade != TradeHVAC {
		t.Fatalf("trade = %q, want hvac", l.Trade)
	}
	if l.FitScore == nil || l.FitTier == "" {
		t.Fatalf("fit not persisted: score=%v tier=%q", l.FitScore, l.FitTier)
	}
	if l.PriceSDEMultiple == nil {
		t.Fatal("derived multiple not computed")
	}

	// Both EBITDA and SDE were disclosed, so inference must not run.
	if infer.calls != 0 {
		t.Fatalf("inference calls = %d, want 0", infer.calls)
	}
	if result.InferenceRan {
		t.Fatal("inference should not have run")
	}

	src := store.sources[fullRaw().SourceURL]
	if src == nil || src.ListingID != l.ID {
		t.Fatal("source row missing or not linked")
	}
	if len(src.RawPayload) == 0 {
		t.Fatal("raw payload not stored")
	}
}

func TestProcessListing_InferenceRunsExactlyOnce(t *testing.T) {
	store := newFakeListingStore()
	infer := &countingInferrer{inner: NewMarginInferrer()}
	rec := newTestReconciler(store, infer)

	raw := fullRaw()
	raw.Revenue = f64(2000000)
	raw.EBITDA = nil
	raw.SDE = nil
	raw.CashFlow = nil

	result, err := rec.ProcessListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !result.InferenceRan {
		t.Fatal("inference should have run")
	}
	if infer.calls != 1 {
		t.Fatalf("inference calls = %d, want 1", infer.calls)
	}

	l := store.listings[result.ListingID]
	if l.InferredSDE == nil || *l.InferredSDE != 320000 {
		t.Fatalf("inferred sde = %v, want hvac margin on revenue", l.InferredSDE)
	}
	if l.InferenceMethod != models.InferenceIndustryMargin {
		t.Fatalf("method = %q", l.InferenceMethod)
	}
	if l.InferenceAttempts != 1 {
		t.Fatalf("attempts = %d", l.InferenceAttempts)
	}

	// Re-observing the same URL must not trigger a second call.
	if _, err := rec.ProcessListing(context.Background(), raw); err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if infer.calls != 1 {
		t.Fatalf("inference calls after replay = %d, want 1", infer.calls)
	}
}

func TestProcessListing_CashFlowProxyPreferred(t *testing.T) {
	store := newFakeListingStore()
	rec := newTestReconciler(store, NewMarginInferrer())

	raw := fullRaw()
	raw.EBITDA = nil
	raw.SDE = nil

	result, err := rec.ProcessListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	l := store.listings[result.ListingID]
	if l.InferenceMethod != models.InferenceCashFlowProxy {
		t.Fatalf("method = %q, want cash flow proxy", l.InferenceMethod)
	}
	if l.InferredSDE == nil || *l.InferredSDE != 385000 {
		t.Fatalf("inferred sde = %v", l.InferredSDE)
	}
}

func TestProcessListing_ReplayIsIdempotent(t *testing.T) {
	store := newFakeListingStore()
	rec := newTestReconciler(store, nil)

	raw := fullRaw()
	first, err := rec.ProcessListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	before := *store.listings[first.ListingID]

	second, err := rec.ProcessListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if second.IsNewListing {
		t.Fatal("replay must not create a new listing")
	}
	if second.ListingID != first.ListingID {
		t.Fatal("replay hit a different listing")
	}
	if second.FieldsFilled {
		t.Fatal("replay must not change any field")
	}

	after := *store.listings[first.ListingID]
	if !after.LastSeenAt.After(before.LastSeenAt) {
		t.Fatal("last_seen_at not bumped")
	}
	before.LastSeenAt = after.LastSeenAt
	before.UpdatedAt = after.UpdatedAt
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("replay changed fields beyond last_seen_at:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestProcessListing_NeverDowngrades(t *testing.T) {
	store := newFakeListingStore()
	rec := newTestReconciler(store, nil)

	raw := sparseRaw()
	first, err := rec.ProcessListing(context.Background(), raw)
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}

	// Same URL, price now missing from the page.
	degraded := sparseRaw()
	degraded.AskingPrice = nil
	if _, err := rec.ProcessListing(context.Background(), degraded); err != nil {
		t.Fatalf("second process failed: %v", err)
	}

	l := store.listings[first.ListingID]
	if l.AskingPrice == nil || *l.AskingPrice != 675000 {
		t.Fatalf("asking price downgraded: %v", l.AskingPrice)
	}
}

func TestProcessListing_FillsGapsOnReObservation(t *testing.T) {
	store := newFakeListingStore()
	rec := newTestReconciler(store, nil)

	first := sparseRaw()
	res1, err := rec.ProcessListing(context.Background(), first)
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}

	richer := sparseRaw()
	richer.Revenue = f64(900000)
	richer.City = "Mesa"
	richer.State = "AZ"
	richer.BrokerName = "Jo Ramos"
	res2, err := rec.ProcessListing(context.Background(), richer)
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if !res2.FieldsFilled {
		t.Fatal("expected fields to fill")
	}

	l := store.listings[res1.ListingID]
	if l.Revenue == nil || *l.Revenue != 900000 {
		t.Fatalf("revenue = %v", l.Revenue)
	}
	if l.City != "Mesa" || l.BrokerName != "Jo Ramos" {
		t.Fatalf("gaps not filled: city=%q broker=%q", l.City, l.BrokerName)
	}
	if l.Metro != "Phoenix-Mesa-Chandler, AZ" {
		t.Fatalf("metro not resolved after city fill: %q", l.Metro)
	}
	if l.PriceRevenueMultiple == nil {
		t.Fatal("multiple not recomputed after revenue fill")
	}
}

func TestProcessListing_FillOrderCommutes(t *testing.T) {
	obs1 := func() *models.RawListing {
		r := sparseRaw()
		r.Revenue = f64(900000)
		r.City = "Mesa"
		r.State = "AZ"
		return r
	}
	obs2 := func() *models.RawListing {
		r := sparseRaw()
		r.CashFlow = f64(210000)
		r.BrokerName = "Jo Ramos"
		r.EstablishedYear = intp(2005)
		return r
	}

	run := func(first, second *models.RawListing) models.Listing {
		store := newFakeListingStore()
		rec := newTestReconciler(store, nil)
		res, err := rec.ProcessListing(context.Background(), first)
		if err != nil {
			t.Fatalf("process failed: %v", err)
		}
		if _, err := rec.ProcessListing(context.Background(), second); err != nil {
			t.Fatalf("process failed: %v", err)
		}
		return *store.listings[res.ListingID]
	}

	a := run(obs1(), obs2())
	b := run(obs2(), obs1())

	if *a.Revenue != *b.Revenue || *a.CashFlow != *b.CashFlow || *a.AskingPrice != *b.AskingPrice {
		t.Fatal("financials differ by observation order")
	}
	if a.City != b.City || a.BrokerName != b.BrokerName || *a.EstablishedYear != *b.EstablishedYear {
		t.Fatal("details differ by observation order")
	}
	if *a.PriceCashFlowMultiple != *b.PriceCashFlowMultiple {
		t.Fatal("derived multiples differ by observation order")
	}
}

func TestProcessListing_NoSourceURL(t *testing.T) {
	rec := newTestReconciler(newFakeListingStore(), nil)
	if _, err := rec.ProcessListing(context.Background(), &models.RawListing{Title: "x"}); err == nil {
		t.Fatal("expected error for missing source url")
	}
}

func TestProcessListing_URLVariantsConverge(t *testing.T) {
	store := newFakeListingStore()
	rec := newTestReconciler(store, nil)

	first, err := rec.ProcessListing(context.Background(), fullRaw())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// The alert-mail form of the same URL: tracking params, trailing slash.
	variant := sparseRaw()
	variant.Title = "Commercial HVAC Service Company"
	variant.AskingPrice = nil
	variant.SourceURL = "https://www.bizbuysell.com/business-opportunity/hvac/2214307/?utm_source=alert&utm_medium=email"

	second, err := rec.ProcessListing(context.Background(), variant)
	if err != nil {
		t.Fatalf("variant process failed: %v", err)
	}
	if second.IsNewListing {
		t.Fatal("url variant opened a second listing")
	}
	if second.ListingID != first.ListingID {
		t.Fatalf("variant landed on listing %s, want %s", second.ListingID, first.ListingID)
	}
	if len(store.sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(store.sources))
	}
}
