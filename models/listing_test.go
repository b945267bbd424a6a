package models

import (
	"reflect"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestFillFromRawOnlyFillsEmptyFields(t *testing.T) {
	l := &Listing{
		Title:       "HVAC Contractor",
		AskingPrice: f64(1200000),
	}
	raw := &RawListing{
		Title:       "HVAC Contractor - North Dallas",
		Description: "Established residential HVAC service company.",
		AskingPrice: f64(999000),
		Revenue:     f64(2400000),
	}

	changed := l.FillFromRaw(raw)
	if !changed {
		t.Fatalf("expected fill to report a change")
	}
	if l.Title != "HVAC Contractor" {
		t.Errorf("title overwritten: %q", l.Title)
	}
	if *l.AskingPrice != 1200000 {
		t.Errorf("asking price overwritten: %v", *l.AskingPrice)
	}
	if l.Description != "Established residential HVAC service company." {
		t.Errorf("description not filled: %q", l.Description)
	}
	if l.Revenue == nil || *l.Revenue != 2400000 {
		t.Errorf("revenue not filled: %v", l.Revenue)
	}
}

func TestFillFromRawIdempotent(t *testing.T) {
	raw := &RawListing{
		Title:       "Plumbing Services Co",
		AskingPrice: f64(650000),
		CashFlow:    f64(210000),
		City:        "Fort Worth",
		State:       "TX",
	}
	l := &Listing{}
	l.FillFromRaw(raw)
	snapshot := *l

	if changed := l.FillFromRaw(raw); changed {
		t.Fatalf("second application of the same observation reported changes")
	}
	if !reflect.DeepEqual(*l, snapshot) {
		t.Fatalf("second application mutated the record:\n before %+v\n after  %+v", snapshot, *l)
	}
}

func TestFillFromRawCommutesForDisjointObservations(t *testing.T) {
	o1 := &RawListing{Title: "Roofing Company", AskingPrice: f64(800000), City: "Plano"}
	o2 := &RawListing{Description: "Commercial roofing, 12 crews.", Revenue: f64(3100000), State: "TX"}

	a := &Listing{}
	a.FillFromRaw(o1)
	a.FillFromRaw(o2)

	b := &Listing{}
	b.FillFromRaw(o2)
	b.FillFromRaw(o1)

	if !reflect.DeepEqual(*a, *b) {
		t.Fatalf("order changed the result:\n o1,o2 %+v\n o2,o1 %+v", *a, *b)
	}
}

func TestRecomputeMultiples(t *testing.T) {
	l := &Listing{AskingPrice: f64(1000000), SDE: f64(250000)}
	l.RecomputeMultiples()
	if l.PriceSDEMultiple == nil || *l.PriceSDEMultiple != 4.0 {
		t.Errorf("price/SDE multiple = %v, want 4.0", l.PriceSDEMultiple)
	}
	if l.PriceRevenueMultiple != nil {
		t.Errorf("price/revenue multiple should be nil without revenue")
	}

	// A later fill of revenue must refresh the derived value.
	l.FillFromRaw(&RawListing{Revenue: f64(2000000)})
	if l.PriceRevenueMultiple == nil || *l.PriceRevenueMultiple != 0.5 {
		t.Errorf("price/revenue multiple = %v, want 0.5", l.PriceRevenueMultiple)
	}
}

func TestNeedsInference(t *testing.T) {
	l := &Listing{}
	if !l.NeedsInference() {
		t.Fatalf("empty listing should need inference")
	}
	l.EBITDA = f64(100000)
	if !l.NeedsInference() {
		t.Fatalf("missing SDE should still need inference")
	}
	l.SDE = f64(120000)
	if l.NeedsInference() {
		t.Fatalf("both fields set should not need inference")
	}
}
