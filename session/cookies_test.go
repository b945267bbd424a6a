package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"dealscout/models"
	"dealscout/secrets"
)

type fakeCookieRows struct {
	row         *models.PlatformCookie
	saved       *models.PlatformCookie
	invalidated string
	touched     bool
}

func (f *fakeCookieRows) GetPlatformCookie(ctx context.Context, platform string) (*models.PlatformCookie, error) {
	return f.row, nil
}

func (f *fakeCookieRows) UpsertPlatformCookie(ctx context.Context, pc *models.PlatformCookie) error {
	f.saved = pc
	return nil
}

func (f *fakeCookieRows) InvalidatePlatformCookie(ctx context.Context, platform, reason string) error {
	f.invalidated = reason
	if f.row != nil {
		f.row.IsValid = false
		f.row.InvalidReason = reason
	}
	return nil
}

func (f *fakeCookieRows) TouchPlatformCookie(ctx context.Context, platform string, usedAt time.Time) error {
	f.touched = true
	return nil
}

func testBox(t *testing.T) *secrets.Box {
	t.Helper()
	box, err := secrets.NewBox(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	return box
}

func TestCookieStore_SaveThenLoad(t *testing.T) {
	store := &fakeCookieRows{}
	cs := NewCookieStore(store, testBox(t))

	in := []models.Cookie{
		{Name: "sid", Value: "abc123", Domain: ".bizbuysell.com", Path: "/"},
		{Name: "pref", Value: "x", Domain: ".bizbuysell.com", Path: "/"},
	}
	if err := cs.Save(context.Background(), "bizbuysell", in); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if store.saved == nil {
		t.Fatalf("expected upsert")
	}
	if !store.saved.IsValid {
		t.Fatalf("save must reset validity")
	}

	store.row = store.saved
	out, err := cs.Load(context.Background(), "bizbuysell")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(out) != 2 || out[0].Name != "sid" || out[0].Value != "abc123" {
		t.Fatalf("unexpected cookies back: %+v", out)
	}
	if !store.touched {
		t.Fatalf("expected last_used_at touch on load")
	}
}

func TestCookieStore_ExpiredRowInvalidatesAndReadsAbsent(t *testing.T) {
	box := testBox(t)
	sealed, _ := box.Seal([]byte(`[{"name":"sid","value":"x"}]`))
	expired := time.Now().Add(-time.Hour)
	store := &fakeCookieRows{row: &models.PlatformCookie{
		Platform:   "bizbuysell",
		CookiesEnc: sealed,
		IsValid:    true,
		ExpiresAt:  &expired,
	}}
	cs := NewCookieStore(store, box)

	out, err := cs.Load(context.Background(), "bizbuysell")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil cookies for expired row, got %+v", out)
	}
	if store.invalidated != ReasonExpired {
		t.Fatalf("expected invalidation reason %q, got %q", ReasonExpired, store.invalidated)
	}
}

func TestCookieStore_UndecryptableRowInvalidatesAndReadsAbsent(t *testing.T) {
	store := &fakeCookieRows{row: &models.PlatformCookie{
		Platform:   "bizbuysell",
		CookiesEnc: []byte("not a sealed blob"),
		IsValid:    true,
	}}
	cs := NewCookieStore(store, testBox(t))

	out, err := cs.Load(context.Background(), "bizbuysell")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil cookies for undecryptable row, got %+v", out)
	}
	if store.invalidated != ReasonDecryptFailed {
		t.Fatalf("expected invalidation reason %q, got %q", ReasonDecryptFailed, store.invalidated)
	}
}

func TestCookieStore_InvalidRowReadsAbsent(t *testing.T) {
	store := &fakeCookieRows{row: &models.PlatformCookie{
		Platform:      "bizbuysell",
		CookiesEnc:    []byte("irrelevant"),
		IsValid:       false,
		InvalidReason: ReasonLoginRedirect,
	}}
	cs := NewCookieStore(store, testBox(t))

	out, err := cs.Load(context.Background(), "bizbuysell")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil cookies for invalid row, got %+v", out)
	}
	if store.invalidated != "" {
		t.Fatalf("invalid row should not be re-invalidated, got %q", store.invalidated)
	}
}

func TestCookieStore_SaveRecordsEarliestExpiry(t *testing.T) {
	store := &fakeCookieRows{}
	cs := NewCookieStore(store, testBox(t))

	later := time.Now().Add(48 * time.Hour)
	sooner := time.Now().Add(2 * time.Hour)
	in := []models.Cookie{
		{Name: "a", Value: "1", Expires: &later},
		{Name: "b", Value: "2", Expires: &sooner},
		{Name: "session", Value: "3"},
	}
	if err := cs.Save(context.Background(), "bizquest", in); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if store.saved.ExpiresAt == nil {
		t.Fatalf("expected hard expiry recorded")
	}
	if !store.saved.ExpiresAt.Equal(sooner) {
		t.Fatalf("expected earliest expiry %v, got %v", sooner, *store.saved.ExpiresAt)
	}
}
