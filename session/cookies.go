package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"dealscout/models"
	"dealscout/secrets"
)

// Invalidation reasons recorded on the cookie row.
const (
	ReasonExpired       = "expired"
	ReasonDecryptFailed = "decrypt_failed"
	ReasonLoginRedirect = "login_redirect"
)

type cookieStore interface {
	GetPlatformCookie(ctx context.Context, platform string) (*models.PlatformCookie, error)
	UpsertPlatformCookie(ctx context.Context, pc *models.PlatformCookie) error
	InvalidatePlatformCookie(ctx context.Context, platform, reason string) error
	TouchPlatformCookie(ctx context.Context, platform string, usedAt time.Time) error
}

// CookieStore hands out decrypted session cookies per platform. A record that
// is invalid, expired, or undecryptable reads as absent (expired and
// undecryptable rows are invalidated on the way out), so callers fall back to
// an anonymous fetch instead of failing.
type CookieStore struct {
	store cookieStore
	box   *secrets.Box

	nowFn func() time.Time
}

func NewCookieStore(store cookieStore, box *secrets.Box) *CookieStore {
	return &CookieStore{
		store: store,
		box:   box,
		nowFn: time.Now,
	}
}

// Load returns the platform's cookies, or nil when none are usable.
func (c *CookieStore) Load(ctx context.Context, platform string) ([]models.Cookie, error) {
	pc, err := c.store.GetPlatformCookie(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("load cookies for %s: %w", platform, err)
	}
	if pc == nil || !pc.IsValid {
		return nil, nil
	}

	if pc.ExpiresAt != nil && !pc.ExpiresAt.After(c.nowFn()) {
		if err := c.store.InvalidatePlatformCookie(ctx, platform, ReasonExpired); err != nil {
			return nil, fmt.Errorf("invalidate expired cookies for %s: %w", platform, err)
		}
		return nil, nil
	}

	plain, err := c.box.Open(pc.CookiesEnc)
	if err != nil {
		if err := c.store.InvalidatePlatformCookie(ctx, platform, ReasonDecryptFailed); err != nil {
			return nil, fmt.Errorf("invalidate undecryptable cookies for %s: %w", platform, err)
		}
		return nil, nil
	}

	var cookies []models.Cookie
	if err := json.Unmarshal(plain, &cookies); err != nil {
		if err := c.store.InvalidatePlatformCookie(ctx, platform, ReasonDecryptFailed); err != nil {
			return nil, fmt.Errorf("invalidate unparseable cookies for %s: %w", platform, err)
		}
		return nil, nil
	}

	if err := c.store.TouchPlatformCookie(ctx, platform, c.nowFn()); err != nil {
		log.Printf("Warning: failed to touch cookies for %s: %v", platform, err)
	}
	return cookies, nil
}

// Save encrypts and upserts the platform's cookies, resetting validity. The
// row's hard expiry is the earliest expiry among the cookies that carry one.
func (c *CookieStore) Save(ctx context.Context, platform string, cookies []models.Cookie) error {
	plain, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies for %s: %w", platform, err)
	}
	sealed, err := c.box.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal cookies for %s: %w", platform, err)
	}

	now := c.nowFn()
	pc := &models.PlatformCookie{
		Platform:   platform,
		CookiesEnc: sealed,
		CapturedAt: now,
		ExpiresAt:  earliestExpiry(cookies),
		IsValid:    true,
	}
	if err := c.store.UpsertPlatformCookie(ctx, pc); err != nil {
		return fmt.Errorf("save cookies for %s: %w", platform, err)
	}
	return nil
}

// Invalidate marks the platform's cookies unusable. The fetch layer calls this
// when a request lands on a login page.
func (c *CookieStore) Invalidate(ctx context.Context, platform, reason string) error {
	if err := c.store.InvalidatePlatformCookie(ctx, platform, reason); err != nil {
		return fmt.Errorf("invalidate cookies for %s: %w", platform, err)
	}
	return nil
}

func earliestExpiry(cookies []models.Cookie) *time.Time {
	var earliest *time.Time
	for _, ck := range cookies {
		if ck.Expires == nil {
			continue
		}
		if earliest == nil || ck.Expires.Before(*earliest) {
			t := *ck.Expires
			earliest = &t
		}
	}
	return earliest
}
