package models

import "time"

// PlatformCookie is the encrypted session artifact for one scraping platform.
// ExpiresAt is the earliest expiry among the stored cookies (nil when none carry
// one). Invalidated on decrypt failure, expiry, or a detected login redirect.
type PlatformCookie struct {
	Platform      string     `json:"platform" db:"platform"`
	CookiesEnc    []byte     `json:"-" db:"cookies_enc"`
	CapturedAt    time.Time  `json:"captured_at" db:"captured_at"`
	ExpiresAt     *time.Time `json:"expires_at" db:"expires_at"`
	IsValid       bool       `json:"is_valid" db:"is_valid"`
	InvalidReason string     `json:"invalid_reason" db:"invalid_reason"`
	LastUsedAt    *time.Time `json:"last_used_at" db:"last_used_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Cookie is one decrypted browser cookie as stored inside PlatformCookie.
type Cookie struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain"`
	Path     string     `json:"path"`
	Expires  *time.Time `json:"expires,omitempty"`
	Secure   bool       `json:"secure"`
	HTTPOnly bool       `json:"http_only"`
}
