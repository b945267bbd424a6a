package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountConnected    AccountStatus = "connected"
	AccountDisconnected AccountStatus = "disconnected"
)

// Mailbox providers
const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
)

// EmailAccount is one connected mailbox. Tokens are stored encrypted; SyncCursor
// is opaque and provider-specific (Gmail history id, Graph delta link).
type EmailAccount struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Provider        string        `json:"provider" db:"provider"` // gmail, outlook
	Address         string        `json:"address" db:"address"`
	AccessTokenEnc  []byte        `json:"-" db:"access_token_enc"`
	RefreshTokenEnc []byte        `json:"-" db:"refresh_token_enc"`
	TokenExpiresAt  time.Time     `json:"token_expires_at" db:"token_expires_at"`
	SyncCursor      string        `json:"sync_cursor" db:"sync_cursor"`
	LastSyncAt      *time.Time    `json:"last_sync_at" db:"last_sync_at"`
	Status          AccountStatus `json:"status" db:"status"`
	LastError       string        `json:"last_error" db:"last_error"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Email is the canonical message row, unique per (account, provider message id).
// MessageHash is the cross-account identity (see identity.MessageHash); a message
// already stored under a different account with the same hash is not duplicated.
type Email struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	AccountID      uuid.UUID  `json:"account_id" db:"account_id"`
	Provider       string     `json:"provider" db:"provider"`
	ExternalID     string     `json:"external_id" db:"external_id"`
	MessageHash    string     `json:"message_hash" db:"message_hash"`
	FromName       string     `json:"from_name" db:"from_name"`
	FromAddress    string     `json:"from_address" db:"from_address"`
	ToAddresses    []string   `json:"to_addresses" db:"to_addresses"`
	Subject        string     `json:"subject" db:"subject"`
	Preview        string     `json:"preview" db:"preview"`
	Body           string     `json:"body" db:"body"` // empty until backfilled
	Category       string     `json:"category" db:"category"`
	IsListingAlert bool       `json:"is_listing_alert" db:"is_listing_alert"`
	SentAt         time.Time  `json:"sent_at" db:"sent_at"`
	ReceivedAt     time.Time  `json:"received_at" db:"received_at"`
	BodyFetchedAt  *time.Time `json:"body_fetched_at" db:"body_fetched_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// RawMessage is a provider-normalized message as returned by the bulk endpoints.
// Body is usually empty there; the backfill pass fills it for flagged messages.
type RawMessage struct {
	ExternalID  string    `json:"external_id"`
	FromName    string    `json:"from_name"`
	FromAddress string    `json:"from_address"`
	To          []string  `json:"to"`
	Subject     string    `json:"subject"`
	Preview     string    `json:"preview"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Deal-pipeline categories assigned before upsert
const (
	CategoryListingAlert   = "listing_alert"
	CategoryBrokerOutreach = "broker_outreach"
	CategoryDealUpdate     = "deal_update"
	CategoryDiligence      = "diligence"
	CategoryNewsletter     = "newsletter"
	CategoryOther          = "other"
)
