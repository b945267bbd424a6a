package mailsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dealscout/identity"
	"dealscout/metrics"
	"dealscout/models"
	"dealscout/services"
)

type syncStore interface {
	GetEmailAccount(ctx context.Context, id uuid.UUID) (*models.EmailAccount, error)
	ListConnectedAccounts(ctx context.Context) ([]models.EmailAccount, error)
	UpsertEmail(ctx context.Context, e *models.Email) error
	EmailHashOwnedElsewhere(ctx context.Context, hash string, accountID uuid.UUID) (bool, error)
	UpdateAccountSyncState(ctx context.Context, id uuid.UUID, cursor string, lastSyncAt time.Time) error
	UpdateEmailBody(ctx context.Context, id uuid.UUID, body string, fetchedAt time.Time) error
}

type tokenSource interface {
	AccessToken(ctx context.Context, account *models.EmailAccount) (string, error)
}

// listingFeed is where alert listings end up; in production it is the
// services.Reconciler.
type listingFeed interface {
	ProcessListing(ctx context.Context, raw *models.RawListing) (*services.ProcessResult, error)
}

type EngineConfig struct {
	InitialBatch int // first-sync message budget
	BodyTimeout  time.Duration
	AlertDomains map[string]bool   // sender domains that mean listing alert
	ListingHosts map[string]string // marketplace host suffix -> platform id
}

// SyncResult is returned even on partial failure so callers see what landed.
type SyncResult struct {
	Synced int
	Errors []string
}

// Engine syncs connected mailboxes. Syncs for one account are serialized by a
// per-account mutex; distinct accounts run concurrently through SyncAll.
type Engine struct {
	store     syncStore
	tokens    tokenSource
	providers map[string]Provider
	feed      listingFeed // optional
	guard     *DedupGuard // optional
	cfg       EngineConfig

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
	nowFn func() time.Time
}

func NewEngine(store syncStore, tokens tokenSource, providers map[string]Provider, feed listingFeed, guard *DedupGuard, cfg EngineConfig) *Engine {
	switch {
	case cfg.InitialBatch <= 0:
		cfg.InitialBatch = 200
	case cfg.InitialBatch < 100:
		cfg.InitialBatch = 100
	case cfg.InitialBatch > 500:
		cfg.InitialBatch = 500
	}
	if cfg.BodyTimeout <= 0 {
		cfg.BodyTimeout = 20 * time.Second
	}
	return &Engine{
		store:     store,
		tokens:    tokens,
		providers: providers,
		feed:      feed,
		guard:     guard,
		cfg:       cfg,
		locks:     make(map[uuid.UUID]*sync.Mutex),
		nowFn:     time.Now,
	}
}

// SyncAll syncs every connected account concurrently. Account failures are
// logged and absorbed.
func (e *Engine) SyncAll(ctx context.Context) error {
	accounts, err := e.store.ListConnectedAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	var g errgroup.Group
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			if _, err := e.Sync(ctx, account.ID); err != nil {
				log.Printf("Error syncing %s (%s): %v", account.Address, account.Provider, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Sync pulls one mailbox up to date: full pull + cursor seed on first contact,
// change feed afterwards, transparent full resync when the cursor expired.
func (e *Engine) Sync(ctx context.Context, accountID uuid.UUID) (*SyncResult, error) {
	mu := e.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := e.store.GetEmailAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	if account.Status != models.AccountConnected {
		return nil, fmt.Errorf("account %s is %s", account.Address, account.Status)
	}
	provider, ok := e.providers[account.Provider]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %s", account.Provider)
	}
	token, err := e.tokens.AccessToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("access token for %s: %w", account.Address, err)
	}

	res := &SyncResult{}
	var backfill []backfillItem

	if account.SyncCursor == "" {
		err = e.fullSync(ctx, provider, token, account, res, &backfill)
	} else {
		err = e.incrementalSync(ctx, provider, token, account, res, &backfill)
		if errors.Is(err, ErrCursorExpired) {
			log.Printf("Warning: sync cursor expired for %s, resyncing from scratch", account.Address)
			account.SyncCursor = ""
			err = e.fullSync(ctx, provider, token, account, res, &backfill)
		}
	}
	if err != nil {
		return res, err
	}

	e.backfillBodies(ctx, provider, token, backfill, res)

	metrics.EmailsSynced.WithLabelValues(account.Provider).Add(float64(res.Synced))
	return res, nil
}

type backfillItem struct {
	emailID    uuid.UUID
	externalID string
	body       string // already delivered by the feed, skip the fetch
}

// fullSync pulls a bounded newest-first batch, then seeds the change cursor.
func (e *Engine) fullSync(ctx context.Context, provider Provider, token string, account *models.EmailAccount, res *SyncResult, backfill *[]backfillItem) error {
	msgs, err := provider.ListRecent(ctx, token, e.cfg.InitialBatch)
	if err != nil {
		return fmt.Errorf("list recent: %w", err)
	}
	for i := range msgs {
		e.applyMessage(ctx, account, &msgs[i], res, backfill)
	}

	// Seed the change cursor. Messages surfaced while seeding are upserted
	// again; the emails table dedupes on (account, external id).
	cursor := ""
	for {
		page, err := provider.Changes(ctx, token, cursor)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("cursor seed: %v", err))
			log.Printf("Warning: cursor seed failed for %s: %v", account.Address, err)
			break
		}
		for i := range page.Added {
			e.applyMessage(ctx, account, &page.Added[i], res, backfill)
		}
		if page.Cursor != "" {
			cursor = page.Cursor
		}
		if !page.More {
			break
		}
	}

	// Sync state persists even when seeding failed: lastSyncAt records the
	// attempt, and the empty cursor keeps the next sync on the full path.
	now := e.nowFn()
	if err := e.store.UpdateAccountSyncState(ctx, account.ID, cursor, now); err != nil {
		return fmt.Errorf("persist sync state: %w", err)
	}
	account.SyncCursor = cursor
	account.LastSyncAt = &now
	return nil
}

// incrementalSync pages the provider change feed from the stored cursor.
func (e *Engine) incrementalSync(ctx context.Context, provider Provider, token string, account *models.EmailAccount, res *SyncResult, backfill *[]backfillItem) error {
	cursor := account.SyncCursor
	for {
		page, err := provider.Changes(ctx, token, cursor)
		if err != nil {
			if errors.Is(err, ErrCursorExpired) {
				return err
			}
			// Keep what was applied; the persisted cursor resumes from the
			// last good page.
			if perr := e.store.UpdateAccountSyncState(ctx, account.ID, cursor, e.nowFn()); perr != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("persist sync state: %v", perr))
			}
			return fmt.Errorf("change feed: %w", err)
		}
		for i := range page.Added {
			e.applyMessage(ctx, account, &page.Added[i], res, backfill)
		}
		// Removals are deliberately not applied; the emails table is an archive.
		if page.Cursor != "" {
			cursor = page.Cursor
		}
		if !page.More {
			break
		}
	}

	now := e.nowFn()
	if err := e.store.UpdateAccountSyncState(ctx, account.ID, cursor, now); err != nil {
		return fmt.Errorf("persist sync state: %w", err)
	}
	account.SyncCursor = cursor
	account.LastSyncAt = &now
	return nil
}

// applyMessage categorizes, dedupes and upserts one message. Failures are
// recorded, never fatal to the sync.
func (e *Engine) applyMessage(ctx context.Context, account *models.EmailAccount, raw *models.RawMessage, res *SyncResult, backfill *[]backfillItem) {
	email, stored, err := e.upsertMessage(ctx, account, raw)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", raw.ExternalID, err))
		log.Printf("Warning: failed to store message %s for %s: %v", raw.ExternalID, account.Address, err)
		return
	}
	if !stored {
		return
	}
	res.Synced++
	if email.IsListingAlert {
		*backfill = append(*backfill, backfillItem{emailID: email.ID, externalID: email.ExternalID, body: raw.Body})
	}
}

func (e *Engine) upsertMessage(ctx context.Context, account *models.EmailAccount, raw *models.RawMessage) (*models.Email, bool, error) {
	category := Categorize(raw, e.cfg.AlertDomains)
	hash := identity.MessageHash(raw.FromAddress, raw.Subject, raw.SentAt)

	if e.guard != nil {
		owned, err := e.guard.OwnedElsewhere(ctx, hash, account.ID)
		if err != nil {
			// Redis being down must not stop mail sync; the store check
			// below is authoritative anyway.
			log.Printf("Warning: dedup guard unavailable: %v", err)
		} else if owned {
			metrics.DedupSkips.Inc()
			return nil, false, nil
		}
	}

	owned, err := e.store.EmailHashOwnedElsewhere(ctx, hash, account.ID)
	if err != nil {
		return nil, false, fmt.Errorf("dedup check: %w", err)
	}
	if owned {
		metrics.DedupSkips.Inc()
		return nil, false, nil
	}

	now := e.nowFn()
	email := &models.Email{
		ID:             uuid.New(),
		AccountID:      account.ID,
		Provider:       account.Provider,
		ExternalID:     raw.ExternalID,
		MessageHash:    hash,
		FromName:       raw.FromName,
		FromAddress:    raw.FromAddress,
		ToAddresses:    raw.To,
		Subject:        raw.Subject,
		Preview:        raw.Preview,
		Body:           raw.Body,
		Category:       category,
		IsListingAlert: category == models.CategoryListingAlert,
		SentAt:         raw.SentAt,
		ReceivedAt:     raw.ReceivedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.UpsertEmail(ctx, email); err != nil {
		return nil, false, fmt.Errorf("upsert email: %w", err)
	}
	return email, true, nil
}

// backfillBodies fetches bodies for flagged alert messages and feeds their
// listing links to the reconciler. Every failure here is non-fatal.
func (e *Engine) backfillBodies(ctx context.Context, provider Provider, token string, items []backfillItem, res *SyncResult) {
	for _, item := range items {
		body := item.body
		if body == "" {
			bctx, cancel := context.WithTimeout(ctx, e.cfg.BodyTimeout)
			fetched, err := provider.FetchBody(bctx, token, item.externalID)
			cancel()
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("body %s: %v", item.externalID, err))
				log.Printf("Warning: body backfill failed for %s: %v", item.externalID, err)
				continue
			}
			if fetched == "" {
				continue
			}
			body = fetched
			if err := e.store.UpdateEmailBody(ctx, item.emailID, body, e.nowFn()); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("body %s: %v", item.externalID, err))
				continue
			}
		}
		e.feedListings(ctx, body, res)
	}
}

func (e *Engine) feedListings(ctx context.Context, body string, res *SyncResult) {
	if e.feed == nil {
		return
	}
	for _, raw := range ExtractListings(body, e.cfg.ListingHosts) {
		if _, err := e.feed.ProcessListing(ctx, &raw); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("listing %s: %v", raw.SourceURL, err))
			log.Printf("Warning: alert listing %s not reconciled: %v", raw.SourceURL, err)
		}
	}
}

func (e *Engine) accountLock(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}
