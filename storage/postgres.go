package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealscout/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Listings
// =============================================================================

func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			id, title, business_name, description,
			asking_price, revenue, ebitda, sde, cash_flow,
			price_revenue_multiple, price_sde_multiple, price_cash_flow_multiple,
			city, state, zip, county, metro,
			industry, category, subcategory, trade,
			broker_name, broker_company, broker_phone,
			employees, established_year, seller_financing,
			inferred_ebitda, inferred_sde, inference_method, inference_confidence, inference_attempts,
			fit_score, fit_tier,
			first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34,
			$35, $36, $37, $38
		)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		l.ID, l.Title, l.BusinessName, l.Description,
		l.AskingPrice, l.Revenue, l.EBITDA, l.SDE, l.CashFlow,
		l.PriceRevenueMultiple, l.PriceSDEMultiple, l.PriceCashFlowMultiple,
		l.City, l.State, l.Zip, l.County, l.Metro,
		l.Industry, l.Category, l.Subcategory, l.Trade,
		l.BrokerName, l.BrokerCompany, l.BrokerPhone,
		l.Employees, l.EstablishedYear, l.SellerFinancing,
		l.InferredEBITDA, l.InferredSDE, l.InferenceMethod, l.InferenceConfidence, l.InferenceAttempts,
		l.FitScore, l.FitTier,
		l.FirstSeenAt, l.LastSeenAt, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
}

// UpdateListing writes a merged observation. The SET list re-applies the
// fill-if-empty policy in SQL so two concurrent writers to the same row
// converge: a populated column is never replaced, empty/NULL ones take the
// incoming value. Liveness and derived columns are always refreshed.
func (s *PostgresStore) UpdateListing(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings SET
			title = COALESCE(NULLIF(listings.title, ''), $2),
			business_name = COALESCE(NULLIF(listings.business_name, ''), $3),
			description = COALESCE(NULLIF(listings.description, ''), $4),
			asking_price = COALESCE(listings.asking_price, $5),
			revenue = COALESCE(listings.revenue, $6),
			ebitda = COALESCE(listings.ebitda, $7),
			sde = COALESCE(listings.sde, $8),
			cash_flow = COALESCE(listings.cash_flow, $9),
			price_revenue_multiple = $10,
			price_sde_multiple = $11,
			price_cash_flow_multiple = $12,
			city = COALESCE(NULLIF(listings.city, ''), $13),
			state = COALESCE(NULLIF(listings.state, ''), $14),
			zip = COALESCE(NULLIF(listings.zip, ''), $15),
			county = COALESCE(NULLIF(listings.county, ''), $16),
			metro = COALESCE(NULLIF(listings.metro, ''), $17),
			industry = COALESCE(NULLIF(listings.industry, ''), $18),
			category = COALESCE(NULLIF(listings.category, ''), $19),
			subcategory = COALESCE(NULLIF(listings.subcategory, ''), $20),
			broker_name = COALESCE(NULLIF(listings.broker_name, ''), $21),
			broker_company = COALESCE(NULLIF(listings.broker_company, ''), $22),
			broker_phone = COALESCE(NULLIF(listings.broker_phone, ''), $23),
			employees = COALESCE(listings.employees, $24),
			established_year = COALESCE(listings.established_year, $25),
			seller_financing = COALESCE(listings.seller_financing, $26),
			last_seen_at = $27,
			updated_at = NOW()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.Title, l.BusinessName, l.Description,
		l.AskingPrice, l.Revenue, l.EBITDA, l.SDE, l.CashFlow,
		l.PriceRevenueMultiple, l.PriceSDEMultiple, l.PriceCashFlowMultiple,
		l.City, l.State, l.Zip, l.County, l.Metro,
		l.Industry, l.Category, l.Subcategory,
		l.BrokerName, l.BrokerCompany, l.BrokerPhone,
		l.Employees, l.EstablishedYear, l.SellerFinancing,
		l.LastSeenAt,
	)
	return err
}

func (s *PostgresStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	query := `
		SELECT id, title, business_name, description,
			asking_price, revenue, ebitda, sde, cash_flow,
			price_revenue_multiple, price_sde_multiple, price_cash_flow_multiple,
			city, state, zip, county, metro,
			industry, category, subcategory, trade,
			broker_name, broker_company, broker_phone,
			employees, established_year, seller_financing,
			inferred_ebitda, inferred_sde, inference_method, inference_confidence, inference_attempts,
			fit_score, fit_tier,
			first_seen_at, last_seen_at, created_at, updated_at
		FROM listings WHERE id = $1`

	var l models.Listing
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.Title, &l.BusinessName, &l.Description,
		&l.AskingPrice, &l.Revenue, &l.EBITDA, &l.SDE, &l.CashFlow,
		&l.PriceRevenueMultiple, &l.PriceSDEMultiple, &l.PriceCashFlowMultiple,
		&l.City, &l.State, &l.Zip, &l.County, &l.Metro,
		&l.Industry, &l.Category, &l.Subcategory, &l.Trade,
		&l.BrokerName, &l.BrokerCompany, &l.BrokerPhone,
		&l.Employees, &l.EstablishedYear, &l.SellerFinancing,
		&l.InferredEBITDA, &l.InferredSDE, &l.InferenceMethod, &l.InferenceConfidence, &l.InferenceAttempts,
		&l.FitScore, &l.FitTier,
		&l.FirstSeenAt, &l.LastSeenAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) UpdateListingInference(ctx context.Context, id uuid.UUID, ebitda, sde *float64, method string, confidence *float32, attempts int) error {
	query := `
		UPDATE listings SET
			inferred_ebitda = $2, inferred_sde = $3, inference_method = $4,
			inference_confidence = $5, inference_attempts = $6, updated_at = NOW()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, ebitda, sde, method, confidence, attempts)
	return err
}

func (s *PostgresStore) UpdateListingTradeFit(ctx context.Context, id uuid.UUID, trade string, fitScore *int, fitTier string) error {
	query := `
		UPDATE listings SET trade = $2, fit_score = $3, fit_tier = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, trade, fitScore, fitTier)
	return err
}

// GetListingsNeedingInference feeds the backfill worker: observed EBITDA or SDE
// still missing, inference not yet produced, bounded attempts.
func (s *PostgresStore) GetListingsNeedingInference(ctx context.Context, maxAttempts, limit int) ([]models.Listing, error) {
	query := `
		SELECT id, title, business_name, description,
			asking_price, revenue, ebitda, sde, cash_flow,
			price_revenue_multiple, price_sde_multiple, price_cash_flow_multiple,
			city, state, zip, county, metro,
			industry, category, subcategory, trade,
			broker_name, broker_company, broker_phone,
			employees, established_year, seller_financing,
			inferred_ebitda, inferred_sde, inference_method, inference_confidence, inference_attempts,
			fit_score, fit_tier,
			first_seen_at, last_seen_at, created_at, updated_at
		FROM listings
		WHERE (ebitda IS NULL OR sde IS NULL)
			AND (inferred_ebitda IS NULL AND inferred_sde IS NULL)
			AND inference_attempts < $1
		ORDER BY updated_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.ID, &l.Title, &l.BusinessName, &l.Description,
			&l.AskingPrice, &l.Revenue, &l.EBITDA, &l.SDE, &l.CashFlow,
			&l.PriceRevenueMultiple, &l.PriceSDEMultiple, &l.PriceCashFlowMultiple,
			&l.City, &l.State, &l.Zip, &l.County, &l.Metro,
			&l.Industry, &l.Category, &l.Subcategory, &l.Trade,
			&l.BrokerName, &l.BrokerCompany, &l.BrokerPhone,
			&l.Employees, &l.EstablishedYear, &l.SellerFinancing,
			&l.InferredEBITDA, &l.InferredSDE, &l.InferenceMethod, &l.InferenceConfidence, &l.InferenceAttempts,
			&l.FitScore, &l.FitTier,
			&l.FirstSeenAt, &l.LastSeenAt, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) BumpInferenceAttempts(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE listings SET inference_attempts = inference_attempts + 1, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	return err
}

// =============================================================================
// Listing Sources
// =============================================================================

func (s *PostgresStore) GetListingSourceByURL(ctx context.Context, sourceURL string) (*models.ListingSource, error) {
	query := `
		SELECT id, listing_id, platform, source_url, raw_payload, alive,
			last_checked_at, archived_at, first_scraped_at, last_scraped_at
		FROM listing_sources WHERE source_url = $1`

	var src models.ListingSource
	err := s.pool.QueryRow(ctx, query, sourceURL).Scan(
		&src.ID, &src.ListingID, &src.Platform, &src.SourceURL, &src.RawPayload, &src.Alive,
		&src.LastCheckedAt, &src.ArchivedAt, &src.FirstScrapedAt, &src.LastScrapedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// UpsertListingSource keeps the verbatim last payload: the snapshot and scrape
// timestamp are always replaced, the listing link and first_scraped_at never.
func (s *PostgresStore) UpsertListingSource(ctx context.Context, src *models.ListingSource) error {
	query := `
		INSERT INTO listing_sources (
			listing_id, platform, source_url, raw_payload, alive,
			last_checked_at, archived_at, first_scraped_at, last_scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_url) DO UPDATE SET
			raw_payload = EXCLUDED.raw_payload,
			alive = TRUE,
			archived_at = NULL,
			last_scraped_at = EXCLUDED.last_scraped_at
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		src.ListingID, src.Platform, src.SourceURL, src.RawPayload, src.Alive,
		src.LastCheckedAt, src.ArchivedAt, src.FirstScrapedAt, src.LastScrapedAt,
	).Scan(&src.ID)
}

func (s *PostgresStore) GetUnarchivedSources(ctx context.Context, limit int) ([]models.ListingSource, error) {
	query := `
		SELECT id, listing_id, platform, source_url, raw_payload, alive,
			last_checked_at, archived_at, first_scraped_at, last_scraped_at
		FROM listing_sources
		WHERE archived_at IS NULL AND raw_payload IS NOT NULL
		ORDER BY last_scraped_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []models.ListingSource
	for rows.Next() {
		var src models.ListingSource
		if err := rows.Scan(
			&src.ID, &src.ListingID, &src.Platform, &src.SourceURL, &src.RawPayload, &src.Alive,
			&src.LastCheckedAt, &src.ArchivedAt, &src.FirstScrapedAt, &src.LastScrapedAt,
		); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *PostgresStore) MarkSourceArchived(ctx context.Context, id int64, archivedAt time.Time) error {
	query := `UPDATE listing_sources SET archived_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, archivedAt)
	return err
}

func (s *PostgresStore) GetStaleSources(ctx context.Context, staleAfter time.Duration, limit int) ([]models.ListingSource, error) {
	query := `
		SELECT id, listing_id, platform, source_url, raw_payload, alive,
			last_checked_at, archived_at, first_scraped_at, last_scraped_at
		FROM listing_sources
		WHERE alive
			AND last_scraped_at < $1
			AND (last_checked_at IS NULL OR last_checked_at < $1)
		ORDER BY last_scraped_at
		LIMIT $2`

	cutoff := time.Now().Add(-staleAfter)
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []models.ListingSource
	for rows.Next() {
		var src models.ListingSource
		if err := rows.Scan(
			&src.ID, &src.ListingID, &src.Platform, &src.SourceURL, &src.RawPayload, &src.Alive,
			&src.LastCheckedAt, &src.ArchivedAt, &src.FirstScrapedAt, &src.LastScrapedAt,
		); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *PostgresStore) UpdateSourceLiveness(ctx context.Context, id int64, alive bool, checkedAt time.Time) error {
	query := `UPDATE listing_sources SET alive = $2, last_checked_at = $3 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, alive, checkedAt)
	return err
}

// =============================================================================
// Email Accounts
// =============================================================================

func (s *PostgresStore) GetEmailAccount(ctx context.Context, id uuid.UUID) (*models.EmailAccount, error) {
	query := `
		SELECT id, provider, address, access_token_enc, refresh_token_enc, token_expires_at,
			sync_cursor, last_sync_at, status, last_error, created_at, updated_at
		FROM email_accounts WHERE id = $1`

	var a models.EmailAccount
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Provider, &a.Address, &a.AccessTokenEnc, &a.RefreshTokenEnc, &a.TokenExpiresAt,
		&a.SyncCursor, &a.LastSyncAt, &a.Status, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListConnectedAccounts(ctx context.Context) ([]models.EmailAccount, error) {
	query := `
		SELECT id, provider, address, access_token_enc, refresh_token_enc, token_expires_at,
			sync_cursor, last_sync_at, status, last_error, created_at, updated_at
		FROM email_accounts
		WHERE status = 'connected'
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.EmailAccount
	for rows.Next() {
		var a models.EmailAccount
		if err := rows.Scan(
			&a.ID, &a.Provider, &a.Address, &a.AccessTokenEnc, &a.RefreshTokenEnc, &a.TokenExpiresAt,
			&a.SyncCursor, &a.LastSyncAt, &a.Status, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) UpsertEmailAccount(ctx context.Context, a *models.EmailAccount) error {
	query := `
		INSERT INTO email_accounts (
			id, provider, address, access_token_enc, refresh_token_enc, token_expires_at,
			sync_cursor, last_sync_at, status, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (provider, address) DO UPDATE SET
			access_token_enc = EXCLUDED.access_token_enc,
			refresh_token_enc = EXCLUDED.refresh_token_enc,
			token_expires_at = EXCLUDED.token_expires_at,
			status = EXCLUDED.status,
			last_error = '',
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		a.ID, a.Provider, a.Address, a.AccessTokenEnc, a.RefreshTokenEnc, a.TokenExpiresAt,
		a.SyncCursor, a.LastSyncAt, a.Status, a.LastError, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
}

func (s *PostgresStore) UpdateAccountTokens(ctx context.Context, id uuid.UUID, accessEnc, refreshEnc []byte, expiresAt time.Time) error {
	query := `
		UPDATE email_accounts SET
			access_token_enc = $2, refresh_token_enc = $3, token_expires_at = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, accessEnc, refreshEnc, expiresAt)
	return err
}

// UpdateAccountSyncState persists the cursor and lastSyncAt after a sync pass.
// Callers pass the previous cursor back when the provider returned none.
func (s *PostgresStore) UpdateAccountSyncState(ctx context.Context, id uuid.UUID, cursor string, lastSyncAt time.Time) error {
	query := `
		UPDATE email_accounts SET sync_cursor = $2, last_sync_at = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, cursor, lastSyncAt)
	return err
}

func (s *PostgresStore) MarkAccountDisconnected(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE email_accounts SET status = 'disconnected', last_error = $2, updated_at = NOW()
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, reason)
	return err
}

// =============================================================================
// Emails
// =============================================================================

// UpsertEmail keys on (account_id, external_id). Bodyless re-upserts never
// clobber a backfilled body.
func (s *PostgresStore) UpsertEmail(ctx context.Context, e *models.Email) error {
	query := `
		INSERT INTO emails (
			id, account_id, provider, external_id, message_hash, from_name, from_address,
			to_addresses, subject, preview, body, category, is_listing_alert,
			sent_at, received_at, body_fetched_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (account_id, external_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			preview = COALESCE(NULLIF(EXCLUDED.preview, ''), emails.preview),
			body = COALESCE(NULLIF(EXCLUDED.body, ''), emails.body),
			category = EXCLUDED.category,
			is_listing_alert = EXCLUDED.is_listing_alert,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		e.ID, e.AccountID, e.Provider, e.ExternalID, e.MessageHash, e.FromName, e.FromAddress,
		e.ToAddresses, e.Subject, e.Preview, e.Body, e.Category, e.IsListingAlert,
		e.SentAt, e.ReceivedAt, e.BodyFetchedAt, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

// EmailHashOwnedElsewhere reports whether another account already stores a
// message with this hash. Check-then-insert; a concurrent double-sync can
// still admit both copies.
func (s *PostgresStore) EmailHashOwnedElsewhere(ctx context.Context, hash string, accountID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM emails WHERE message_hash = $1 AND account_id <> $2)`
	var exists bool
	err := s.pool.QueryRow(ctx, query, hash, accountID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) UpdateEmailBody(ctx context.Context, id uuid.UUID, body string, fetchedAt time.Time) error {
	query := `UPDATE emails SET body = $2, body_fetched_at = $3, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, body, fetchedAt)
	return err
}

// =============================================================================
// Platform Cookies
// =============================================================================

func (s *PostgresStore) GetPlatformCookie(ctx context.Context, platform string) (*models.PlatformCookie, error) {
	query := `
		SELECT platform, cookies_enc, captured_at, expires_at, is_valid, invalid_reason, last_used_at, updated_at
		FROM platform_cookies WHERE platform = $1`

	var pc models.PlatformCookie
	err := s.pool.QueryRow(ctx, query, platform).Scan(
		&pc.Platform, &pc.CookiesEnc, &pc.CapturedAt, &pc.ExpiresAt, &pc.IsValid, &pc.InvalidReason, &pc.LastUsedAt, &pc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (s *PostgresStore) UpsertPlatformCookie(ctx context.Context, pc *models.PlatformCookie) error {
	query := `
		INSERT INTO platform_cookies (platform, cookies_enc, captured_at, expires_at, is_valid, invalid_reason, last_used_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, '', $5, NOW())
		ON CONFLICT (platform) DO UPDATE SET
			cookies_enc = EXCLUDED.cookies_enc,
			captured_at = EXCLUDED.captured_at,
			expires_at = EXCLUDED.expires_at,
			is_valid = TRUE,
			invalid_reason = '',
			last_used_at = EXCLUDED.last_used_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, pc.Platform, pc.CookiesEnc, pc.CapturedAt, pc.ExpiresAt, pc.LastUsedAt)
	return err
}

func (s *PostgresStore) InvalidatePlatformCookie(ctx context.Context, platform, reason string) error {
	query := `UPDATE platform_cookies SET is_valid = FALSE, invalid_reason = $2, updated_at = NOW() WHERE platform = $1`
	_, err := s.pool.Exec(ctx, query, platform, reason)
	return err
}

func (s *PostgresStore) TouchPlatformCookie(ctx context.Context, platform string, usedAt time.Time) error {
	query := `UPDATE platform_cookies SET last_used_at = $2 WHERE platform = $1`
	_, err := s.pool.Exec(ctx, query, platform, usedAt)
	return err
}

// =============================================================================
// Scrape Runs
// =============================================================================

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		INSERT INTO scrape_runs (platform, started_at, status, listings_found, listings_new, listings_updated, errors_count, error_log, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.Platform, run.StartedAt, run.Status, run.ListingsFound, run.ListingsNew, run.ListingsUpdated, run.ErrorsCount, run.ErrorLog, run.Metadata,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateScrapeRun(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		UPDATE scrape_runs SET
			finished_at = $2, status = $3, listings_found = $4, listings_new = $5,
			listings_updated = $6, errors_count = $7, error_log = $8, metadata = $9
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew, run.ListingsUpdated, run.ErrorsCount, run.ErrorLog, run.Metadata,
	)
	return err
}
