package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealscout/config"
	"dealscout/models"
	"dealscout/secrets"
)

// ErrAccountDisconnected means the provider rejected the refresh grant (or the
// stored refresh token is unreadable) and the user must re-authenticate.
// Callers check it with errors.Is and stop retrying.
var ErrAccountDisconnected = errors.New("email account disconnected")

// Refresh this far ahead of expiry so a token never dies mid-request.
const tokenExpirySkew = 5 * time.Minute

type accountStore interface {
	UpdateAccountTokens(ctx context.Context, id uuid.UUID, accessEnc, refreshEnc []byte, expiresAt time.Time) error
	MarkAccountDisconnected(ctx context.Context, id uuid.UUID, reason string) error
}

// TokenProvider answers "give me a currently-valid bearer token for this
// account". It returns the cached token while it has headroom, otherwise runs
// a refresh-token grant and persists the rotated credentials.
type TokenProvider struct {
	store   accountStore
	box     *secrets.Box
	clients map[string]config.OAuthClient
	http    *http.Client

	nowFn func() time.Time
}

func NewTokenProvider(store accountStore, box *secrets.Box, clients map[string]config.OAuthClient, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenProvider{
		store:   store,
		box:     box,
		clients: clients,
		http:    httpClient,
		nowFn:   time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// AccessToken returns a valid bearer token for the account, refreshing first
// when the cached one is within 5 minutes of expiry. The account struct is
// updated in place alongside the store so callers keep a current view.
func (p *TokenProvider) AccessToken(ctx context.Context, account *models.EmailAccount) (string, error) {
	if account.Status == models.AccountDisconnected {
		return "", fmt.Errorf("account %s: %w", account.Address, ErrAccountDisconnected)
	}

	if account.TokenExpiresAt.After(p.nowFn().Add(tokenExpirySkew)) && len(account.AccessTokenEnc) > 0 {
		plain, err := p.box.Open(account.AccessTokenEnc)
		if err == nil {
			return string(plain), nil
		}
		// cached blob is unreadable; fall through and mint a fresh one
	}

	return p.refresh(ctx, account)
}

func (p *TokenProvider) refresh(ctx context.Context, account *models.EmailAccount) (string, error) {
	client, ok := p.clients[account.Provider]
	if !ok {
		return "", fmt.Errorf("no oauth client configured for provider %s", account.Provider)
	}

	refreshPlain, err := p.box.Open(account.RefreshTokenEnc)
	if err != nil {
		p.disconnect(ctx, account, "refresh token undecryptable")
		return "", fmt.Errorf("account %s refresh token unreadable: %w", account.Address, ErrAccountDisconnected)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {string(refreshPlain)},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		// transient; next sync retries
		return "", fmt.Errorf("refresh token for %s: %w", account.Address, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := refreshRejectionReason(resp.StatusCode, body)
		p.disconnect(ctx, account, reason)
		return "", fmt.Errorf("token refresh rejected for %s (%s): %w", account.Address, reason, ErrAccountDisconnected)
	default:
		return "", fmt.Errorf("token endpoint returned %d for %s", resp.StatusCode, account.Address)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response for %s: %w", account.Address, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response for %s missing access_token", account.Address)
	}

	// Providers rotate refresh tokens at will; keep the old one when the
	// response omits it.
	newRefresh := tr.RefreshToken
	if newRefresh == "" {
		newRefresh = string(refreshPlain)
	}

	accessEnc, err := p.box.Seal([]byte(tr.AccessToken))
	if err != nil {
		return "", fmt.Errorf("seal access token: %w", err)
	}
	refreshEnc, err := p.box.Seal([]byte(newRefresh))
	if err != nil {
		return "", fmt.Errorf("seal refresh token: %w", err)
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	expiresAt := p.nowFn().Add(expiresIn)

	if err := p.store.UpdateAccountTokens(ctx, account.ID, accessEnc, refreshEnc, expiresAt); err != nil {
		return "", fmt.Errorf("persist refreshed tokens for %s: %w", account.Address, err)
	}
	account.AccessTokenEnc = accessEnc
	account.RefreshTokenEnc = refreshEnc
	account.TokenExpiresAt = expiresAt

	return tr.AccessToken, nil
}

func (p *TokenProvider) disconnect(ctx context.Context, account *models.EmailAccount, reason string) {
	if err := p.store.MarkAccountDisconnected(ctx, account.ID, reason); err != nil {
		log.Printf("Warning: failed to mark account %s disconnected: %v", account.Address, err)
	}
	account.Status = models.AccountDisconnected
	account.LastError = reason
}

func refreshRejectionReason(status int, body []byte) string {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err == nil && tr.Error != "" {
		if tr.ErrorDesc != "" {
			return tr.Error + ": " + tr.ErrorDesc
		}
		return tr.Error
	}
	return fmt.Sprintf("http %d", status)
}
