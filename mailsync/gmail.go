package mailsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dealscout/models"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailProvider talks to the Gmail REST API. The history id is the sync
// cursor; while a history listing is mid-pagination the cursor is
// "<historyId>:<pageToken>" so an interrupted sync resumes where it stopped.
type GmailProvider struct {
	client  *http.Client
	baseURL string
}

func NewGmailProvider(client *http.Client) *GmailProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &GmailProvider{client: client, baseURL: gmailBaseURL}
}

func (g *GmailProvider) Name() string { return models.ProviderGmail }

type gmailListResponse struct {
	Messages      []struct{ ID string `json:"id"` } `json:"messages"`
	NextPageToken string                            `json:"nextPageToken"`
}

type gmailMessage struct {
	ID           string `json:"id"`
	Snippet      string `json:"snippet"`
	InternalDate string `json:"internalDate"` // epoch millis as string
	Payload      struct {
		MimeType string `json:"mimeType"`
		Headers  []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body  gmailBody      `json:"body"`
		Parts []gmailPayload `json:"parts"`
	} `json:"payload"`
}

type gmailPayload struct {
	MimeType string         `json:"mimeType"`
	Body     gmailBody      `json:"body"`
	Parts    []gmailPayload `json:"parts"`
}

type gmailBody struct {
	Data string `json:"data"`
}

type gmailProfile struct {
	HistoryID string `json:"historyId"`
}

type gmailHistoryResponse struct {
	History []struct {
		MessagesAdded []struct {
			Message struct{ ID string `json:"id"` } `json:"message"`
		} `json:"messagesAdded"`
		MessagesDeleted []struct {
			Message struct{ ID string `json:"id"` } `json:"message"`
		} `json:"messagesDeleted"`
	} `json:"history"`
	HistoryID     string `json:"historyId"`
	NextPageToken string `json:"nextPageToken"`
}

func (g *GmailProvider) ListRecent(ctx context.Context, token string, max int) ([]models.RawMessage, error) {
	var out []models.RawMessage
	pageToken := ""
	for len(out) < max {
		q := url.Values{}
		q.Set("maxResults", strconv.Itoa(max-len(out)))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page gmailListResponse
		status, err := g.get(ctx, token, "/users/me/messages?"+q.Encode(), &page)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("gmail list: status %d", status)
		}
		for _, m := range page.Messages {
			if len(out) >= max {
				break
			}
			raw, err := g.getMessage(ctx, token, m.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, *raw)
		}
		if page.NextPageToken == "" || len(page.Messages) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}
	return out, nil
}

func (g *GmailProvider) Changes(ctx context.Context, token, cursor string) (*ChangePage, error) {
	if cursor == "" {
		// Seed: the profile call gives the current history baseline without
		// walking the mailbox.
		var profile gmailProfile
		status, err := g.get(ctx, token, "/users/me/profile", &profile)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("gmail profile: status %d", status)
		}
		return &ChangePage{Cursor: profile.HistoryID}, nil
	}

	startID, pageToken, _ := strings.Cut(cursor, ":")
	q := url.Values{}
	q.Set("startHistoryId", startID)
	q.Add("historyTypes", "messageAdded")
	q.Add("historyTypes", "messageDeleted")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var hist gmailHistoryResponse
	status, err := g.get(ctx, token, "/users/me/history?"+q.Encode(), &hist)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		// Gmail expires history ids after about a week.
		return nil, fmt.Errorf("gmail history %s: %w", startID, ErrCursorExpired)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("gmail history: status %d", status)
	}

	page := &ChangePage{}
	for _, h := range hist.History {
		for _, added := range h.MessagesAdded {
			raw, err := g.getMessage(ctx, token, added.Message.ID)
			if err != nil {
				return nil, err
			}
			page.Added = append(page.Added, *raw)
		}
		for _, removed := range h.MessagesDeleted {
			page.RemovedIDs = append(page.RemovedIDs, removed.Message.ID)
		}
	}

	if hist.NextPageToken != "" {
		page.Cursor = startID + ":" + hist.NextPageToken
		page.More = true
	} else if hist.HistoryID != "" {
		page.Cursor = hist.HistoryID
	}
	return page, nil
}

func (g *GmailProvider) FetchBody(ctx context.Context, token, messageID string) (string, error) {
	var msg gmailMessage
	status, err := g.get(ctx, token, "/users/me/messages/"+messageID+"?format=full", &msg)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("gmail message %s: status %d", messageID, status)
	}

	root := gmailPayload{
		MimeType: msg.Payload.MimeType,
		Body:     msg.Payload.Body,
		Parts:    msg.Payload.Parts,
	}
	if body := findPart(root, "text/html"); body != "" {
		return body, nil
	}
	return findPart(root, "text/plain"), nil
}

// getMessage fetches header metadata for one message.
func (g *GmailProvider) getMessage(ctx context.Context, token, id string) (*models.RawMessage, error) {
	path := "/users/me/messages/" + id +
		"?format=metadata&metadataHeaders=From&metadataHeaders=To&metadataHeaders=Subject&metadataHeaders=Date"
	var msg gmailMessage
	status, err := g.get(ctx, token, path, &msg)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("gmail message %s: status %d", id, status)
	}

	raw := &models.RawMessage{ExternalID: msg.ID, Preview: msg.Snippet}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			if addr, err := mail.ParseAddress(h.Value); err == nil {
				raw.FromName = addr.Name
				raw.FromAddress = addr.Address
			} else {
				raw.FromAddress = h.Value
			}
		case "to":
			if addrs, err := mail.ParseAddressList(h.Value); err == nil {
				for _, a := range addrs {
					raw.To = append(raw.To, a.Address)
				}
			}
		case "subject":
			raw.Subject = h.Value
		case "date":
			if t, err := mail.ParseDate(h.Value); err == nil {
				raw.SentAt = t.UTC()
			}
		}
	}
	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		raw.ReceivedAt = time.UnixMilli(ms).UTC()
	}
	if raw.SentAt.IsZero() {
		raw.SentAt = raw.ReceivedAt
	}
	return raw, nil
}

func (g *GmailProvider) get(ctx context.Context, token, path string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gmail request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("gmail read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, v); err != nil {
			return resp.StatusCode, fmt.Errorf("gmail decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// findPart walks a MIME tree depth-first for the first part of the wanted type.
func findPart(p gmailPayload, mimeType string) string {
	if strings.HasPrefix(p.MimeType, mimeType) && p.Body.Data != "" {
		return decodeGmailData(p.Body.Data)
	}
	for _, part := range p.Parts {
		if body := findPart(part, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeGmailData decodes Gmail's URL-safe base64, tolerating stripped padding.
func decodeGmailData(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}
