package mailsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dealscout/models"
)

const (
	graphBaseURL  = "https://graph.microsoft.com/v1.0"
	graphSelect   = "id,subject,bodyPreview,from,toRecipients,sentDateTime,receivedDateTime"
	graphDeltaTop = 100
	graphListTop  = 100
)

// GraphProvider talks to the Microsoft Graph mail API. The delta link is the
// sync cursor; Graph hands back a nextLink mid-pagination and a deltaLink on
// the final page, both already-complete URLs.
type GraphProvider struct {
	client  *http.Client
	baseURL string
}

func NewGraphProvider(client *http.Client) *GraphProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &GraphProvider{client: client, baseURL: graphBaseURL}
}

func (g *GraphProvider) Name() string { return models.ProviderOutlook }

type graphAddress struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	ID           string         `json:"id"`
	Subject      string         `json:"subject"`
	BodyPreview  string         `json:"bodyPreview"`
	From         graphAddress   `json:"from"`
	ToRecipients []graphAddress `json:"toRecipients"`
	SentDateTime string         `json:"sentDateTime"`
	ReceivedAt   string         `json:"receivedDateTime"`
	Removed      *struct {
		Reason string `json:"reason"`
	} `json:"@removed"`
	Body *struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphPage struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

func (g *GraphProvider) ListRecent(ctx context.Context, token string, max int) ([]models.RawMessage, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(min(max, graphListTop)))
	q.Set("$select", graphSelect)
	q.Set("$orderby", "receivedDateTime desc")
	next := g.baseURL + "/me/messages?" + q.Encode()

	var out []models.RawMessage
	for next != "" && len(out) < max {
		var page graphPage
		status, err := g.get(ctx, token, next, &page)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("graph list: status %d", status)
		}
		for _, m := range page.Value {
			if len(out) >= max {
				break
			}
			out = append(out, graphToRaw(m))
		}
		next = page.NextLink
	}
	return out, nil
}

func (g *GraphProvider) Changes(ctx context.Context, token, cursor string) (*ChangePage, error) {
	target := cursor
	if target == "" {
		q := url.Values{}
		q.Set("$top", strconv.Itoa(graphDeltaTop))
		q.Set("$select", graphSelect)
		target = g.baseURL + "/me/mailFolders/inbox/messages/delta?" + q.Encode()
	}

	var page graphPage
	status, err := g.get(ctx, token, target, &page)
	if err != nil {
		return nil, err
	}
	if status == http.StatusGone {
		// SyncStateNotFound: the delta token aged out server-side.
		return nil, fmt.Errorf("graph delta: %w", ErrCursorExpired)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("graph delta: status %d", status)
	}

	out := &ChangePage{}
	for _, m := range page.Value {
		if m.Removed != nil {
			out.RemovedIDs = append(out.RemovedIDs, m.ID)
			continue
		}
		out.Added = append(out.Added, graphToRaw(m))
	}
	if page.NextLink != "" {
		out.Cursor = page.NextLink
		out.More = true
	} else {
		out.Cursor = page.DeltaLink
	}
	return out, nil
}

func (g *GraphProvider) FetchBody(ctx context.Context, token, messageID string) (string, error) {
	var msg graphMessage
	status, err := g.get(ctx, token, g.baseURL+"/me/messages/"+url.PathEscape(messageID)+"?$select=body", &msg)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("graph message %s: status %d", messageID, status)
	}
	if msg.Body == nil {
		return "", nil
	}
	return msg.Body.Content, nil
}

func graphToRaw(m graphMessage) models.RawMessage {
	raw := models.RawMessage{
		ExternalID:  m.ID,
		FromName:    m.From.EmailAddress.Name,
		FromAddress: m.From.EmailAddress.Address,
		Subject:     m.Subject,
		Preview:     m.BodyPreview,
	}
	for _, to := range m.ToRecipients {
		raw.To = append(raw.To, to.EmailAddress.Address)
	}
	if t, err := time.Parse(time.RFC3339, m.SentDateTime); err == nil {
		raw.SentAt = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, m.ReceivedAt); err == nil {
		raw.ReceivedAt = t.UTC()
	}
	if raw.SentAt.IsZero() {
		raw.SentAt = raw.ReceivedAt
	}
	return raw
}

func (g *GraphProvider) get(ctx context.Context, token, rawURL string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("graph read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, v); err != nil {
			return resp.StatusCode, fmt.Errorf("graph decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
