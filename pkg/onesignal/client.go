package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://onesignal.com/api/v1"

type Client struct {
	appID      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(appID, apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		appID:      appID,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notification is the body of a create-notification call.
type Notification struct {
	AppID         string                 `json:"app_id"`
	Tags          []map[string]string    `json:"tags"`
	Data          map[string]interface{} `json:"data"`
	Title         map[string]string      `json:"title"`
	Contents      map[string]string      `json:"contents"`
	IOSBadgeType  string                 `json:"ios_badgeType"`
	IOSBadgeCount int                    `json:"ios_badgeCount"`
	AndroidSound  string                 `json:"android_sound,omitempty"`
	IOSSound      string                 `json:"ios_sound,omitempty"`
	SendAfter     string                 `json:"send_after,omitempty"`
	DelayedOption string                 `json:"delayed_option,omitempty"`
}

type Response struct {
	ID         string      `json:"id"`
	Recipients int         `json:"recipients"`
	Errors     interface{} `json:"errors,omitempty"`
}

// Send posts a notification. SendAfter, when set, must already be formatted.
func (c *Client) Send(ctx context.Context, n *Notification) (*Response, error) {
	n.AppID = c.appID

	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call push gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push gateway error: %s: %s", resp.Status, string(raw))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode push gateway response: %w", err)
	}
	return &out, nil
}
