package canary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Client talks to the Canary cloud API. Authentication uses the vendor's
// password-based token endpoint; the oauth2 transport handles refresh.
type Client struct {
	baseURL    string
	creds      *clientcredentials.Config
	httpClient *http.Client
}

// NewClient creates a new Canary API client. The token-refreshing HTTP
// client is bound to the process lifetime, not to any caller's context:
// token endpoint requests must outlive the request that triggered them.
func NewClient(baseURL, username, password string) *Client {
	creds := &clientcredentials.Config{
		TokenURL: baseURL + "/o/access_token/",
		EndpointParams: url.Values{
			"username": {username},
			"password": {password},
		},
	}

	httpClient := creds.Client(context.Background())
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: httpClient,
	}
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetLocations retrieves all locations with their devices.
func (c *Client) GetLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	if err := c.get(ctx, "/v1/locations", &locations); err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	return locations, nil
}

// GetLatestReadings retrieves the most recent sensor readings for a device.
func (c *Client) GetLatestReadings(ctx context.Context, deviceID int64) ([]Reading, error) {
	var readings []Reading
	path := fmt.Sprintf("/v1/readings?deviceId=%d", deviceID)
	if err := c.get(ctx, path, &readings); err != nil {
		return nil, fmt.Errorf("get readings for device %d: %w", deviceID, err)
	}
	return readings, nil
}

// GetEntries retrieves today's motion entries for a location, newest first.
func (c *Client) GetEntries(ctx context.Context, locationID int64) ([]Entry, error) {
	var entries []Entry
	path := fmt.Sprintf("/v1/entries?locationId=%d", locationID)
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, fmt.Errorf("get entries for location %d: %w", locationID, err)
	}
	return entries, nil
}

// GetLiveStreamSession requests a fresh live stream session for a device.
// The returned session carries a short-lived stream URL and must be kept
// alive via StartRenewSession.
func (c *Client) GetLiveStreamSession(ctx context.Context, device Device) (*LiveStreamSession, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/v1/watchlive/%s/session", c.baseURL, device.UUID),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request live session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("live session request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var session LiveStreamSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode live session: %w", err)
	}

	session.client = c
	session.deviceUUID = device.UUID

	return &session, nil
}

// renewSession pings the vendor keep-alive endpoint for a session.
func (c *Client) renewSession(ctx context.Context, deviceUUID, sessionID string) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/v1/watchlive/%s/session/%s/renew", c.baseURL, deviceUUID, sessionID),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to renew session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session renew failed with status %d", resp.StatusCode)
	}

	return nil
}
