// Package teams posts Bot Framework activities into Microsoft Teams
// conversations using per-tenant client-credentials tokens.
package teams

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/transport"
)

// ErrUnexpectedStatus is returned when Teams answers anything but 201.
var ErrUnexpectedStatus = errors.New("unexpected status from teams")

// Client implements domain.Sender.
type Client struct {
	tokenURL string
	client   *http.Client
	logger   *slog.Logger

	mu     sync.Mutex
	tokens map[string]cachedSource
}

// cachedSource remembers which secret a token source was built with, so a
// rotated secret replaces it.
type cachedSource struct {
	secret [sha256.Size]byte
	ts     oauth2.TokenSource
}

type ClientConfig struct {
	TokenURL string
	Timeout  time.Duration
	Client   *http.Client // optional, overrides Timeout
	Logger   *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Client == nil {
		cfg.Client = transport.NewClient(transport.ClientOptions{Timeout: cfg.Timeout})
	}
	return &Client{
		tokenURL: cfg.TokenURL,
		client:   cfg.Client,
		logger:   cfg.Logger,
		tokens:   make(map[string]cachedSource),
	}
}

func (c *Client) SendText(ctx context.Context, creds *domain.CredentialBundle, conversationID, text string) (string, error) {
	return c.post(ctx, creds, conversationID, TextActivity(text))
}

func (c *Client) SendButtons(ctx context.Context, creds *domain.CredentialBundle, conversationID, text string, actions []domain.Action) (string, error) {
	return c.post(ctx, creds, conversationID, HeroCardActivity(text, actions))
}

func (c *Client) SendImage(ctx context.Context, creds *domain.CredentialBundle, conversationID string, img domain.ImageRef) (string, error) {
	return c.post(ctx, creds, conversationID, ImageActivity(img))
}

func (c *Client) SendFileConsent(ctx context.Context, creds *domain.CredentialBundle, conversationID, name string, sizeInBytes int64) (string, error) {
	return c.post(ctx, creds, conversationID, FileConsentActivity(name, sizeInBytes))
}

// AuthHeader returns the "Bearer <token>" value for the tenant.
func (c *Client) AuthHeader(ctx context.Context, creds *domain.CredentialBundle) (string, error) {
	if creds == nil {
		return "", domain.ErrNoCredentials
	}
	tok, err := c.tokenSource(creds).Token()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	return "Bearer " + tok.AccessToken, nil
}

// tokenSource returns a cached, auto-refreshing source for the tenant's
// Teams app registration.
func (c *Client) tokenSource(creds *domain.CredentialBundle) oauth2.TokenSource {
	key := creds.TeamsClientID + "|" + creds.TeamsScope
	secret := sha256.Sum256([]byte(creds.TeamsClientSecret))
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok := c.tokens[key]; ok && cs.secret == secret {
		return cs.ts
	}
	cc := &clientcredentials.Config{
		ClientID:     creds.TeamsClientID,
		ClientSecret: creds.TeamsClientSecret,
		TokenURL:     c.tokenURL,
		Scopes:       strings.Fields(creds.TeamsScope),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.client)
	ts := cc.TokenSource(ctx)
	c.tokens[key] = cachedSource{secret: secret, ts: ts}
	return ts
}

func (c *Client) post(ctx context.Context, creds *domain.CredentialBundle, conversationID string, act Activity) (string, error) {
	if creds == nil {
		return "", domain.ErrNoCredentials
	}
	if creds.TeamsBaseURL == "" {
		return "", fmt.Errorf("tenant has no teams base url: %w", domain.ErrNoCredentials)
	}
	auth, err := c.AuthHeader(ctx, creds)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(act)
	if err != nil {
		return "", fmt.Errorf("marshal activity: %w", err)
	}
	endpoint := strings.TrimRight(creds.TeamsBaseURL, "/") + "/conversations/" + url.PathEscape(conversationID) + "/activities"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post activity: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	c.logger.Debug("teams activity posted", "conversation", conversationID, "status", resp.StatusCode)
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode activity response: %w", err)
	}
	return created.ID, nil
}

// ContentLength probes a file URL with HEAD and returns its size.
func (c *Client) ContentLength(ctx context.Context, fileURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", fileURL, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("head %s: HTTP %d", fileURL, resp.StatusCode)
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}
	n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("head %s: missing content-length", fileURL)
	}
	return n, nil
}
