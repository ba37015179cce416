package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/transport"
)

const (
	defaultHistoryPath = "/integration/external/v1.0/chat_history/"
	maxHistoryBytes    = 4 << 20
)

// HTTPFetcher pulls conversation history from the chat provider's
// integration API using the tenant's bot credentials.
type HTTPFetcher struct {
	baseURL string
	path    string
	client  *http.Client
	logger  *slog.Logger
}

type FetcherConfig struct {
	BaseURL string
	Path    string // default: /integration/external/v1.0/chat_history/
	Timeout time.Duration
	Client  *http.Client // optional, overrides Timeout
	Logger  *slog.Logger
}

func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Path == "" {
		cfg.Path = defaultHistoryPath
	}
	if cfg.Client == nil {
		cfg.Client = transport.NewClient(transport.ClientOptions{Timeout: cfg.Timeout, MaxConnsPerHost: 4})
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		path:    cfg.Path,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

// Fetch returns the raw history document. Non-JSON bodies are wrapped in a
// JSON string so the result can always be embedded in a ticket.
func (f *HTTPFetcher) Fetch(ctx context.Context, creds *domain.CredentialBundle, userName, conversationNo string) (json.RawMessage, error) {
	if creds == nil {
		return nil, domain.ErrNoCredentials
	}

	q := url.Values{}
	q.Set("business_id", creds.BotBusiness)
	q.Set("user_name", userName)
	q.Set("conversation_no", conversationNo)
	endpoint := f.baseURL + f.path + "?" + q.Encode()

	resp, err := transport.DoWithRetry(ctx, f.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", creds.BotChatAuth)
		req.Header.Set("client-id", creds.BotClientID)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHistoryBytes))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch transcript: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if json.Valid(body) {
		return json.RawMessage(body), nil
	}
	wrapped, err := json.Marshal(string(body))
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
