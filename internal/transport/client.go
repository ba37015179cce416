package transport

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the router to Teams and the chat provider.
var DefaultUserAgent = "teams-outbound-handler"

const defaultTimeout = 30 * time.Second

// ClientOptions sizes an outbound client for one class of destination.
// Teams fans out across one host per tenant region; the history and
// ticketing endpoints are a single host each.
type ClientOptions struct {
	Timeout time.Duration
	// MaxConnsPerHost caps concurrent connections to any one host. Zero
	// means 10.
	MaxConnsPerHost int
	UserAgent       string
}

// NewClient returns a pooled client that honours proxy environment
// variables and stamps a User-Agent on requests that lack one.
func NewClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        4 * opts.MaxConnsPerHost,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgent{next: base, value: opts.UserAgent},
	}
}

type userAgent struct {
	next  http.RoundTripper
	value string
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.next.RoundTrip(req)
	}
	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", u.value)
	return u.next.RoundTrip(r)
}
