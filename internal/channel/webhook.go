// Package channel holds the HTTP ingress that accepts chat-provider events.
package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Publisher accepts decoded events for asynchronous handling.
type Publisher interface {
	Publish(ev domain.Event) bool
}

// WebhookConfig configures the webhook ingress.
type WebhookConfig struct {
	Addr            string
	Path            string  // event URL path (default: /events)
	Secret          string  // HMAC secret for verifying webhook signatures
	RateLimit       float64 // events per second, 0 disables limiting
	Burst           int
	MetricsPath     string // empty disables the metrics endpoint
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Webhook accepts chat-provider events over HTTP and hands them to a Publisher.
type Webhook struct {
	addr            string
	path            string
	secret          string
	metricsPath     string
	shutdownTimeout time.Duration
	limiter         *rate.Limiter
	queue           Publisher
	logger          *slog.Logger
	server          *http.Server
}

// NewWebhook creates a new webhook ingress publishing into queue.
func NewWebhook(cfg WebhookConfig, queue Publisher) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/events"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Webhook{
		addr:            cfg.Addr,
		path:            cfg.Path,
		secret:          cfg.Secret,
		metricsPath:     cfg.MetricsPath,
		shutdownTimeout: cfg.ShutdownTimeout,
		queue:           queue,
		logger:          cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w
}

// Handler returns the ingress routes.
func (w *Webhook) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleEvent)
	mux.HandleFunc("/healthz", w.handleHealth)
	if w.metricsPath != "" {
		mux.Handle(w.metricsPath, metrics.Collector.Handler())
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts the server down gracefully.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleEvent(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if w.limiter != nil && !w.limiter.Allow() {
		metrics.EventsDropped.Inc()
		rw.Header().Set("Retry-After", "1")
		http.Error(rw, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify HMAC signature if secret is configured.
	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.EventsDropped.Inc()
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if ev.AuthID == "" {
		metrics.EventsDropped.Inc()
		http.Error(rw, "user is required", http.StatusBadRequest)
		return
	}

	ev.ID = uuid.NewString()
	w.logger.Info("event received",
		"event_id", ev.ID,
		"client_id", ev.ClientID,
		"user", ev.AuthID,
		"event_name", ev.Body.EventName,
	)

	if !w.queue.Publish(ev) {
		metrics.EventsDropped.Inc()
		http.Error(rw, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	metrics.EventsReceived.Inc()

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{
		"status":   "accepted",
		"event_id": ev.ID,
	})
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
