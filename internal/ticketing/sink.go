package ticketing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/transport"
)

// Sink delivers one serialized ticket event to the ticketing backend.
type Sink interface {
	Deliver(ctx context.Context, kind domain.TicketKind, body []byte) error
}

// lambdaAPI is the subset of the Lambda client used by LambdaSink.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaSink invokes the ticketing function asynchronously (InvocationType
// Event). Lambda accepts the payload with 202 and runs the function later.
type LambdaSink struct {
	api      lambdaAPI
	function string
}

// LambdaSinkConfig holds configuration for LambdaSink.
type LambdaSinkConfig struct {
	AWS      aws.Config
	Function string // function name or ARN
	Endpoint string // optional endpoint override (LocalStack)
}

func NewLambdaSink(cfg LambdaSinkConfig) *LambdaSink {
	client := lambda.NewFromConfig(cfg.AWS, func(o *lambda.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &LambdaSink{api: client, function: cfg.Function}
}

func (s *LambdaSink) Deliver(ctx context.Context, kind domain.TicketKind, body []byte) error {
	out, err := s.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(s.function),
		InvocationType: types.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", s.function, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("invoke %s: function error %s", s.function, aws.ToString(out.FunctionError))
	}
	return nil
}

// HTTPSink posts ticket events as JSON to a ticketing endpoint.
type HTTPSink struct {
	url    string
	token  string
	client *http.Client
}

// HTTPSinkConfig holds configuration for HTTPSink.
type HTTPSinkConfig struct {
	URL     string
	Token   string // optional bearer token
	Timeout time.Duration
	Client  *http.Client
}

func NewHTTPSink(cfg HTTPSinkConfig) *HTTPSink {
	client := cfg.Client
	if client == nil {
		client = transport.NewClient(transport.ClientOptions{Timeout: cfg.Timeout, MaxConnsPerHost: 4})
	}
	return &HTTPSink{url: cfg.URL, token: cfg.Token, client: client}
}

func (s *HTTPSink) Deliver(ctx context.Context, kind domain.TicketKind, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ticket-Event", string(kind))
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ticket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("post ticket: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// LogSink only logs ticket events. Used when no backend is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(_ context.Context, kind domain.TicketKind, body []byte) error {
	s.Logger.Info("ticket event", "kind", kind, "payload", string(body))
	return nil
}
