// Package search answers the router's fallback queries.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kendra"
	"github.com/aws/aws-sdk-go-v2/service/kendra/types"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/metrics"
)

// DefaultNoResult is answered when a query yields nothing usable.
const DefaultNoResult = "Sorry, I could not find an answer to that. You can talk to an agent for more help."

type kendraAPI interface {
	Query(ctx context.Context, in *kendra.QueryInput, optFns ...func(*kendra.Options)) (*kendra.QueryOutput, error)
}

// Kendra queries an Amazon Kendra index and answers with the excerpt of the
// best suggested answer, or of the top document when there is none.
type Kendra struct {
	api      kendraAPI
	index    string
	noResult string
	logger   *slog.Logger
}

// KendraConfig holds configuration for Kendra.
type KendraConfig struct {
	AWS      aws.Config
	IndexID  string
	Endpoint string
	NoResult string
	Logger   *slog.Logger
}

func NewKendra(cfg KendraConfig) *Kendra {
	client := kendra.NewFromConfig(cfg.AWS, func(o *kendra.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newKendra(client, cfg)
}

func newKendra(api kendraAPI, cfg KendraConfig) *Kendra {
	if cfg.NoResult == "" {
		cfg.NoResult = DefaultNoResult
	}
	return &Kendra{api: api, index: cfg.IndexID, noResult: cfg.NoResult, logger: cfg.Logger}
}

// Search never fails the caller for an empty query or an empty result; both
// produce the no-result answer. Transport errors are returned.
func (k *Kendra) Search(ctx context.Context, query string) (string, string, error) {
	start := time.Now()
	defer func() { metrics.SearchLatency.Observe(time.Since(start).Seconds()) }()

	if strings.TrimSpace(query) == "" {
		return k.noResult, "", nil
	}

	out, err := k.api.Query(ctx, &kendra.QueryInput{
		IndexId:   aws.String(k.index),
		QueryText: aws.String(query),
	})
	if err != nil {
		return "", "", fmt.Errorf("kendra query: %w", err)
	}

	item, ok := pick(out.ResultItems)
	if !ok {
		k.logger.Info("search returned no usable result", "query", query)
		return k.noResult, "", nil
	}
	return excerpt(item), aws.ToString(item.DocumentURI), nil
}

// pick prefers ANSWER over QUESTION_ANSWER over DOCUMENT results.
func pick(items []types.QueryResultItem) (types.QueryResultItem, bool) {
	for _, want := range []types.QueryResultType{
		types.QueryResultTypeAnswer,
		types.QueryResultTypeQuestionAnswer,
		types.QueryResultTypeDocument,
	} {
		for _, it := range items {
			if it.Type == want && excerpt(it) != "" {
				return it, true
			}
		}
	}
	return types.QueryResultItem{}, false
}

func excerpt(it types.QueryResultItem) string {
	for _, attr := range it.AdditionalAttributes {
		if attr.Value != nil && attr.Value.TextWithHighlightsValue != nil {
			if text := aws.ToString(attr.Value.TextWithHighlightsValue.Text); text != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if it.DocumentExcerpt != nil {
		return strings.TrimSpace(aws.ToString(it.DocumentExcerpt.Text))
	}
	return ""
}
