// Package translate rewrites outbound text into the language of the Teams
// user it is addressed to.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

type translateAPI interface {
	TranslateText(ctx context.Context, in *translate.TranslateTextInput, optFns ...func(*translate.Options)) (*translate.TranslateTextOutput, error)
}

// AWS translates with Amazon Translate. The target language comes from the
// user's binding; users without one get DefaultLanguage.
type AWS struct {
	api             translateAPI
	bindings        domain.BindingStore
	sourceLanguage  string
	defaultLanguage string
	logger          *slog.Logger
}

// AWSConfig holds configuration for AWS.
type AWSConfig struct {
	AWS             aws.Config
	Endpoint        string
	Bindings        domain.BindingStore
	SourceLanguage  string // default "auto"
	DefaultLanguage string // default "en"
	Logger          *slog.Logger
}

func NewAWS(cfg AWSConfig) *AWS {
	client := translate.NewFromConfig(cfg.AWS, func(o *translate.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newAWS(client, cfg)
}

func newAWS(api translateAPI, cfg AWSConfig) *AWS {
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = "auto"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &AWS{
		api:             api,
		bindings:        cfg.Bindings,
		sourceLanguage:  cfg.SourceLanguage,
		defaultLanguage: cfg.DefaultLanguage,
		logger:          cfg.Logger,
	}
}

// Translate returns text unchanged when the target is the source language.
func (t *AWS) Translate(ctx context.Context, text, authID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	target, err := t.targetLanguage(ctx, authID)
	if err != nil {
		return text, err
	}
	if target == t.sourceLanguage {
		return text, nil
	}

	out, err := t.api.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(t.sourceLanguage),
		TargetLanguageCode: aws.String(target),
	})
	if err != nil {
		return text, fmt.Errorf("translate to %s: %w", target, err)
	}
	t.logger.Debug("translated message", "user", authID, "target", target)
	return aws.ToString(out.TranslatedText), nil
}

func (t *AWS) targetLanguage(ctx context.Context, authID string) (string, error) {
	if t.bindings == nil {
		return t.defaultLanguage, nil
	}
	b, err := t.bindings.Binding(ctx, authID)
	if err != nil {
		return "", fmt.Errorf("lookup language for %s: %w", authID, err)
	}
	if b == nil || b.Language == "" {
		return t.defaultLanguage, nil
	}
	return strings.ToLower(b.Language), nil
}

// Noop returns text unchanged.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _ string) (string, error) { return text, nil }
