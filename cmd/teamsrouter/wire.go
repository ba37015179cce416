package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/config"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/router"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/search"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/store"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/teams"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/ticketing"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/transcript"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/translate"
)

// routerStore is what both store drivers provide.
type routerStore interface {
	domain.Store
	store.Seeder
}

// app holds the wired components of one process.
type app struct {
	router  *router.Router
	tickets *ticketing.Dispatcher
	store   routerStore
}

// Close waits for in-flight tickets, then closes the store.
func (a *app) Close(ctx context.Context) error {
	if err := a.tickets.Flush(ctx); err != nil {
		logger.Warn("ticket flush incomplete", "err", err)
	}
	return a.store.Close()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *config.Config) bool {
	return cfg.Store.Driver == "dynamodb" ||
		cfg.Ticketing.Sink == "lambda" ||
		cfg.Search.Provider == "kendra" ||
		cfg.Translation.Provider == "aws"
}

func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !needsAWS(cfg) {
		return aws.Config{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// openStore opens the configured store. awsCfg comes from loadAWS and is
// only used by the dynamodb driver.
func openStore(cfg *config.Config, awsCfg aws.Config, log *slog.Logger) (routerStore, error) {
	switch cfg.Store.Driver {
	case "dynamodb":
		return store.NewDynamoStore(store.DynamoConfig{
			AWS:      awsCfg,
			Endpoint: cfg.AWS.Endpoint,
			Tables: store.DynamoTables{
				Conversations: cfg.Store.ConversationsTable,
				Bindings:      cfg.Store.BindingsTable,
				Tenants:       cfg.Store.TenantsTable,
			},
			Logger: log,
		}), nil
	default:
		s, err := store.NewSQLiteStore(config.ExpandPath(cfg.Store.SQLitePath), log)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, nil
	}
}

func newSink(cfg *config.Config, awsCfg aws.Config, log *slog.Logger) ticketing.Sink {
	switch cfg.Ticketing.Sink {
	case "lambda":
		return ticketing.NewLambdaSink(ticketing.LambdaSinkConfig{
			AWS:      awsCfg,
			Function: cfg.Ticketing.Function,
			Endpoint: cfg.AWS.Endpoint,
		})
	case "http":
		return ticketing.NewHTTPSink(ticketing.HTTPSinkConfig{
			URL:     cfg.Ticketing.URL,
			Token:   cfg.Ticketing.Token,
			Timeout: seconds(cfg.Ticketing.TimeoutSeconds),
		})
	default:
		return ticketing.LogSink{Logger: log}
	}
}

func newSearcher(cfg *config.Config, awsCfg aws.Config, log *slog.Logger) domain.Searcher {
	if cfg.Search.Provider == "kendra" {
		return search.NewKendra(search.KendraConfig{
			AWS:      awsCfg,
			IndexID:  cfg.Search.IndexID,
			Endpoint: cfg.AWS.Endpoint,
			NoResult: cfg.Search.NoResultMessage,
			Logger:   log,
		})
	}
	entries := make([]search.Entry, 0, len(cfg.Search.Entries))
	for _, e := range cfg.Search.Entries {
		entries = append(entries, search.Entry{Keyword: e.Keyword, Answer: e.Answer, Link: e.Link})
	}
	return search.Static{Entries: entries, NoResult: cfg.Search.NoResultMessage}
}

func newTranslator(cfg *config.Config, awsCfg aws.Config, bindings domain.BindingStore, log *slog.Logger) domain.Translator {
	if cfg.Translation.Provider != "aws" {
		return translate.Noop{}
	}
	return translate.NewAWS(translate.AWSConfig{
		AWS:             awsCfg,
		Endpoint:        cfg.AWS.Endpoint,
		Bindings:        bindings,
		SourceLanguage:  cfg.Translation.SourceLanguage,
		DefaultLanguage: cfg.Translation.DefaultLanguage,
		Logger:          log,
	})
}

func newLocker(cfg *config.Config, log *slog.Logger) transcript.Locker {
	if !cfg.Store.Lock.Enabled {
		return nil
	}
	return store.NewRedisLocker(store.RedisLockerConfig{
		Addr:     cfg.Store.Lock.Addr,
		Password: cfg.Store.Lock.Password,
		DB:       cfg.Store.Lock.DB,
		TTL:      seconds(cfg.Store.Lock.TTLSeconds),
		Logger:   log,
	})
}

// buildApp wires every component named in the config.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}

	tickets := ticketing.NewDispatcher(ticketing.DispatcherConfig{
		Sink:    newSink(cfg, awsCfg, log),
		Timeout: seconds(cfg.Ticketing.TimeoutSeconds),
		Logger:  log,
	})

	sender := teams.NewClient(teams.ClientConfig{
		TokenURL: cfg.Teams.AuthTokenURL,
		Timeout:  seconds(cfg.Teams.TimeoutSeconds),
		Logger:   log,
	})

	r := router.New(router.Config{
		Store:      st,
		Sender:     sender,
		Translator: newTranslator(cfg, awsCfg, st, log),
		Searcher:   newSearcher(cfg, awsCfg, log),
		Fetcher: transcript.NewHTTPFetcher(transcript.FetcherConfig{
			BaseURL: cfg.Transcript.BaseURL,
			Path:    cfg.Transcript.Path,
			Timeout: seconds(cfg.Transcript.TimeoutSeconds),
			Logger:  log,
		}),
		Tickets: tickets,
		Transcripts: transcript.NewAppender(transcript.AppenderConfig{
			Store:  st,
			Locker: newLocker(cfg, log),
			Logger: log,
		}),
		Rules: router.Rules{
			FallbackMarker:       cfg.Routing.FallbackMarker,
			TerminationPhrase:    cfg.Routing.TerminationPhrase,
			TerminationTenant:    cfg.Routing.TerminationTenant,
			TerminationDelimiter: cfg.Routing.TerminationDelimiter,
			NoResultMessage:      cfg.Search.NoResultMessage,
		},
		FileConsent: cfg.Teams.FileConsent,
		Probe:       sender.ContentLength,
		Logger:      log,
	})

	return &app{router: r, tickets: tickets, store: st}, nil
}
