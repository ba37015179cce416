// Package router turns chat-provider events into Teams activities, transcript
// lines and ticket events.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/metrics"
)

// Fixed user-facing texts.
const (
	CompletionNotice   = "----- *This conversation is marked as completed* -----"
	AgentEnteredFormat = "----- *%s has entered the conversation* -----"
	DownloadPrompt     = "You can click the below button to download the file."

	TalkToAgent      = "Talk to an Agent"
	DefaultBotName   = "BOT"
	DefaultAgentName = "IT Agent"

	AttachmentMarker = "ATTACHMENT"
	ImageMarker      = "IMAGE"
)

// Rules are the tenant-independent matching rules of the router.
type Rules struct {
	// FallbackMarker in a message body means the bot found no direct answer.
	FallbackMarker string
	// A message containing TerminationPhrase from TerminationTenant carries
	// "<text><TerminationDelimiter><conversation number>" and also closes
	// the conversation.
	TerminationPhrase    string
	TerminationTenant    string
	TerminationDelimiter string
	// NoResultMessage is sent when the search fallback fails.
	NoResultMessage string
}

func DefaultRules() Rules {
	return Rules{
		FallbackMarker:       "BOT BREAK",
		TerminationPhrase:    "Alright! I'll be around if you need more help",
		TerminationTenant:    "4",
		TerminationDelimiter: "|",
		NoResultMessage:      "Sorry, I could not find an answer to that. You can talk to an agent for more help.",
	}
}

// Store is the record access the router needs.
type Store interface {
	domain.BindingStore
	domain.TenantStore
	domain.ConversationStore
}

// TranscriptAppender records one attributed line on a conversation.
type TranscriptAppender interface {
	Append(ctx context.Context, conversationID, speaker, text string) error
}

// SizeProbe returns the size in bytes of the file behind a URL.
type SizeProbe func(ctx context.Context, url string) (int64, error)

// Router dispatches inbound events. It is safe for concurrent use; events for
// the same conversation should still be serialized by the caller.
type Router struct {
	store       Store
	sender      domain.Sender
	translator  domain.Translator
	searcher    domain.Searcher
	fetcher     domain.TranscriptFetcher
	tickets     domain.TicketDispatcher
	transcripts TranscriptAppender
	rules       Rules
	fileConsent bool
	probe       SizeProbe
	logger      *slog.Logger
}

// Config holds the collaborators of a Router. Store, Sender, Fetcher,
// Tickets and Transcripts are required.
type Config struct {
	Store       Store
	Sender      domain.Sender
	Translator  domain.Translator // nil leaves text untouched
	Searcher    domain.Searcher   // nil always answers Rules.NoResultMessage
	Fetcher     domain.TranscriptFetcher
	Tickets     domain.TicketDispatcher
	Transcripts TranscriptAppender
	Rules       Rules
	// FileConsent sends carousel images as file-consent cards sized by
	// Probe instead of inline images.
	FileConsent bool
	Probe       SizeProbe
	Logger      *slog.Logger
}

func New(cfg Config) *Router {
	def := DefaultRules()
	rules := cfg.Rules
	if rules.FallbackMarker == "" {
		rules.FallbackMarker = def.FallbackMarker
	}
	if rules.TerminationPhrase == "" {
		rules.TerminationPhrase = def.TerminationPhrase
	}
	if rules.TerminationTenant == "" {
		rules.TerminationTenant = def.TerminationTenant
	}
	if rules.TerminationDelimiter == "" {
		rules.TerminationDelimiter = def.TerminationDelimiter
	}
	if rules.NoResultMessage == "" {
		rules.NoResultMessage = def.NoResultMessage
	}
	return &Router{
		store:       cfg.Store,
		sender:      cfg.Sender,
		translator:  cfg.Translator,
		searcher:    cfg.Searcher,
		fetcher:     cfg.Fetcher,
		tickets:     cfg.Tickets,
		transcripts: cfg.Transcripts,
		rules:       rules,
		fileConsent: cfg.FileConsent && cfg.Probe != nil,
		probe:       cfg.Probe,
		logger:      cfg.Logger,
	}
}

// turn is the resolved context of one event.
type turn struct {
	authID         string
	clientID       string
	conversationID string
	creds          *domain.CredentialBundle
	translate      bool
	log            *slog.Logger
}

// Dispatch handles one event. Failures inside a handler are logged and never
// returned; the only error is the context's, when it ends before dispatch
// completes.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	log := r.logger.With(
		"event_id", ev.ID,
		"client_id", ev.ClientID,
		"user", ev.AuthID,
		"event_name", ev.Body.EventName,
	)
	metrics.InflightEvents.Inc()
	defer metrics.InflightEvents.Dec()

	t, ok := r.resolve(ctx, ev, log)
	if !ok {
		return ctx.Err()
	}

	kind := ev.Kind()
	metrics.EventDispatched(string(kind)).Inc()
	switch kind {
	case domain.KindResolution:
		log.Info("received conversation completed event")
		r.handleResolution(ctx, t, ev, string(ev.Body.Data.ConversationNo))
	case domain.KindMessage:
		if r.isTermination(ev) {
			text, conversationNo, ok := splitTermination(ev.Text(), r.rules.TerminationDelimiter)
			if !ok {
				log.Error("termination message without conversation number, dropping event",
					"delimiter", r.rules.TerminationDelimiter)
				return ctx.Err()
			}
			log.Info("handling ticket termination from message", "conversation_no", conversationNo)
			r.handleMessage(ctx, t, ev.WithText(text))
			r.handleResolution(ctx, t, ev, conversationNo)
		} else {
			r.handleMessage(ctx, t, ev)
		}
	case domain.KindPinned:
		log.Info("received chat pinned event")
		r.handlePinned(ctx, t, ev)
	default:
		log.Info("received unsupported event")
	}

	log.Debug("event dispatched", "kind", kind, "duration", time.Since(start))
	return ctx.Err()
}

func (r *Router) isTermination(ev domain.Event) bool {
	return ev.ClientID == r.rules.TerminationTenant &&
		strings.Contains(ev.Text(), r.rules.TerminationPhrase)
}

// splitTermination returns the text before the first delimiter and the
// segment after it.
func splitTermination(text, delimiter string) (string, string, bool) {
	parts := strings.Split(text, delimiter)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// speaker is the title-cased agent name, or def when the event has none.
func (r *Router) speaker(ev domain.Event, def string) string {
	if ev.Body.Agent.Name == nil {
		return def
	}
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.Und).String(*ev.Body.Agent.Name)
}
