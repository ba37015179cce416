// Package transcript keeps the running per-conversation transcript and
// fetches finished conversations from the chat provider.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

// Locker serializes transcript writes for one conversation across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Appender appends attributed lines to the stored transcript. The write is a
// read-modify-write of a single field; without a Locker, concurrent appends
// to the same conversation can lose lines.
type Appender struct {
	store  domain.ConversationStore
	locker Locker
	now    func() time.Time
	logger *slog.Logger
}

type AppenderConfig struct {
	Store  domain.ConversationStore
	Locker Locker // optional
	Now    func() time.Time
	Logger *slog.Logger
}

func NewAppender(cfg AppenderConfig) *Appender {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Appender{
		store:  cfg.Store,
		locker: cfg.Locker,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// Append records text spoken by speaker. It returns domain.ErrNotFound when
// the conversation record does not exist.
func (a *Appender) Append(ctx context.Context, conversationID, speaker, text string) error {
	if a.locker != nil {
		unlock, err := a.locker.Lock(ctx, "transcript:"+conversationID)
		if err != nil {
			return fmt.Errorf("lock transcript %s: %w", conversationID, err)
		}
		defer unlock()
	}

	rec, err := a.store.Conversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if rec == nil {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	entry := domain.TranscriptEntry{At: a.now(), Speaker: speaker, Text: text}
	updated := Join(rec.ChatTranscript, entry)
	if err := a.store.SetTranscript(ctx, conversationID, updated); err != nil {
		return fmt.Errorf("store transcript %s: %w", conversationID, err)
	}
	a.logger.Debug("transcript appended", "conversation", conversationID, "speaker", speaker)
	return nil
}

// Join appends a rendered entry to an existing transcript.
func Join(existing string, entry domain.TranscriptEntry) string {
	line := entry.Render()
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
