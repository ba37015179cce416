package transcript

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type memConversations struct {
	recs map[string]*domain.ConversationRecord
}

func (m *memConversations) Conversation(ctx context.Context, id string) (*domain.ConversationRecord, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memConversations) SetTranscript(ctx context.Context, id, transcript string) error {
	rec, ok := m.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.ChatTranscript = transcript
	return nil
}

func (m *memConversations) SetAgentName(ctx context.Context, id, name string) error {
	rec, ok := m.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.AgentName = name
	return nil
}

type countingLocker struct {
	locked, unlocked int
	keys             []string
}

func (l *countingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.locked++
	l.keys = append(l.keys, key)
	return func() { l.unlocked++ }, nil
}

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestAppend_EmptyTranscript(t *testing.T) {
	store := &memConversations{recs: map[string]*domain.ConversationRecord{"c1": {ConversationID: "c1"}}}
	a := NewAppender(AppenderConfig{Store: store, Now: func() time.Time { return fixedTime }, Logger: testLogger()})

	if err := a.Append(context.Background(), "c1", "BOT", "Hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "14:05:07 09-03-2024 [BOT]: Hello"
	if got := store.recs["c1"].ChatTranscript; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppend_PreservesOrder(t *testing.T) {
	store := &memConversations{recs: map[string]*domain.ConversationRecord{"c1": {ConversationID: "c1"}}}
	a := NewAppender(AppenderConfig{Store: store, Now: func() time.Time { return fixedTime }, Logger: testLogger()})
	ctx := context.Background()

	_ = a.Append(ctx, "c1", "BOT", "first")
	_ = a.Append(ctx, "c1", "Jane Doe", "second")

	e1 := domain.TranscriptEntry{At: fixedTime, Speaker: "BOT", Text: "first"}
	e2 := domain.TranscriptEntry{At: fixedTime, Speaker: "Jane Doe", Text: "second"}
	want := e1.Render() + "\n" + e2.Render()
	if got := store.recs["c1"].ChatTranscript; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppend_UnknownConversation(t *testing.T) {
	store := &memConversations{recs: map[string]*domain.ConversationRecord{}}
	a := NewAppender(AppenderConfig{Store: store, Logger: testLogger()})

	err := a.Append(context.Background(), "missing", "BOT", "x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppend_UsesLocker(t *testing.T) {
	store := &memConversations{recs: map[string]*domain.ConversationRecord{"c1": {ConversationID: "c1"}}}
	locker := &countingLocker{}
	a := NewAppender(AppenderConfig{Store: store, Locker: locker, Logger: testLogger()})

	if err := a.Append(context.Background(), "c1", "BOT", "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locker.locked != 1 || locker.unlocked != 1 {
		t.Errorf("expected 1 lock/unlock, got %d/%d", locker.locked, locker.unlocked)
	}
	if locker.keys[0] != "transcript:c1" {
		t.Errorf("unexpected lock key %q", locker.keys[0])
	}
}

func TestJoin(t *testing.T) {
	e := domain.TranscriptEntry{At: fixedTime, Speaker: "BOT", Text: "b"}
	if got := Join("", e); got != e.Render() {
		t.Errorf("expected bare entry, got %q", got)
	}
	if got := Join("a", e); got != "a\n"+e.Render() {
		t.Errorf("expected joined entry, got %q", got)
	}
}
