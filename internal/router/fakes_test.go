package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/transcript"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

const stamp = "14:05:07 09-03-2024"

type fakeStore struct {
	mu             sync.Mutex
	bindings       map[string]*domain.Binding
	tenants        map[string]*domain.Tenant
	convs          map[string]*domain.ConversationRecord
	transcriptSets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bindings: map[string]*domain.Binding{
			"auth-1": {AuthID: "auth-1", ConversationID: "conv-1"},
		},
		tenants: map[string]*domain.Tenant{
			"7": {ClientID: "7", Credentials: domain.CredentialBundle{TeamsBaseURL: "https://smba"}},
			"4": {ClientID: "4", Credentials: domain.CredentialBundle{TeamsBaseURL: "https://smba"}},
		},
		convs: map[string]*domain.ConversationRecord{
			"conv-1": {ConversationID: "conv-1", UserEmail: "user@example.com", LatestMessage: "vpn not working"},
		},
	}
}

func (s *fakeStore) Binding(_ context.Context, authID string) (*domain.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[authID], nil
}

func (s *fakeStore) Tenant(_ context.Context, clientID string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[clientID], nil
}

func (s *fakeStore) Conversation(_ context.Context, id string) (*domain.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) SetTranscript(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.convs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.transcriptSets++
	r.ChatTranscript = text
	return nil
}

func (s *fakeStore) SetAgentName(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.convs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.AgentName = name
	return nil
}

func (s *fakeStore) transcript(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[id].ChatTranscript
}

type sent struct {
	shape   string
	text    string
	actions []domain.Action
	image   domain.ImageRef
	size    int64
}

type fakeSender struct {
	calls []sent
	err   error
}

func (f *fakeSender) SendText(_ context.Context, _ *domain.CredentialBundle, _ string, text string) (string, error) {
	f.calls = append(f.calls, sent{shape: "text", text: text})
	return "act-1", f.err
}

func (f *fakeSender) SendButtons(_ context.Context, _ *domain.CredentialBundle, _ string, text string, actions []domain.Action) (string, error) {
	f.calls = append(f.calls, sent{shape: "hero", text: text, actions: actions})
	return "act-2", f.err
}

func (f *fakeSender) SendImage(_ context.Context, _ *domain.CredentialBundle, _ string, img domain.ImageRef) (string, error) {
	f.calls = append(f.calls, sent{shape: "image", image: img})
	return "act-3", f.err
}

func (f *fakeSender) SendFileConsent(_ context.Context, _ *domain.CredentialBundle, _ string, name string, size int64) (string, error) {
	f.calls = append(f.calls, sent{shape: "file_consent", image: domain.ImageRef{Name: name}, size: size})
	return "act-4", f.err
}

type fakeTranslator struct{ calls int }

func (f *fakeTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	f.calls++
	return "T(" + text + ")", nil
}

type fakeSearcher struct {
	answer, link string
	err          error
	queries      []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, string, error) {
	f.queries = append(f.queries, query)
	return f.answer, f.link, f.err
}

type fetchCall struct{ userName, conversationNo string }

type fakeFetcher struct {
	calls   []fetchCall
	history json.RawMessage
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *domain.CredentialBundle, userName, conversationNo string) (json.RawMessage, error) {
	f.calls = append(f.calls, fetchCall{userName, conversationNo})
	return f.history, f.err
}

type fakeTickets struct{ events []domain.TicketEvent }

func (f *fakeTickets) Dispatch(ev domain.TicketEvent) { f.events = append(f.events, ev) }

func (f *fakeTickets) attachments() []domain.AttachmentTicket {
	var out []domain.AttachmentTicket
	for _, ev := range f.events {
		if a, ok := ev.Payload.(domain.AttachmentTicket); ok {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeTickets) resolutions() []domain.ResolutionTicket {
	var out []domain.ResolutionTicket
	for _, ev := range f.events {
		if r, ok := ev.Payload.(domain.ResolutionTicket); ok {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	router     *Router
	store      *fakeStore
	sender     *fakeSender
	translator *fakeTranslator
	searcher   *fakeSearcher
	fetcher    *fakeFetcher
	tickets    *fakeTickets
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		store:      newFakeStore(),
		sender:     &fakeSender{},
		translator: &fakeTranslator{},
		searcher:   &fakeSearcher{answer: "Restart the VPN client."},
		fetcher:    &fakeFetcher{history: json.RawMessage(`[{"from":"user","text":"hi"}]`)},
		tickets:    &fakeTickets{},
	}
	cfg := Config{
		Store:      h.store,
		Sender:     h.sender,
		Translator: h.translator,
		Searcher:   h.searcher,
		Fetcher:    h.fetcher,
		Tickets:    h.tickets,
		Transcripts: transcript.NewAppender(transcript.AppenderConfig{
			Store:  h.store,
			Now:    func() time.Time { return fixedTime },
			Logger: testLogger(),
		}),
		Logger: testLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.router = New(cfg)
	return h
}

func (h *harness) dispatch(t *testing.T, ev domain.Event) {
	t.Helper()
	if err := h.router.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func messageEvent(text, typ string) domain.Event {
	return domain.Event{
		ClientID: "7",
		ITSM:     "servicenow",
		AuthID:   "auth-1",
		Body: domain.EventBody{
			EventName: "message",
			Message:   domain.MessageEnv{Body: domain.MessageBody{Text: text, Type: typ}},
		},
	}
}

var errSend = errors.New("teams unavailable")
