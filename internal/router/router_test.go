package router

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func TestDispatch_PlainText(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, messageEvent("Hello", "TEXT"))

	if len(h.sender.calls) != 1 {
		t.Fatalf("expected 1 send, got %d", len(h.sender.calls))
	}
	if c := h.sender.calls[0]; c.shape != "text" || c.text != "Hello" {
		t.Errorf("expected text send of Hello, got %+v", c)
	}
	if got, want := h.store.transcript("conv-1"), stamp+" [BOT]: Hello"; got != want {
		t.Errorf("expected transcript %q, got %q", want, got)
	}
	if h.translator.calls != 0 {
		t.Errorf("expected no translation, got %d calls", h.translator.calls)
	}
}

func TestDispatch_UnknownAuthID(t *testing.T) {
	for _, name := range []string{"message", "webhook_conversation_complete", "chat_pinned"} {
		h := newHarness(t)
		ev := messageEvent("Hello", "TEXT")
		ev.AuthID = "stranger"
		ev.Body.EventName = name
		h.dispatch(t, ev)

		if len(h.sender.calls) != 0 || h.store.transcriptSets != 0 || len(h.tickets.events) != 0 {
			t.Errorf("%s: expected no side effects, got %d sends, %d transcript writes, %d tickets",
				name, len(h.sender.calls), h.store.transcriptSets, len(h.tickets.events))
		}
	}
}

func TestDispatch_UnsupportedEvent(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("Hello", "TEXT")
	ev.Body.EventName = "user_typing"
	h.dispatch(t, ev)

	if len(h.sender.calls) != 0 || h.store.transcriptSets != 0 {
		t.Errorf("expected no side effects, got %d sends", len(h.sender.calls))
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.router.Dispatch(ctx, messageEvent("Hello", "TEXT")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(h.sender.calls) != 0 {
		t.Errorf("expected no sends, got %d", len(h.sender.calls))
	}
}

func TestDispatch_Disambiguation(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("Which one did you mean?", "TEXT")
	ev.Body.Message.Body.Data.Intents = []string{"Reset Password", "Unlock Account"}
	h.dispatch(t, ev)

	if len(h.searcher.queries) != 1 || h.searcher.queries[0] != "vpn not working" {
		t.Fatalf("expected search on latest message, got %v", h.searcher.queries)
	}
	if len(h.sender.calls) != 1 || h.sender.calls[0].shape != "hero" {
		t.Fatalf("expected one hero card, got %+v", h.sender.calls)
	}
	c := h.sender.calls[0]
	if c.text != "Restart the VPN client." {
		t.Errorf("expected search answer as text, got %q", c.text)
	}
	want := []domain.Action{
		{Kind: domain.ActionQuickReply, Label: "Talk to an Agent 💬", Value: "Talk to an Agent"},
		{Kind: domain.ActionQuickReply, Label: "Reset Password 💬", Value: "Reset Password"},
		{Kind: domain.ActionQuickReply, Label: "Unlock Account 💬", Value: "Unlock Account"},
	}
	assertActions(t, c.actions, want)
	if got := h.store.transcript("conv-1"); got != stamp+" [BOT]: Restart the VPN client." {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestDispatch_FallbackMarkerWithLink(t *testing.T) {
	h := newHarness(t)
	h.searcher.link = "https://kb/vpn"
	h.dispatch(t, messageEvent("BOT BREAK", "TEXT"))

	want := []domain.Action{
		{Kind: domain.ActionOpenURL, Label: "Visit Link 🔗", Value: "https://kb/vpn"},
		{Kind: domain.ActionQuickReply, Label: "Talk to an Agent 💬", Value: "Talk to an Agent"},
	}
	assertActions(t, h.sender.calls[0].actions, want)
}

func TestDispatch_SearchFailure(t *testing.T) {
	h := newHarness(t)
	h.searcher.err = errors.New("index unavailable")
	h.searcher.link = "https://ignored"
	h.dispatch(t, messageEvent("BOT BREAK", "TEXT"))

	c := h.sender.calls[0]
	if c.text != DefaultRules().NoResultMessage {
		t.Errorf("expected no-result message, got %q", c.text)
	}
	if len(c.actions) != 1 || c.actions[0].Label != "Talk to an Agent 💬" {
		t.Errorf("expected only the agent action, got %+v", c.actions)
	}
}

func TestDispatch_Buttons(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("", "BUTTON")
	ev.Body.Message.Body.Data.Items = []domain.Item{
		{Type: "APP_ACTION", URI: "Link", ActionableText: "Policy", Payload: domain.ItemPayload{URL: "https://x/policy.pdf"}},
		{Type: "app_action", URI: "link", ActionableText: "Portal", Payload: domain.ItemPayload{URL: "https://portal.example.com"}},
		{Type: "text_only", ActionableText: "Yes", Payload: domain.ItemPayload{Message: "yes please"}},
		{Type: "app_action", URI: "link", ActionableText: "Form", Payload: domain.ItemPayload{URL: "https://x/form.DOCX?v=2"}},
		{Type: "phone", URI: "tel"},
	}
	h.dispatch(t, ev)

	if len(h.sender.calls) != 1 {
		t.Fatalf("expected one send, got %d", len(h.sender.calls))
	}
	c := h.sender.calls[0]
	if c.shape != "hero" || c.text != DownloadPrompt {
		t.Errorf("expected hero card with download prompt, got %+v", c)
	}
	assertActions(t, c.actions, []domain.Action{
		{Kind: domain.ActionOpenURL, Label: "Policy 📎", Value: "https://x/policy.pdf"},
		{Kind: domain.ActionOpenURL, Label: "Portal 🔗", Value: "https://portal.example.com"},
		{Kind: domain.ActionQuickReply, Label: "Yes 💬", Value: "yes please"},
		{Kind: domain.ActionOpenURL, Label: "Form 📎", Value: "https://x/form.DOCX?v=2"},
	})

	att := h.tickets.attachments()
	if len(att) != 2 {
		t.Fatalf("expected 2 attachment tickets, got %d", len(att))
	}
	if att[0].FileType != "pdf" || att[1].FileType != "docx" {
		t.Errorf("expected pdf then docx, got %s, %s", att[0].FileType, att[1].FileType)
	}
	a := att[0]
	if a.Event != domain.TicketAttachment || a.Source != "teams" || !a.FromHaptik || a.Email != "user@example.com" ||
		a.FileName != "Policy" || a.FileLink != "https://x/policy.pdf" || a.AuthID != "auth-1" || a.ClientID != "7" || a.ConversationID != "conv-1" {
		t.Errorf("unexpected attachment ticket %+v", a)
	}
	if h.tickets.events[0].ITSM != "servicenow" {
		t.Errorf("expected itsm servicenow, got %q", h.tickets.events[0].ITSM)
	}

	lines := strings.Split(h.store.transcript("conv-1"), "\n")
	want := []string{
		stamp + " [BOT]: ATTACHMENT",
		stamp + " [BOT]: ATTACHMENT",
		stamp + " [BOT]: " + DownloadPrompt,
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected transcript %q, got %q", want, lines)
	}
}

func TestDispatch_ButtonsKeepText(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("Pick one", "BUTTON")
	ev.Body.Message.Body.Data.Items = []domain.Item{{Type: "text_only", ActionableText: "A", Payload: domain.ItemPayload{Message: "a"}}}
	h.dispatch(t, ev)

	if h.sender.calls[0].text != "Pick one" {
		t.Errorf("expected body text, got %q", h.sender.calls[0].text)
	}
	if len(h.tickets.events) != 0 {
		t.Errorf("expected no tickets, got %d", len(h.tickets.events))
	}
}

func TestDispatch_ButtonsWithoutRecognisedItems(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("Call us", "BUTTON")
	ev.Body.Message.Body.Data.Items = []domain.Item{{Type: "phone", URI: "tel"}}
	h.dispatch(t, ev)

	if c := h.sender.calls[0]; c.shape != "text" || c.text != "Call us" {
		t.Errorf("expected plain text when no actions, got %+v", c)
	}
}

func TestDispatch_Carousel(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("", "CAROUSEL")
	ev.Body.Message.Body.Data.Items = []domain.Item{
		{Title: strPtr("Photo"), Thumbnail: domain.ItemThumbnail{Image: strPtr("http://x/a.png")}},
		{Title: strPtr("Doc"), Thumbnail: domain.ItemThumbnail{Image: strPtr("http://x/b.pdf")}},
		{Thumbnail: domain.ItemThumbnail{Image: strPtr("http://x/c.JPG")}},
		{Title: strPtr("Empty")},
	}
	h.dispatch(t, ev)

	if len(h.sender.calls) != 2 {
		t.Fatalf("expected 2 image sends, got %+v", h.sender.calls)
	}
	if c := h.sender.calls[0]; c.shape != "image" || c.image.Name != "Photo.png" || c.image.URL != "http://x/a.png" {
		t.Errorf("unexpected first image %+v", c)
	}
	if c := h.sender.calls[1]; c.image.Name != "Attachment File.png" {
		t.Errorf("expected default title, got %q", c.image.Name)
	}

	att := h.tickets.attachments()
	if len(att) != 2 {
		t.Fatalf("expected 2 attachment tickets, got %d", len(att))
	}
	if att[0].FileType != "png" || att[0].FileName != "Photo.png" || att[0].FileLink != "http://x/a.png" {
		t.Errorf("unexpected ticket %+v", att[0])
	}
	if got := h.store.transcript("conv-1"); got != stamp+" [BOT]: IMAGE\n"+stamp+" [BOT]: IMAGE" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestDispatch_CarouselFileConsent(t *testing.T) {
	var probed string
	h := newHarness(t, func(c *Config) {
		c.FileConsent = true
		c.Probe = func(_ context.Context, url string) (int64, error) {
			probed = url
			return 2048, nil
		}
	})
	ev := messageEvent("", "CAROUSEL")
	ev.Body.Message.Body.Data.Items = []domain.Item{
		{Title: strPtr("Photo"), Thumbnail: domain.ItemThumbnail{Image: strPtr("http://x/a.png")}},
	}
	h.dispatch(t, ev)

	if probed != "http://x/a.png" {
		t.Errorf("expected probe of image url, got %q", probed)
	}
	c := h.sender.calls[0]
	if c.shape != "file_consent" || c.image.Name != "Photo.png" || c.size != 2048 {
		t.Errorf("unexpected send %+v", c)
	}
}

func TestDispatch_CarouselFileConsentProbeFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.FileConsent = true
		c.Probe = func(context.Context, string) (int64, error) { return 0, errors.New("no content-length") }
	})
	ev := messageEvent("", "CAROUSEL")
	ev.Body.Message.Body.Data.Items = []domain.Item{{Thumbnail: domain.ItemThumbnail{Image: strPtr("http://x/a.png")}}}
	h.dispatch(t, ev)

	if h.sender.calls[0].shape != "image" {
		t.Errorf("expected inline image fallback, got %s", h.sender.calls[0].shape)
	}
}

func TestDispatch_TranslationAppliedOnce(t *testing.T) {
	h := newHarness(t)
	h.store.tenants["7"].Translation = true
	h.dispatch(t, messageEvent("Hello", "TEXT"))

	if h.translator.calls != 1 {
		t.Errorf("expected 1 translation, got %d", h.translator.calls)
	}
	if h.sender.calls[0].text != "T(Hello)" {
		t.Errorf("expected translated text, got %q", h.sender.calls[0].text)
	}
	if got := h.store.transcript("conv-1"); got != stamp+" [BOT]: T(Hello)" {
		t.Errorf("expected translated transcript, got %q", got)
	}
}

func TestDispatch_AgentSpeakerTitleCased(t *testing.T) {
	h := newHarness(t)
	ev := messageEvent("On it", "TEXT")
	ev.Body.Agent.Name = strPtr("jane DOE")
	h.dispatch(t, ev)

	if got := h.store.transcript("conv-1"); got != stamp+" [Jane Doe]: On it" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestDispatch_NoCredentials(t *testing.T) {
	h := newHarness(t)
	h.store.tenants["7"] = nil
	h.dispatch(t, messageEvent("Hello", "TEXT"))

	if len(h.sender.calls) != 0 {
		t.Errorf("expected no send attempts without credentials, got %d", len(h.sender.calls))
	}
	if got := h.store.transcript("conv-1"); got != stamp+" [BOT]: Hello" {
		t.Errorf("expected transcript despite missing credentials, got %q", got)
	}
}

func TestDispatch_SendFailureStillRecordsTranscript(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errSend
	h.dispatch(t, messageEvent("Hello", "TEXT"))

	if h.store.transcriptSets != 1 {
		t.Errorf("expected 1 transcript write, got %d", h.store.transcriptSets)
	}
}

func TestDispatch_TranscriptOrder(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, messageEvent("first", "TEXT"))
	h.dispatch(t, messageEvent("second", "TEXT"))

	want := stamp + " [BOT]: first\n" + stamp + " [BOT]: second"
	if got := h.store.transcript("conv-1"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func assertActions(t *testing.T, got, want []domain.Action) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d actions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDispatch_LogsIngressEventID(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, func(c *Config) {
		c.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	ev := resolutionEvent()
	ev.ID = "evt-123"
	h.dispatch(t, ev)

	out := strings.TrimSpace(buf.String())
	if out == "" {
		t.Fatal("expected dispatch log lines")
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "event_id=evt-123") {
			t.Errorf("expected ingress event id on every line, got %q", line)
		}
	}
}

func TestDispatch_MintsEventIDWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, func(c *Config) {
		c.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	h.dispatch(t, resolutionEvent())

	if strings.Contains(buf.String(), "event_id= ") || !strings.Contains(buf.String(), "event_id=") {
		t.Errorf("expected a generated event id, got %q", buf.String())
	}
}

func TestDeliver_ImageTakesPrecedence(t *testing.T) {
	h := newHarness(t)
	tr := &turn{
		authID:         "auth-1",
		clientID:       "7",
		conversationID: "conv-1",
		creds:          &domain.CredentialBundle{TeamsBaseURL: "https://smba"},
		log:            testLogger(),
	}
	msg := domain.NormalizedMessage{
		Text:    "caption",
		Actions: []domain.Action{{Kind: domain.ActionOpenURL, Label: "Open", Value: "http://x"}},
		Image:   &domain.ImageRef{URL: "http://x/a.png", Name: "Photo.png"},
	}
	h.router.deliver(context.Background(), tr, msg, "BOT")

	if len(h.sender.calls) != 1 {
		t.Fatalf("expected a single send, got %+v", h.sender.calls)
	}
	if c := h.sender.calls[0]; c.shape != "image" || c.image != *msg.Image {
		t.Errorf("expected image send of %+v, got %+v", *msg.Image, c)
	}
	if got := h.store.transcript("conv-1"); got != stamp+" [BOT]: "+ImageMarker {
		t.Errorf("expected image marker on transcript, got %q", got)
	}
}
