package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEvent_Kind(t *testing.T) {
	cases := map[string]EventKind{
		"webhook_conversation_complete": KindResolution,
		"message":                       KindMessage,
		"bot_message_sent":              KindMessage,
		"chat_pinned":                   KindPinned,
		"typing":                        KindUnsupported,
		"":                              KindUnsupported,
		// resolution wins over message
		"message_webhook_conversation_complete": KindResolution,
	}
	for name, want := range cases {
		ev := Event{Body: EventBody{EventName: name}}
		if got := ev.Kind(); got != want {
			t.Errorf("%q: expected %s, got %s", name, want, got)
		}
	}
}

func TestEvent_Decode(t *testing.T) {
	raw := `{
		"client_id": "4",
		"itsm": "servicenow",
		"user": "auth-1",
		"body": {
			"event_name": "webhook_conversation_complete",
			"agent": {"name": "jane", "is_automated": false},
			"user": {"user_name": "u-1"},
			"data": {"conversation_no": 42},
			"message": {"body": {"text": "hi", "type": "BUTTON", "data": {"items": [
				{"type": "app_action", "uri": "link", "actionable_text": "Doc", "payload": {"url": "https://x/a.pdf"}}
			]}}}
		}
	}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.AuthID != "auth-1" || ev.ClientID != "4" || ev.ITSM != "servicenow" {
		t.Errorf("unexpected envelope %+v", ev)
	}
	if ev.Body.Data.ConversationNo != "42" {
		t.Errorf("expected numeric conversation_no as 42, got %q", ev.Body.Data.ConversationNo)
	}
	if ev.Body.Agent.Name == nil || *ev.Body.Agent.Name != "jane" {
		t.Errorf("unexpected agent %+v", ev.Body.Agent)
	}
	if string(ev.Body.Agent.IsAutomated) != "false" {
		t.Errorf("expected is_automated false, got %s", ev.Body.Agent.IsAutomated)
	}
	b, ok := ev.Body.Message.Body.Data.Items[0].Button().(LinkButton)
	if !ok || b.FileType != "pdf" || b.Label != "Doc" {
		t.Errorf("unexpected button %+v", ev.Body.Message.Body.Data.Items[0].Button())
	}
}

func TestFlexString(t *testing.T) {
	cases := map[string]FlexString{`"abc"`: "abc", `17`: "17", `null`: "", `1.5`: "1.5"}
	for in, want := range cases {
		var f FlexString
		if err := json.Unmarshal([]byte(in), &f); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if f != want {
			t.Errorf("%s: expected %q, got %q", in, want, f)
		}
	}
	var f FlexString
	if err := json.Unmarshal([]byte(`{}`), &f); err == nil {
		t.Error("expected error for object")
	}
}

func TestEvent_WithTextDoesNotMutate(t *testing.T) {
	ev := Event{Body: EventBody{Message: MessageEnv{Body: MessageBody{
		Text: "a|1",
		Data: MessageData{Intents: []string{"x"}},
	}}}}
	cp := ev.WithText("a")
	cp.Body.Message.Body.Data.Intents[0] = "y"

	if ev.Text() != "a|1" || ev.Body.Message.Body.Data.Intents[0] != "x" {
		t.Errorf("original event modified: %+v", ev)
	}
	if cp.Text() != "a" {
		t.Errorf("expected copy text a, got %q", cp.Text())
	}
}

func TestItem_Button(t *testing.T) {
	link := Item{Type: "app_action", URI: "link", ActionableText: "Site", Payload: ItemPayload{URL: "https://x.com/page"}}
	if b, ok := link.Button().(LinkButton); !ok || b.FileType != "" {
		t.Errorf("expected plain link, got %+v", link.Button())
	}
	text := Item{Type: "TEXT_ONLY", ActionableText: "Yes", Payload: ItemPayload{Message: "yes"}}
	if b, ok := text.Button().(TextButton); !ok || b.Reply != "yes" {
		t.Errorf("expected text button, got %+v", text.Button())
	}
	other := Item{Type: "app_action", URI: "phone"}
	if _, ok := other.Button().(UnknownButton); !ok {
		t.Errorf("expected unknown button, got %+v", other.Button())
	}
}

func TestItem_Image(t *testing.T) {
	img := Item{}.Image()
	if img.URL != "NA" || img.Title != "Attachment File" || img.OK {
		t.Errorf("unexpected defaults %+v", img)
	}
	u, title := "https://cdn/x.jpeg?sig=abc", "Scan"
	img = Item{Title: &title, Thumbnail: ItemThumbnail{Image: &u}}.Image()
	if !img.OK || img.Title != "Scan" {
		t.Errorf("expected jpeg to be accepted, got %+v", img)
	}
}

func TestDocumentType(t *testing.T) {
	cases := map[string]string{
		"https://x/a.pdf":        "pdf",
		"https://x/a.PDF#page=2": "pdf",
		"https://x/b.docx?dl=1":  "docx",
		"https://x/c.doc":        "",
		"https://x/pdf":          "",
	}
	for in, want := range cases {
		if got := DocumentType(in); got != want {
			t.Errorf("%s: expected %q, got %q", in, want, got)
		}
	}
}

func TestTranscriptEntry_Render(t *testing.T) {
	e := TranscriptEntry{At: time.Date(2023, 12, 1, 9, 3, 4, 0, time.UTC), Speaker: "BOT", Text: "hi"}
	if got := e.Render(); got != "09:03:04 01-12-2023 [BOT]: hi" {
		t.Errorf("unexpected render %q", got)
	}
}

func TestAgent_MalformedFields(t *testing.T) {
	tests := []struct {
		name      string
		agent     string
		wantName  string
		wantNil   bool
		automated string
	}{
		{"string flag", `{"name": "jane", "is_automated": "true"}`, "jane", false, `"true"`},
		{"numeric name", `{"name": 42, "is_automated": true}`, "", true, "true"},
		{"null name", `{"name": null}`, "", true, ""},
		{"not an object", `"bot"`, "", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"user": "auth-1", "body": {"event_name": "message", "agent": ` + tt.agent + `, "user": {"user_name": "u-1"}}}`
			var ev Event
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				t.Fatalf("expected event to decode, got %v", err)
			}
			if ev.AuthID != "auth-1" || ev.Body.User.UserName != "u-1" {
				t.Errorf("expected rest of event intact, got %+v", ev)
			}
			a := ev.Body.Agent
			if tt.wantNil && a.Name != nil {
				t.Errorf("expected nil name, got %q", *a.Name)
			}
			if !tt.wantNil && (a.Name == nil || *a.Name != tt.wantName) {
				t.Errorf("expected name %q, got %v", tt.wantName, a.Name)
			}
			if string(a.IsAutomated) != tt.automated {
				t.Errorf("expected is_automated %q, got %q", tt.automated, a.IsAutomated)
			}
		})
	}
}

func TestTicketEvent_JSON(t *testing.T) {
	ev := TicketEvent{ITSM: "x", Payload: ResolutionTicket{Event: TicketResolution, Source: TicketSource, ChatHistory: json.RawMessage(`{"a":1}`)}}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	_ = json.Unmarshal(b, &got)
	p := got["payload"].(map[string]any)
	if p["event"] != "TICKET_RESOLUTION" || p["source"] != "teams" || p["is_automated"] != nil {
		t.Errorf("unexpected payload %v", p)
	}
	if h, ok := p["chat_history"].(map[string]any); !ok || h["a"] != 1.0 {
		t.Errorf("expected embedded history, got %v", p["chat_history"])
	}
}
