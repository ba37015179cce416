package domain

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// EventKind is the handling path an inbound event is routed to.
type EventKind string

const (
	KindMessage     EventKind = "message"
	KindResolution  EventKind = "resolution"
	KindPinned      EventKind = "pinned"
	KindUnsupported EventKind = "unsupported"
)

// Event names as sent by the chat provider. Matching is by substring.
const (
	EventNameResolution = "webhook_conversation_complete"
	EventNameMessage    = "message"
	EventNamePinned     = "chat_pinned"
)

// Event is a normalized chat-provider notification addressed to a Teams user.
// ID is assigned at ingress and follows the event through the queue.
type Event struct {
	ID       string    `json:"-"`
	ClientID string    `json:"client_id"`
	ITSM     string    `json:"itsm"`
	AuthID   string    `json:"user"`
	Body     EventBody `json:"body"`
}

type EventBody struct {
	EventName string     `json:"event_name"`
	Message   MessageEnv `json:"message"`
	Agent     Agent      `json:"agent"`
	User      ChatUser   `json:"user"`
	Data      EventData  `json:"data"`
}

type MessageEnv struct {
	Body MessageBody `json:"body"`
}

type MessageBody struct {
	Text string      `json:"text"`
	Type string      `json:"type"`
	Data MessageData `json:"data"`
}

type MessageData struct {
	Intents []string `json:"intents,omitempty"`
	Items   []Item   `json:"items,omitempty"`
}

// Agent describes who produced the message. Name is nil when the provider
// omits it or sends something other than a string, which is distinct from an
// empty name. IsAutomated is kept verbatim for the resolution ticket.
type Agent struct {
	Name        *string         `json:"name"`
	IsAutomated json.RawMessage `json:"is_automated"`
}

// UnmarshalJSON never fails on field types: a malformed agent decodes to the
// zero value so the rest of the event is still handled.
func (a *Agent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        json.RawMessage `json:"name"`
		IsAutomated json.RawMessage `json:"is_automated"`
	}
	*a = Agent{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var name string
	if len(raw.Name) > 0 && raw.Name[0] == '"' && json.Unmarshal(raw.Name, &name) == nil {
		a.Name = &name
	}
	if len(raw.IsAutomated) > 0 && string(raw.IsAutomated) != "null" {
		a.IsAutomated = raw.IsAutomated
	}
	return nil
}

type ChatUser struct {
	UserName string `json:"user_name"`
}

type EventData struct {
	ConversationNo FlexString `json:"conversation_no"`
}

// Kind classifies the event. Resolution is checked first, then message,
// then pinned; the first match wins.
func (e Event) Kind() EventKind {
	name := e.Body.EventName
	switch {
	case strings.Contains(name, EventNameResolution):
		return KindResolution
	case strings.Contains(name, EventNameMessage):
		return KindMessage
	case strings.Contains(name, EventNamePinned):
		return KindPinned
	default:
		return KindUnsupported
	}
}

// Text returns the message body text.
func (e Event) Text() string { return e.Body.Message.Body.Text }

// WithText returns a copy of the event carrying a different message text.
// The receiver is left untouched.
func (e Event) WithText(text string) Event {
	out := e
	out.Body.Message.Body.Data.Intents = append([]string(nil), e.Body.Message.Body.Data.Intents...)
	out.Body.Message.Body.Data.Items = append([]Item(nil), e.Body.Message.Body.Data.Items...)
	out.Body.Message.Body.Text = text
	return out
}

// FlexString is a string that also accepts a bare JSON number, since
// conversation numbers arrive both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

// Item is one entry of a BUTTON or CAROUSEL message. The provider reuses the
// same list for both shapes, so every field is optional here and the typed
// views below decide what the entry means.
type Item struct {
	Type           string        `json:"type,omitempty"`
	URI            string        `json:"uri,omitempty"`
	ActionableText string        `json:"actionable_text,omitempty"`
	Payload        ItemPayload   `json:"payload"`
	Title          *string       `json:"title,omitempty"`
	Thumbnail      ItemThumbnail `json:"thumbnail"`
}

type ItemPayload struct {
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

type ItemThumbnail struct {
	Image *string `json:"image,omitempty"`
}

// ButtonItem is the tagged view of a BUTTON item.
type ButtonItem interface {
	buttonItem()
}

// LinkButton is an app_action/link item. FileType is "pdf" or "docx" when
// the URL points at a supported document, empty otherwise.
type LinkButton struct {
	Label    string
	URL      string
	FileType string
}

// TextButton is a text_only item answered with a canned reply.
type TextButton struct {
	Label string
	Reply string
}

// UnknownButton carries an unrecognized (type, uri) pair.
type UnknownButton struct {
	Type string
	URI  string
}

func (LinkButton) buttonItem()    {}
func (TextButton) buttonItem()    {}
func (UnknownButton) buttonItem() {}

// Button classifies the item by its (type, uri) pair, case-insensitively.
func (it Item) Button() ButtonItem {
	typ := strings.ToLower(it.Type)
	uri := strings.ToLower(it.URI)
	switch {
	case typ == "app_action" && uri == "link":
		return LinkButton{
			Label:    it.ActionableText,
			URL:      it.Payload.URL,
			FileType: DocumentType(it.Payload.URL),
		}
	case typ == "text_only":
		return TextButton{Label: it.ActionableText, Reply: it.Payload.Message}
	default:
		return UnknownButton{Type: it.Type, URI: it.URI}
	}
}

const defaultAttachmentTitle = "Attachment File"

// CarouselImage is the typed view of a CAROUSEL item.
type CarouselImage struct {
	URL   string
	Title string
	// OK is false when the thumbnail is missing or not a png/jpeg/jpg.
	OK bool
}

// Image returns the carousel view of the item.
func (it Item) Image() CarouselImage {
	img := CarouselImage{URL: "NA", Title: defaultAttachmentTitle}
	if it.Thumbnail.Image != nil {
		img.URL = *it.Thumbnail.Image
	}
	if it.Title != nil {
		img.Title = *it.Title
	}
	switch urlExt(img.URL) {
	case ".png", ".jpeg", ".jpg":
		img.OK = true
	}
	return img
}

// DocumentType returns "pdf" or "docx" for document links, "" otherwise.
func DocumentType(rawURL string) string {
	switch urlExt(rawURL) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	}
	return ""
}

// urlExt returns the lower-cased extension of the URL path, ignoring any
// query string or fragment.
func urlExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
