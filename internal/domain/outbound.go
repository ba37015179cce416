package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoCredentials is returned by senders when the tenant has no credential bundle.
var ErrNoCredentials = errors.New("no teams credentials for tenant")

// ActionKind is the Bot Framework card action type.
type ActionKind string

const (
	ActionOpenURL    ActionKind = "openUrl"
	ActionQuickReply ActionKind = "imBack"
)

// Action is one button of a hero card.
type Action struct {
	Kind  ActionKind `json:"type"`
	Label string     `json:"title"`
	Value string     `json:"value"`
}

// ImageRef is an inline image attachment.
type ImageRef struct {
	URL  string
	Name string
}

// NormalizedMessage is the provider-independent outbound unit. Actions keep
// the order they were assembled in; that order is visible to the user. A
// message with an Image is sent as that image alone.
type NormalizedMessage struct {
	Text    string
	Actions []Action
	Image   *ImageRef
}

// Sender delivers activities into a Teams conversation. Each call is a single
// best-effort request; the returned string is the activity id.
type Sender interface {
	SendText(ctx context.Context, creds *CredentialBundle, conversationID, text string) (string, error)
	SendButtons(ctx context.Context, creds *CredentialBundle, conversationID, text string, actions []Action) (string, error)
	SendImage(ctx context.Context, creds *CredentialBundle, conversationID string, img ImageRef) (string, error)
	SendFileConsent(ctx context.Context, creds *CredentialBundle, conversationID, name string, sizeInBytes int64) (string, error)
}

// Translator rewrites text into the language of the given user.
type Translator interface {
	Translate(ctx context.Context, text, authID string) (string, error)
}

// Searcher answers a free-text query. Link is empty when the hit has no URL.
type Searcher interface {
	Search(ctx context.Context, query string) (answer, link string, err error)
}

// TranscriptEntry is one attributed line of a conversation transcript.
type TranscriptEntry struct {
	At      time.Time
	Speaker string
	Text    string
}

// TranscriptTimeLayout is the timestamp layout of a rendered entry.
const TranscriptTimeLayout = "15:04:05 02-01-2006"

// Render formats the entry as "HH:MM:SS DD-MM-YYYY [Speaker]: Text".
func (e TranscriptEntry) Render() string {
	return fmt.Sprintf("%s [%s]: %s", e.At.Format(TranscriptTimeLayout), e.Speaker, e.Text)
}
