package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by store writes addressing a missing record.
// Reads return a nil record and a nil error instead.
var ErrNotFound = errors.New("record not found")

// Binding maps an external auth id to a Teams conversation.
type Binding struct {
	AuthID         string `json:"auth_id" yaml:"auth_id"`
	ConversationID string `json:"con_id" yaml:"con_id"`
	Language       string `json:"language,omitempty" yaml:"language,omitempty"`
}

// CredentialBundle holds everything needed to talk to Teams and to the chat
// provider on behalf of one tenant.
type CredentialBundle struct {
	TeamsBaseURL      string `json:"teams_base_url" yaml:"teams_base_url"`
	TeamsClientID     string `json:"teams_client_id" yaml:"teams_client_id"`
	TeamsClientSecret string `json:"teams_client_secret" yaml:"teams_client_secret"`
	TeamsScope        string `json:"teams_scope" yaml:"teams_scope"`
	BotBusiness       string `json:"bot_business" yaml:"bot_business"`
	BotClientID       string `json:"bot_client_id" yaml:"bot_client_id"`
	BotChatAuth       string `json:"bot_chat_auth" yaml:"bot_chat_auth"`
}

// Tenant is a client organization record.
type Tenant struct {
	ClientID    string           `json:"client_id" yaml:"client_id"`
	Credentials CredentialBundle `json:"credentials" yaml:"credentials"`
	Translation bool             `json:"is_translation" yaml:"is_translation"`
}

// ConversationRecord is the per-conversation state kept for the Teams side.
type ConversationRecord struct {
	ConversationID string `json:"con_id" yaml:"con_id"`
	UserEmail      string `json:"user_email" yaml:"user_email"`
	LatestMessage  string `json:"latest_message" yaml:"latest_message"`
	ChatTranscript string `json:"chat_transcript" yaml:"chat_transcript"`
	AgentName      string `json:"agent_name" yaml:"agent_name"`
}

type BindingStore interface {
	Binding(ctx context.Context, authID string) (*Binding, error)
}

type TenantStore interface {
	Tenant(ctx context.Context, clientID string) (*Tenant, error)
}

type ConversationStore interface {
	Conversation(ctx context.Context, conversationID string) (*ConversationRecord, error)
	SetTranscript(ctx context.Context, conversationID, transcript string) error
	SetAgentName(ctx context.Context, conversationID, agentName string) error
}

// Store is the full capability set the router needs.
type Store interface {
	BindingStore
	TenantStore
	ConversationStore
	Close() error
}

// TranscriptFetcher retrieves the provider-side history of a finished
// conversation. The result is forwarded to ticketing untouched.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, creds *CredentialBundle, userName, conversationNo string) (json.RawMessage, error)
}
