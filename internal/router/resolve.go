package router

import (
	"context"
	"log/slog"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

// resolve looks up the conversation bound to the event's user and the
// tenant's credentials. It reports false when the binding is unknown, which
// aborts the event.
func (r *Router) resolve(ctx context.Context, ev domain.Event, log *slog.Logger) (*turn, bool) {
	conversationID, ok := r.ResolveConversation(ctx, ev.AuthID, log)
	if !ok {
		return nil, false
	}
	tenant := r.lookupTenant(ctx, ev.ClientID, log)

	t := &turn{
		authID:         ev.AuthID,
		clientID:       ev.ClientID,
		conversationID: conversationID,
		log:            log.With("conversation", conversationID),
	}
	if tenant != nil {
		creds := tenant.Credentials
		t.creds = &creds
		t.translate = tenant.Translation
	}
	return t, true
}

// ResolveConversation maps an auth id to its Teams conversation id.
func (r *Router) ResolveConversation(ctx context.Context, authID string, log *slog.Logger) (string, bool) {
	b, err := r.store.Binding(ctx, authID)
	if err != nil {
		log.Error("conversation lookup failed", "error", err)
		return "", false
	}
	if b == nil || b.ConversationID == "" {
		log.Error("couldn't find the conversation id for the given auth id")
		return "", false
	}
	return b.ConversationID, true
}

// ResolveCredentials returns the tenant's credential bundle, or nil.
func (r *Router) ResolveCredentials(ctx context.Context, clientID string, log *slog.Logger) *domain.CredentialBundle {
	t := r.lookupTenant(ctx, clientID, log)
	if t == nil {
		return nil
	}
	creds := t.Credentials
	return &creds
}

// TranslationEnabled defaults to false when the tenant is unknown.
func (r *Router) TranslationEnabled(ctx context.Context, clientID string, log *slog.Logger) bool {
	t := r.lookupTenant(ctx, clientID, log)
	return t != nil && t.Translation
}

func (r *Router) lookupTenant(ctx context.Context, clientID string, log *slog.Logger) *domain.Tenant {
	t, err := r.store.Tenant(ctx, clientID)
	if err != nil {
		log.Error("tenant lookup failed", "error", err)
		return nil
	}
	if t == nil {
		log.Error("creds not found for client")
	}
	return t
}

// conversation loads the conversation record. A missing record yields an
// empty one so callers can fall back to empty email and query.
func (r *Router) conversation(ctx context.Context, t *turn) domain.ConversationRecord {
	rec, err := r.store.Conversation(ctx, t.conversationID)
	if err != nil {
		t.log.Error("conversation record lookup failed", "error", err)
		return domain.ConversationRecord{ConversationID: t.conversationID}
	}
	if rec == nil {
		t.log.Warn("conversation record not found")
		return domain.ConversationRecord{ConversationID: t.conversationID}
	}
	return *rec
}
