package router

import (
	"context"
	"fmt"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

// handleResolution posts the completion notice and always raises a
// resolution ticket carrying the provider's chat history.
func (r *Router) handleResolution(ctx context.Context, t *turn, ev domain.Event, conversationNo string) {
	history, err := r.fetcher.Fetch(ctx, t.creds, ev.Body.User.UserName, conversationNo)
	if err != nil {
		t.log.Error("chat history fetch failed", "conversation_no", conversationNo, "error", err)
		history = nil
	}

	speaker := r.speaker(ev, DefaultBotName)
	notice := CompletionNotice
	if t.translate {
		notice = r.translate(ctx, t, notice)
	}
	r.deliver(ctx, t, domain.NormalizedMessage{Text: notice}, speaker)

	r.tickets.Dispatch(domain.TicketEvent{
		ITSM: ev.ITSM,
		Payload: domain.ResolutionTicket{
			Event:          domain.TicketResolution,
			ClientID:       ev.ClientID,
			Source:         domain.TicketSource,
			ConversationID: t.conversationID,
			ChatHistory:    history,
			IsAutomated:    ev.Body.Agent.IsAutomated,
		},
	})
}

// handlePinned announces the agent who picked up the conversation. The
// notice is always translated, once.
func (r *Router) handlePinned(ctx context.Context, t *turn, ev domain.Event) {
	agent := r.speaker(ev, DefaultAgentName)
	notice := r.translate(ctx, t, fmt.Sprintf(AgentEnteredFormat, agent))

	if err := r.store.SetAgentName(ctx, t.conversationID, agent); err != nil {
		t.log.Error("failed to store agent name", "agent", agent, "error", err)
	}
	r.deliver(ctx, t, domain.NormalizedMessage{Text: notice}, agent)
}
