package router

import (
	"context"
	"strings"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func (r *Router) handleMessage(ctx context.Context, t *turn, ev domain.Event) {
	body := ev.Body.Message.Body
	rec := r.conversation(ctx, t)
	speaker := r.speaker(ev, DefaultBotName)

	if strings.Contains(body.Text, r.rules.FallbackMarker) || len(body.Data.Intents) > 0 {
		r.searchFallback(ctx, t, rec.LatestMessage, disambiguationActions(body.Data.Intents), speaker)
		return
	}

	msg := domain.NormalizedMessage{Text: body.Text}
	switch {
	case strings.Contains(body.Type, "BUTTON"):
		msg.Actions = r.assembleButtons(ctx, t, ev, rec, speaker)
		if msg.Text == "" {
			msg.Text = DownloadPrompt
		}
	case strings.Contains(body.Type, "CAROUSEL"):
		r.handleCarousel(ctx, t, ev, rec, speaker)
		return
	}

	if t.translate {
		msg.Text = r.translate(ctx, t, msg.Text)
	}
	r.deliver(ctx, t, msg, speaker)
}

// disambiguationActions starts with the agent hand-off, followed by one quick
// reply per intent in the order given.
func disambiguationActions(intents []string) []domain.Action {
	actions := make([]domain.Action, 0, len(intents)+1)
	actions = append(actions, domain.Action{Kind: domain.ActionQuickReply, Label: TalkToAgent + " 💬", Value: TalkToAgent})
	for _, intent := range intents {
		actions = append(actions, domain.Action{Kind: domain.ActionQuickReply, Label: intent + " 💬", Value: intent})
	}
	return actions
}

// assembleButtons converts BUTTON items into card actions. Document links
// additionally record an attachment line and raise an attachment ticket.
func (r *Router) assembleButtons(ctx context.Context, t *turn, ev domain.Event, rec domain.ConversationRecord, speaker string) []domain.Action {
	var actions []domain.Action
	for _, item := range ev.Body.Message.Body.Data.Items {
		switch b := item.Button().(type) {
		case domain.LinkButton:
			if b.FileType == "" {
				actions = append(actions, domain.Action{Kind: domain.ActionOpenURL, Label: b.Label + " 🔗", Value: b.URL})
				continue
			}
			actions = append(actions, domain.Action{Kind: domain.ActionOpenURL, Label: b.Label + " 📎", Value: b.URL})
			r.record(ctx, t, speaker, AttachmentMarker)
			r.attachmentTicket(t, ev, rec, b.FileType, b.Label, b.URL)
		case domain.TextButton:
			actions = append(actions, domain.Action{Kind: domain.ActionQuickReply, Label: b.Label + " 💬", Value: b.Reply})
		case domain.UnknownButton:
			t.log.Debug("skipping button item", "type", b.Type, "uri", b.URI)
		}
	}
	return actions
}

// handleCarousel sends every image item on its own and raises one attachment
// ticket per image. Nothing else is sent for the event.
func (r *Router) handleCarousel(ctx context.Context, t *turn, ev domain.Event, rec domain.ConversationRecord, speaker string) {
	t.log.Info("forwarding carousel attachments")
	for _, item := range ev.Body.Message.Body.Data.Items {
		img := item.Image()
		if !img.OK {
			t.log.Info("file extension not recognised, only png, jpeg and jpg are forwarded", "url", img.URL)
			continue
		}
		name := img.Title + ".png"
		r.deliver(ctx, t, domain.NormalizedMessage{Image: &domain.ImageRef{URL: img.URL, Name: name}}, speaker)
		r.attachmentTicket(t, ev, rec, "png", name, img.URL)
	}
}

// searchFallback answers with the search result for the user's last query,
// keeping the given actions after an optional "Visit Link" action.
func (r *Router) searchFallback(ctx context.Context, t *turn, query string, actions []domain.Action, speaker string) {
	answer, link := r.rules.NoResultMessage, ""
	if r.searcher != nil {
		a, l, err := r.searcher.Search(ctx, query)
		if err != nil {
			t.log.Warn("search failed, answering without result", "error", err)
		} else {
			answer, link = a, l
		}
	}

	out := make([]domain.Action, 0, len(actions)+1)
	if link != "" {
		out = append(out, domain.Action{Kind: domain.ActionOpenURL, Label: "Visit Link 🔗", Value: link})
	}
	out = append(out, actions...)

	r.deliver(ctx, t, domain.NormalizedMessage{Text: answer, Actions: out}, speaker)
}
