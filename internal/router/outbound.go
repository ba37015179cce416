package router

import (
	"context"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/metrics"
)

// deliver sends msg as an image when it carries one, as a hero card when it
// has actions and as plain text otherwise. The transcript entry is recorded
// whether or not the send succeeded.
func (r *Router) deliver(ctx context.Context, t *turn, msg domain.NormalizedMessage, speaker string) {
	switch {
	case msg.Image != nil:
		r.sendImage(ctx, t, *msg.Image)
		r.record(ctx, t, speaker, ImageMarker)
		return
	case len(msg.Actions) > 0:
		r.send(t, "hero", func() (string, error) {
			return r.sender.SendButtons(ctx, t.creds, t.conversationID, msg.Text, msg.Actions)
		})
	default:
		r.send(t, "text", func() (string, error) {
			return r.sender.SendText(ctx, t.creds, t.conversationID, msg.Text)
		})
	}
	r.record(ctx, t, speaker, msg.Text)
}

// sendImage sends an inline image, or a file-consent card when enabled and
// the file size can be determined.
func (r *Router) sendImage(ctx context.Context, t *turn, img domain.ImageRef) {
	if r.fileConsent {
		size, err := r.probe(ctx, img.URL)
		if err == nil {
			r.send(t, "file_consent", func() (string, error) {
				return r.sender.SendFileConsent(ctx, t.creds, t.conversationID, img.Name, size)
			})
			return
		}
		t.log.Warn("could not size attachment, sending inline image", "url", img.URL, "error", err)
	}
	r.send(t, "image", func() (string, error) {
		return r.sender.SendImage(ctx, t.creds, t.conversationID, img)
	})
}

func (r *Router) send(t *turn, shape string, do func() (string, error)) {
	if t.creds == nil {
		t.log.Error("cannot send activity", "shape", shape, "error", domain.ErrNoCredentials)
		metrics.ActivitySent(shape, "error").Inc()
		return
	}
	id, err := do()
	if err != nil {
		t.log.Error("failed to send activity", "shape", shape, "error", err)
		metrics.ActivitySent(shape, "error").Inc()
		return
	}
	t.log.Info("activity sent", "shape", shape, "activity_id", id)
	metrics.ActivitySent(shape, "ok").Inc()
}

func (r *Router) record(ctx context.Context, t *turn, speaker, text string) {
	if err := r.transcripts.Append(ctx, t.conversationID, speaker, text); err != nil {
		t.log.Error("failed to append transcript", "error", err)
	}
}

func (r *Router) translate(ctx context.Context, t *turn, text string) string {
	if r.translator == nil {
		return text
	}
	out, err := r.translator.Translate(ctx, text, t.authID)
	if err != nil {
		t.log.Warn("translation failed, sending original text", "error", err)
		return text
	}
	return out
}

func (r *Router) attachmentTicket(t *turn, ev domain.Event, rec domain.ConversationRecord, fileType, name, link string) {
	r.tickets.Dispatch(domain.TicketEvent{
		ITSM: ev.ITSM,
		Payload: domain.AttachmentTicket{
			Event:          domain.TicketAttachment,
			Source:         domain.TicketSource,
			AuthID:         t.authID,
			ConversationID: t.conversationID,
			FromHaptik:     true,
			ClientID:       t.clientID,
			Email:          rec.UserEmail,
			FileType:       fileType,
			FileName:       name,
			FileLink:       link,
		},
	})
}
