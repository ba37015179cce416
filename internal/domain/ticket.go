package domain

import "encoding/json"

// TicketKind names the ticketing event carried in a payload.
type TicketKind string

const (
	TicketResolution TicketKind = "TICKET_RESOLUTION"
	TicketAttachment TicketKind = "TICKET_ATTACHMENT"
)

// TicketSource tags every ticket created by this router.
const TicketSource = "teams"

// TicketPayload is implemented by the concrete ticket payloads.
type TicketPayload interface {
	Kind() TicketKind
}

// TicketEvent is the envelope handed to the ticketing backend.
type TicketEvent struct {
	ITSM    string        `json:"itsm"`
	Payload TicketPayload `json:"payload"`
}

// ResolutionTicket reports a completed conversation with its full history.
type ResolutionTicket struct {
	Event          TicketKind      `json:"event"`
	ClientID       string          `json:"client_id"`
	Source         string          `json:"source"`
	ConversationID string          `json:"conversation_id"`
	ChatHistory    json.RawMessage `json:"chat_history"`
	IsAutomated    json.RawMessage `json:"is_automated"`
}

func (ResolutionTicket) Kind() TicketKind { return TicketResolution }

// AttachmentTicket reports a single file shared in the conversation.
type AttachmentTicket struct {
	Event          TicketKind `json:"event"`
	Source         string     `json:"source"`
	AuthID         string     `json:"auth_id"`
	ConversationID string     `json:"conversation_id"`
	FromHaptik     bool       `json:"from_haptik"`
	ClientID       string     `json:"client_id"`
	Email          string     `json:"email"`
	FileType       string     `json:"file_type"`
	FileName       string     `json:"file_name"`
	FileLink       string     `json:"file_link"`
}

func (AttachmentTicket) Kind() TicketKind { return TicketAttachment }

// TicketDispatcher hands tickets to the backend without waiting for the outcome.
type TicketDispatcher interface {
	Dispatch(ev TicketEvent)
}
