package teams

import "github.com/madhavipuliraju/teams-outbound-handler/internal/domain"

// Bot Framework attachment content types.
const (
	ContentTypeHeroCard    = "application/vnd.microsoft.card.hero"
	ContentTypeImagePNG    = "image/png"
	ContentTypeFileConsent = "application/vnd.microsoft.teams.card.file.consent"
)

// Activity is the body posted to /conversations/{id}/activities.
type Activity struct {
	Type        string       `json:"type"`
	Text        *string      `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
	Content     any    `json:"content,omitempty"`
}

type HeroCard struct {
	Text    string          `json:"text"`
	Buttons []domain.Action `json:"buttons"`
}

type FileConsentCard struct {
	Description    string         `json:"description"`
	SizeInBytes    int64          `json:"sizeInBytes"`
	AcceptContext  map[string]any `json:"acceptContext"`
	DeclineContext map[string]any `json:"declineContext"`
}

// TextActivity is a plain text message.
func TextActivity(text string) Activity {
	return Activity{Type: "message", Text: &text}
}

// HeroCardActivity renders text with an ordered list of buttons.
func HeroCardActivity(text string, actions []domain.Action) Activity {
	buttons := make([]domain.Action, len(actions))
	copy(buttons, actions)
	return Activity{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: ContentTypeHeroCard,
			Content:     HeroCard{Text: text, Buttons: buttons},
		}},
	}
}

// ImageActivity renders an inline image with an empty text.
func ImageActivity(img domain.ImageRef) Activity {
	empty := ""
	return Activity{
		Type: "message",
		Text: &empty,
		Attachments: []Attachment{{
			ContentType: ContentTypeImagePNG,
			ContentURL:  img.URL,
			Name:        img.Name,
		}},
	}
}

// FileConsentActivity asks the user to accept a file upload.
func FileConsentActivity(name string, sizeInBytes int64) Activity {
	return Activity{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: ContentTypeFileConsent,
			Name:        name,
			Content: FileConsentCard{
				Description:    "Consent",
				SizeInBytes:    sizeInBytes,
				AcceptContext:  map[string]any{},
				DeclineContext: map[string]any{},
			},
		}},
	}
}
