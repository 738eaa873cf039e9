package reply

import (
	"chatgate/pkg/models"
)

// Intent describes what a handler wants to send in reply to a message.
// Fields are independent; Build resolves them into one outbound shape.
type Intent struct {
	Text string

	// Media is sent with its kind chosen from the mime type.
	Media *MediaInput
	// Explicit is sent as exactly the given kind.
	Explicit *ExplicitMedia

	// To overrides the destination conversation.
	To string
	// Mentions set explicitly; nil means derive them from @-tokens in Text.
	Mentions []string
	// Expiration overrides the ephemeral timer inherited from the message.
	Expiration *uint32
	MessageID  string

	// Quote replaces the message being quoted; NoQuote sends without one.
	Quote   *models.MessageKey
	NoQuote bool

	// Delete and Forward turn the reply into a control send. Delete wins
	// when both are set.
	Delete  *models.MessageKey
	Forward *models.ForwardedMessage
}

// MediaInput is media given as bytes or as a URL. Size is only consulted
// when Data is empty.
type MediaInput struct {
	Data     []byte
	URL      string
	Mimetype string
	FileName string
	Size     int64
}

type ExplicitMedia struct {
	Kind     models.MediaKind
	Data     []byte
	URL      string
	Mimetype string
	FileName string
}

func ExpirationOf(seconds uint32) *uint32 {
	return &seconds
}
