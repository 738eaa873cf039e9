package models

// Shape names the outbound payload variant.
type Shape string

const (
	ShapeControl         Shape = "control"
	ShapeClassifiedMedia Shape = "classified_media"
	ShapeExplicitMedia   Shape = "explicit_media"
	ShapeText            Shape = "text"
	ShapeReaction        Shape = "reaction"
)

// OutboundContent is implemented only by the content types in this file.
type OutboundContent interface {
	Shape() Shape
	outbound()
}

// ControlContent deletes or forwards an existing message. Exactly one of the
// two fields is set.
type ControlContent struct {
	Delete  *MessageKey
	Forward *ForwardedMessage
}

type ForwardedMessage struct {
	Key     MessageKey
	Message *Content
}

type MediaSource struct {
	Data []byte
	URL  string
}

type MediaContent struct {
	Kind     MediaKind
	Source   MediaSource
	Caption  string
	Mimetype string
	FileName string
	Mentions []string
	// Explicit is set when the caller chose the kind instead of the builder
	// classifying it by mime type.
	Explicit bool
}

type TextContent struct {
	Text     string
	Mentions []string
}

type ReactionContent struct {
	Key   MessageKey
	Emoji string
}

func (ControlContent) Shape() Shape { return ShapeControl }

func (c MediaContent) Shape() Shape {
	if c.Explicit {
		return ShapeExplicitMedia
	}
	return ShapeClassifiedMedia
}

func (TextContent) Shape() Shape { return ShapeText }

func (ReactionContent) Shape() Shape { return ShapeReaction }

func (ControlContent) outbound() {}

func (MediaContent) outbound() {}

func (TextContent) outbound() {}

func (ReactionContent) outbound() {}

type SendOptions struct {
	Quoted     *MessageKey
	Expiration uint32
	MessageID  string
}

// Outbound is a fully built send request.
type Outbound struct {
	To      string
	Content OutboundContent
	Options SendOptions
}

// OutboundRecord is the wire form of an Outbound used by the transports.
type OutboundRecord struct {
	ID         string                 `json:"id,omitempty"`
	To         string                 `json:"to"`
	Content    map[string]interface{} `json:"content"`
	Quoted     *MessageKey            `json:"quoted,omitempty"`
	Expiration uint32                 `json:"ephemeralExpiration,omitempty"`
}

func EncodeOutbound(id string, out Outbound) OutboundRecord {
	return OutboundRecord{
		ID:         id,
		To:         out.To,
		Content:    EncodeContent(out.Content),
		Quoted:     out.Options.Quoted,
		Expiration: out.Options.Expiration,
	}
}

// EncodeContent renders content in the shape the protocol bridge expects:
// the media kind is the key holding the source.
func EncodeContent(content OutboundContent) map[string]interface{} {
	payload := make(map[string]interface{})

	switch c := content.(type) {
	case ControlContent:
		if c.Delete != nil {
			payload["delete"] = *c.Delete
		} else if c.Forward != nil {
			payload["forward"] = map[string]interface{}{
				"key":     c.Forward.Key,
				"message": c.Forward.Message,
			}
		}
	case MediaContent:
		source := map[string]interface{}{}
		if c.Source.URL != "" {
			source["url"] = c.Source.URL
		} else {
			source["data"] = c.Source.Data
		}
		payload[string(c.Kind)] = source
		if c.Caption != "" {
			payload["caption"] = c.Caption
		}
		if c.Mimetype != "" {
			payload["mimetype"] = c.Mimetype
		}
		if c.FileName != "" {
			payload["fileName"] = c.FileName
		}
		if len(c.Mentions) > 0 {
			payload["mentions"] = c.Mentions
		}
	case TextContent:
		payload["text"] = c.Text
		if len(c.Mentions) > 0 {
			payload["mentions"] = c.Mentions
		}
	case ReactionContent:
		payload["react"] = map[string]interface{}{
			"text": c.Emoji,
			"key":  c.Key,
		}
	}

	return payload
}
