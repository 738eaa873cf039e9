package normalize

import (
	"chatgate/pkg/models"
)

// view is the resolved type structure of one content object.
type view struct {
	original  *models.Content
	work      *models.Content
	primary   string
	secondary string
}

// resolveView picks the primary type and, for envelopes, the working content
// and secondary type. It fails only when no content tag is present.
func resolveView(content *models.Content) (view, bool) {
	v := view{original: content, work: content}

	for _, tag := range content.Tags() {
		if !models.IsBookkeepingTag(tag) {
			v.primary = tag
			break
		}
	}
	if v.primary == "" {
		return view{}, false
	}

	if models.IsEnvelopeTag(v.primary) {
		v.work = nil
		if env := content.Payload(v.primary); env != nil {
			switch {
			case env.Header.Len() > 0:
				v.work = env.Header
			case env.Message.Len() > 0:
				v.work = env.Message
			}
		}
		if tags := v.work.Tags(); len(tags) > 0 {
			v.secondary = tags[0]
		}
	}

	return v, true
}

func (v view) resolved() string {
	if v.secondary != "" {
		return v.secondary
	}
	return v.primary
}

// contextPayload is the payload whose context info applies to the message.
func (v view) contextPayload() *models.Payload {
	if v.secondary != "" {
		if p := v.work.Payload(v.secondary); p != nil {
			return p
		}
	}
	return v.work.Payload(v.primary)
}

func (v view) contextInfo() *models.ContextInfo {
	if p := v.contextPayload(); p != nil {
		return p.ContextInfo
	}
	return nil
}

type textSource func(v view) string

// textSources is the text precedence list; the first non-empty value wins.
var textSources = []textSource{
	func(v view) string { return conversation(v.work.Payload(models.TagConversation)) },
	func(v view) string { return field(v.work.Payload(v.resolved()), textOf) },
	func(v view) string { return field(v.work.Payload(v.resolved()), captionOf) },
	func(v view) string { return field(v.work.Payload(v.secondary), captionOf) },
	func(v view) string { return field(v.work.Payload(v.resolved()), selectedIDOf) },
	func(v view) string { return field(v.work.Payload(v.resolved()), nameOf) },
	func(v view) string { return field(v.original.Payload(v.primary), bodyTextOf) },
}

func (v view) text() string {
	for _, source := range textSources {
		if s := source(v); s != "" {
			return s
		}
	}
	return ""
}

func conversation(p *models.Payload) string {
	if p == nil {
		return ""
	}
	if p.Conversation != "" {
		return p.Conversation
	}
	return p.Text
}

func field(p *models.Payload, get func(*models.Payload) string) string {
	if p == nil {
		return ""
	}
	return get(p)
}

func textOf(p *models.Payload) string       { return p.Text }
func captionOf(p *models.Payload) string    { return p.Caption }
func selectedIDOf(p *models.Payload) string { return p.SelectedID }
func nameOf(p *models.Payload) string       { return p.Name }

func bodyTextOf(p *models.Payload) string {
	if p.Body == nil {
		return ""
	}
	return p.Body.Text
}

func (v view) mentions() []string {
	ci := v.contextInfo()
	if ci == nil || len(ci.MentionedJID) == 0 {
		return nil
	}
	out := make([]string, len(ci.MentionedJID))
	copy(out, ci.MentionedJID)
	return out
}

func (v view) expiration() uint32 {
	if ci := v.contextInfo(); ci != nil {
		return ci.Expiration
	}
	return 0
}

// media returns a descriptor when the working content holds a media tag with
// a usable locator. The resolved tag is preferred when it is itself media.
func (v view) media() *models.MediaDescriptor {
	var first *models.MediaDescriptor
	for _, kind := range models.MediaKinds {
		p := v.work.Payload(kind.Tag())
		if !p.IsMedia() {
			continue
		}
		if first == nil {
			first = describe(kind, p)
		}
	}
	if first == nil {
		return nil
	}

	for _, tag := range []string{v.secondary, v.primary} {
		if tag == "" {
			continue
		}
		kind, ok := models.MediaKindForTag(tag)
		if !ok {
			continue
		}
		if p := v.work.Payload(tag); p.IsMedia() {
			return describe(kind, p)
		}
	}

	return first
}

func describe(kind models.MediaKind, p *models.Payload) *models.MediaDescriptor {
	return &models.MediaDescriptor{
		Kind: kind,
		Locator: models.MediaLocator{
			URL:        p.URL,
			DirectPath: p.DirectPath,
			MediaKey:   p.MediaKey,
		},
		Mimetype:   p.Mimetype,
		FileLength: uint64(p.FileLength),
		FileName:   p.FileName,
	}
}
