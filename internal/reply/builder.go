// Package reply turns reply intents into outbound content and sends it.
package reply

import (
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chatgate/internal/constants"
	"chatgate/pkg/errors"
	"chatgate/pkg/models"
)

var mentionPattern = regexp.MustCompile(`@([0-9]{5,16}|0)`)

// Builder resolves intents into outbound content. It performs no I/O.
type Builder struct {
	maxVideoBytes int64
}

func NewBuilder(maxVideoBytes int64) *Builder {
	if maxVideoBytes <= 0 {
		maxVideoBytes = constants.DefaultMaxVideoBytes
	}
	return &Builder{maxVideoBytes: maxVideoBytes}
}

// Build picks the outbound shape in priority order: control, classified
// media, explicit media, text.
func (b *Builder) Build(msg *models.CanonicalMessage, intent Intent) (models.Outbound, error) {
	if msg == nil {
		return models.Outbound{}, errors.ErrValidation.WithMessage("reply requires a source message")
	}

	out := models.Outbound{
		To:      msg.ConversationID,
		Options: models.SendOptions{MessageID: intent.MessageID},
	}
	if intent.To != "" {
		out.To = intent.To
	}

	if content, ok := controlContent(intent); ok {
		out.Content = content
		return out, nil
	}

	mentions := b.mentions(intent)

	switch {
	case intent.Media != nil:
		content, err := b.classifiedMedia(intent.Media, intent.Text, mentions)
		if err != nil {
			return models.Outbound{}, err
		}
		out.Content = content
	case intent.Explicit != nil:
		content, err := explicitMedia(intent.Explicit, intent.Text, mentions)
		if err != nil {
			return models.Outbound{}, err
		}
		out.Content = content
	default:
		out.Content = models.TextContent{Text: intent.Text, Mentions: mentions}
	}

	out.Options.Quoted = quoteFor(msg, intent)
	out.Options.Expiration = expirationFor(msg, intent)
	return out, nil
}

func controlContent(intent Intent) (models.OutboundContent, bool) {
	switch {
	case intent.Delete != nil:
		key := *intent.Delete
		return models.ControlContent{Delete: &key}, true
	case intent.Forward != nil:
		fwd := *intent.Forward
		return models.ControlContent{Forward: &fwd}, true
	}
	return nil, false
}

func (b *Builder) mentions(intent Intent) []string {
	if intent.Mentions != nil {
		out := make([]string, len(intent.Mentions))
		copy(out, intent.Mentions)
		return out
	}
	return ExtractMentions(intent.Text)
}

// ExtractMentions returns the identities of @-mentions in text, in order.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1]+"@"+constants.UserServer)
	}
	return ids
}

func (b *Builder) classifiedMedia(in *MediaInput, caption string, mentions []string) (models.MediaContent, error) {
	if len(in.Data) == 0 && in.URL == "" {
		return models.MediaContent{}, errors.ErrValidation.WithMessage("media requires data or a URL")
	}

	mimeType := detectMime(in.Data, in.URL, in.Mimetype)
	size := in.Size
	if len(in.Data) > 0 {
		size = int64(len(in.Data))
	}

	return models.MediaContent{
		Kind:     b.Classify(mimeType, size),
		Source:   models.MediaSource{Data: in.Data, URL: in.URL},
		Caption:  caption,
		Mimetype: mimeType,
		FileName: in.FileName,
		Mentions: mentions,
	}, nil
}

// Classify maps a mime type and byte size to the kind media is sent as.
// Videos at or over the size threshold go out as documents.
func (b *Builder) Classify(mimeType string, size int64) models.MediaKind {
	switch {
	case strings.Contains(mimeType, "webp"):
		return models.MediaSticker
	case strings.Contains(mimeType, "image"):
		return models.MediaImage
	case strings.Contains(mimeType, "video"):
		if size >= b.maxVideoBytes {
			return models.MediaDocument
		}
		return models.MediaVideo
	case strings.Contains(mimeType, "audio"):
		return models.MediaAudio
	default:
		return models.MediaDocument
	}
}

func explicitMedia(in *ExplicitMedia, caption string, mentions []string) (models.MediaContent, error) {
	switch in.Kind {
	case models.MediaImage, models.MediaVideo, models.MediaDocument, models.MediaSticker, models.MediaAudio:
	default:
		return models.MediaContent{}, errors.ErrValidation.WithMessage("unsupported explicit media kind: " + string(in.Kind))
	}
	if len(in.Data) == 0 && in.URL == "" {
		return models.MediaContent{}, errors.ErrValidation.WithMessage("media requires data or a URL")
	}

	mimeType := in.Mimetype
	if mimeType == "" && len(in.Data) > 0 {
		mimeType = detectMime(in.Data, in.URL, "")
	}

	return models.MediaContent{
		Kind:     in.Kind,
		Source:   models.MediaSource{Data: in.Data, URL: in.URL},
		Caption:  caption,
		Mimetype: mimeType,
		FileName: in.FileName,
		Mentions: mentions,
		Explicit: true,
	}, nil
}

func detectMime(data []byte, url, declared string) string {
	if declared != "" {
		return declared
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if byExt := mime.TypeByExtension(path.Ext(url)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func quoteFor(msg *models.CanonicalMessage, intent Intent) *models.MessageKey {
	if intent.NoQuote {
		return nil
	}
	if intent.Quote != nil {
		key := *intent.Quote
		return &key
	}
	key := msg.Key()
	return &key
}

// expirationFor keeps replies in a disappearing chat ephemeral. The override
// only applies when the source message is ephemeral.
func expirationFor(msg *models.CanonicalMessage, intent Intent) uint32 {
	if msg.ExpirationSeconds == 0 {
		return 0
	}
	if intent.Expiration != nil {
		return *intent.Expiration
	}
	return msg.ExpirationSeconds
}
