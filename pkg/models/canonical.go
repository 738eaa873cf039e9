package models

import "strings"

// Bookkeeping tags never name the message type.
const (
	TagSenderKeyDistribution = "senderKeyDistributionMessage"
	TagMessageContextInfo    = "messageContextInfo"
	TagConversation          = "conversation"
	TagViewOnceV2            = "viewOnceMessageV2"
	TagInteractive           = "interactiveMessage"
	TagDocumentWithCaption   = "documentWithCaptionMessage"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
	MediaPTV      MediaKind = "ptv"
)

// MediaKinds is the scan order used when locating media in a content object.
var MediaKinds = []MediaKind{MediaImage, MediaVideo, MediaAudio, MediaSticker, MediaDocument, MediaPTV}

// Tag returns the content tag carrying this kind, e.g. "imageMessage".
func (k MediaKind) Tag() string {
	return string(k) + "Message"
}

// MediaKindForTag is the inverse of Tag.
func MediaKindForTag(tag string) (MediaKind, bool) {
	for _, k := range MediaKinds {
		if k.Tag() == tag {
			return k, true
		}
	}
	return "", false
}

func IsEnvelopeTag(tag string) bool {
	switch tag {
	case TagViewOnceV2, TagInteractive, TagDocumentWithCaption:
		return true
	}
	return false
}

func IsBookkeepingTag(tag string) bool {
	return tag == TagSenderKeyDistribution || tag == TagMessageContextInfo
}

// CanonicalMessage is the stable representation handed to routing and
// handlers. It shares no memory with the raw event it came from.
type CanonicalMessage struct {
	ID                string           `json:"id"`
	ConversationID    string           `json:"conversation_id"`
	SenderID          string           `json:"sender_id"`
	FromSelf          bool             `json:"from_self"`
	PushName          string           `json:"push_name,omitempty"`
	PrimaryType       string           `json:"primary_type"`
	SecondaryType     string           `json:"secondary_type,omitempty"`
	Text              string           `json:"text"`
	MentionedIDs      []string         `json:"mentioned_ids,omitempty"`
	ExpirationSeconds uint32           `json:"expiration_seconds,omitempty"`
	Timestamp         int64            `json:"timestamp,omitempty"`
	Media             *MediaDescriptor `json:"media,omitempty"`
	Quoted            *QuotedMessage   `json:"quoted,omitempty"`
}

// Key identifies the message for quoting, reacting and deleting.
func (m *CanonicalMessage) Key() MessageKey {
	key := MessageKey{ID: m.ID, RemoteJID: m.ConversationID, FromMe: m.FromSelf}
	if m.IsGroup() {
		key.Participant = m.SenderID
	}
	return key
}

func (m *CanonicalMessage) IsGroup() bool {
	return strings.HasSuffix(m.ConversationID, "@g.us")
}

// QuotedMessage is the message a canonical message replies to. Resolution is
// one level deep, so it has no quoted field of its own.
type QuotedMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	SenderID       string           `json:"sender_id"`
	FromSelf       bool             `json:"from_self"`
	PrimaryType    string           `json:"primary_type"`
	SecondaryType  string           `json:"secondary_type,omitempty"`
	Text           string           `json:"text"`
	MentionedIDs   []string         `json:"mentioned_ids,omitempty"`
	Media          *MediaDescriptor `json:"media,omitempty"`
}

func (q *QuotedMessage) Key() MessageKey {
	key := MessageKey{ID: q.ID, RemoteJID: q.ConversationID, FromMe: q.FromSelf}
	if strings.HasSuffix(q.ConversationID, "@g.us") {
		key.Participant = q.SenderID
	}
	return key
}

// MediaDescriptor locates media without fetching it.
type MediaDescriptor struct {
	Kind       MediaKind    `json:"kind"`
	Locator    MediaLocator `json:"locator"`
	Mimetype   string       `json:"mimetype,omitempty"`
	FileLength uint64       `json:"file_length,omitempty"`
	FileName   string       `json:"file_name,omitempty"`
}

type MediaLocator struct {
	URL        string `json:"url,omitempty"`
	DirectPath string `json:"direct_path,omitempty"`
	MediaKey   string `json:"media_key,omitempty"`
}

// Command is a parsed command invocation.
type Command struct {
	Name          string   `json:"name"`
	RawArgs       []string `json:"raw_args"`
	RemainderText string   `json:"remainder_text"`
}
