package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RawEvent is an inbound message event as delivered by the transport.
type RawEvent struct {
	Key              MessageKey `json:"key"`
	Participant      string     `json:"participant,omitempty"`
	PushName         string     `json:"pushName,omitempty"`
	MessageTimestamp Timestamp  `json:"messageTimestamp,omitempty"`
	Message          *Content   `json:"message,omitempty"`
}

type MessageKey struct {
	ID          string `json:"id"`
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
}

// Timestamp accepts both numeric and string encodings of unix seconds.
type Timestamp int64

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}

// Content is a message content object. Its keys are content-type tags and the
// decode order of those keys is kept, since the first tag names the message type.
type Content struct {
	entries *orderedmap.OrderedMap[string, *Payload]
}

func NewContent() *Content {
	return &Content{entries: orderedmap.New[string, *Payload]()}
}

// Set adds or replaces a tag. Replacing keeps the original position.
func (c *Content) Set(tag string, payload *Payload) *Content {
	if c.entries == nil {
		c.entries = orderedmap.New[string, *Payload]()
	}
	c.entries.Set(tag, payload)
	return c
}

func (c *Content) Get(tag string) (*Payload, bool) {
	if c == nil || c.entries == nil {
		return nil, false
	}
	return c.entries.Get(tag)
}

// Payload returns the payload stored under tag, or nil.
func (c *Content) Payload(tag string) *Payload {
	p, _ := c.Get(tag)
	return p
}

func (c *Content) Has(tag string) bool {
	_, ok := c.Get(tag)
	return ok
}

// Tags returns the content-type tags in decode order.
func (c *Content) Tags() []string {
	if c == nil || c.entries == nil {
		return nil
	}
	tags := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		tags = append(tags, pair.Key)
	}
	return tags
}

func (c *Content) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Content) UnmarshalJSON(data []byte) error {
	c.entries = orderedmap.New[string, *Payload]()
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	return c.entries.UnmarshalJSON(data)
}

func (c *Content) MarshalJSON() ([]byte, error) {
	if c == nil || c.entries == nil {
		return []byte("{}"), nil
	}
	return c.entries.MarshalJSON()
}

// Payload is the type-specific body stored under a content tag. Only the
// fields the gateway reads are decoded; a bare string value (the plain
// conversation tag) lands in Conversation.
type Payload struct {
	Conversation string       `json:"-"`
	Text         string       `json:"text,omitempty"`
	Caption      string       `json:"caption,omitempty"`
	SelectedID   string       `json:"selectedId,omitempty"`
	Name         string       `json:"name,omitempty"`
	Body         *Body        `json:"body,omitempty"`
	ContextInfo  *ContextInfo `json:"contextInfo,omitempty"`

	URL        string `json:"url,omitempty"`
	DirectPath string `json:"directPath,omitempty"`
	MediaKey   string `json:"mediaKey,omitempty"`
	Mimetype   string `json:"mimetype,omitempty"`
	FileLength Uint64 `json:"fileLength,omitempty"`
	FileName   string `json:"fileName,omitempty"`

	Header  *Content `json:"header,omitempty"`
	Message *Content `json:"message,omitempty"`
}

type payloadAlias Payload

func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Conversation)
	case '{':
		var alias payloadAlias
		if err := json.Unmarshal(data, &alias); err != nil {
			return err
		}
		*p = Payload(alias)
		return nil
	default:
		// numbers, booleans and arrays carry nothing the gateway reads
		return nil
	}
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Conversation != "" {
		return json.Marshal(p.Conversation)
	}
	return json.Marshal(payloadAlias(p))
}

// IsMedia reports whether the payload locates downloadable media.
func (p *Payload) IsMedia() bool {
	return p != nil && (p.URL != "" || p.DirectPath != "")
}

type Body struct {
	Text string `json:"text,omitempty"`
}

type ContextInfo struct {
	StanzaID      string   `json:"stanzaId,omitempty"`
	Participant   string   `json:"participant,omitempty"`
	RemoteJID     string   `json:"remoteJid,omitempty"`
	MentionedJID  []string `json:"mentionedJid,omitempty"`
	Expiration    uint32   `json:"expiration,omitempty"`
	QuotedMessage *Content `json:"quotedMessage,omitempty"`
}

// Uint64 accepts both numeric and string encodings; protocol longs are often
// serialized as strings.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(v)
	return nil
}
