package models

// RawEventBuilder assembles raw events, mostly for tests and replay tooling.
type RawEventBuilder struct {
	event *RawEvent
}

func NewRawEventBuilder() *RawEventBuilder {
	return &RawEventBuilder{
		event: &RawEvent{Message: NewContent()},
	}
}

func (b *RawEventBuilder) WithID(id string) *RawEventBuilder {
	b.event.Key.ID = id
	return b
}

func (b *RawEventBuilder) WithConversation(remoteJID string) *RawEventBuilder {
	b.event.Key.RemoteJID = remoteJID
	return b
}

func (b *RawEventBuilder) FromMe() *RawEventBuilder {
	b.event.Key.FromMe = true
	return b
}

func (b *RawEventBuilder) WithKeyParticipant(participant string) *RawEventBuilder {
	b.event.Key.Participant = participant
	return b
}

func (b *RawEventBuilder) WithParticipant(participant string) *RawEventBuilder {
	b.event.Participant = participant
	return b
}

func (b *RawEventBuilder) WithPushName(name string) *RawEventBuilder {
	b.event.PushName = name
	return b
}

func (b *RawEventBuilder) WithTimestamp(ts int64) *RawEventBuilder {
	b.event.MessageTimestamp = Timestamp(ts)
	return b
}

func (b *RawEventBuilder) WithContent(tag string, payload *Payload) *RawEventBuilder {
	b.event.Message.Set(tag, payload)
	return b
}

func (b *RawEventBuilder) WithText(text string) *RawEventBuilder {
	return b.WithContent(TagConversation, &Payload{Conversation: text})
}

func (b *RawEventBuilder) WithoutMessage() *RawEventBuilder {
	b.event.Message = nil
	return b
}

func (b *RawEventBuilder) Build() *RawEvent {
	return b.event
}
