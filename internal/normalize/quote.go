package normalize

import (
	"chatgate/pkg/models"
)

// ResolveQuote extracts the message msg replies to, or nil when it replies to
// nothing. Quotes inside the quoted message are not followed.
func ResolveQuote(msg *models.CanonicalMessage, raw *models.RawEvent, selfID string) *models.QuotedMessage {
	if msg == nil || raw == nil {
		return nil
	}
	v, ok := resolveView(raw.Message)
	if !ok {
		return nil
	}
	return resolveQuoted(v, msg, selfID)
}

func resolveQuoted(parent view, msg *models.CanonicalMessage, selfID string) *models.QuotedMessage {
	ci := quoteContext(parent)
	if ci == nil || ci.QuotedMessage == nil {
		return nil
	}

	v, ok := resolveView(ci.QuotedMessage)
	if !ok {
		return nil
	}

	participant := NormalizeID(ci.Participant)
	quoted := &models.QuotedMessage{
		ID:             ci.StanzaID,
		ConversationID: ci.RemoteJID,
		SenderID:       participant,
		FromSelf:       participant != "" && participant == NormalizeID(selfID),
		PrimaryType:    v.primary,
		SecondaryType:  v.secondary,
		Text:           v.text(),
		MentionedIDs:   v.mentions(),
		Media:          v.media(),
	}
	if quoted.ConversationID == "" {
		quoted.ConversationID = msg.ConversationID
	}
	if quoted.SenderID == "" {
		quoted.SenderID = msg.SenderID
	}

	return quoted
}

// quoteContext finds the context info carrying the quote: the resolved
// payload first, then the primary payload of the outer content.
func quoteContext(v view) *models.ContextInfo {
	if p := v.work.Payload(v.resolved()); p != nil && p.ContextInfo != nil && p.ContextInfo.QuotedMessage != nil {
		return p.ContextInfo
	}
	if p := v.original.Payload(v.primary); p != nil && p.ContextInfo != nil {
		return p.ContextInfo
	}
	return nil
}
