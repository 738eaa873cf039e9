// Package normalize turns raw protocol events into canonical messages.
package normalize

import (
	"chatgate/pkg/errors"
	"chatgate/pkg/models"
)

// Normalize builds the canonical form of raw. selfID is the gateway's own
// identity and may be empty before the transport has connected.
func Normalize(raw *models.RawEvent, selfID string) (*models.CanonicalMessage, error) {
	if err := models.ValidateKey(raw); err != nil {
		return nil, errors.ErrMalformedKey.WithCause(err)
	}

	v, ok := resolveView(raw.Message)
	if !ok {
		return nil, errors.ErrNoContent.WithDetail("event_id", raw.Key.ID)
	}

	msg := &models.CanonicalMessage{
		ID:                raw.Key.ID,
		ConversationID:    raw.Key.RemoteJID,
		SenderID:          senderOf(raw, selfID),
		FromSelf:          raw.Key.FromMe,
		PushName:          raw.PushName,
		PrimaryType:       v.primary,
		SecondaryType:     v.secondary,
		Text:              v.text(),
		MentionedIDs:      v.mentions(),
		ExpirationSeconds: v.expiration(),
		Timestamp:         int64(raw.MessageTimestamp),
		Media:             v.media(),
	}
	msg.Quoted = resolveQuoted(v, msg, selfID)

	return msg, nil
}

func senderOf(raw *models.RawEvent, selfID string) string {
	if raw.Key.FromMe && selfID != "" {
		return NormalizeID(selfID)
	}
	for _, candidate := range []string{raw.Participant, raw.Key.Participant, raw.Key.RemoteJID} {
		if id := NormalizeID(candidate); id != "" {
			return id
		}
	}
	return ""
}
