package reply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/logger"
	apperrors "chatgate/pkg/errors"
	"chatgate/pkg/models"
)

type sentMessage struct {
	to      string
	content models.OutboundContent
	opts    models.SendOptions
}

type recordingSender struct {
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, to string, content models.OutboundContent, opts models.SendOptions) (string, error) {
	s.sent = append(s.sent, sentMessage{to: to, content: content, opts: opts})
	if s.err != nil {
		return "", s.err
	}
	return "OUT-1", nil
}

func TestReplier_TextSendsOnce(t *testing.T) {
	sender := &recordingSender{}
	r := NewReplier(NewBuilder(0), sender, logger.NopLogger())

	id, err := r.Text(context.Background(), sourceMessage(), "hehe")
	require.NoError(t, err)
	assert.Equal(t, "OUT-1", id)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, models.TextContent{Text: "hehe"}, sender.sent[0].content)
	assert.Equal(t, "SRC1", sender.sent[0].opts.Quoted.ID)
}

func TestReplier_SendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("socket closed")}
	r := NewReplier(NewBuilder(0), sender, logger.NopLogger())

	_, err := r.Text(context.Background(), sourceMessage(), "hehe")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSendFailure))
	assert.Len(t, sender.sent, 1)
}

func TestReplier_InvalidIntentIsNotSent(t *testing.T) {
	sender := &recordingSender{}
	r := NewReplier(NewBuilder(0), sender, logger.NopLogger())

	_, err := r.Reply(context.Background(), sourceMessage(), Intent{Media: &MediaInput{Mimetype: "image/png"}})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, sender.sent)
}

func TestReplier_React(t *testing.T) {
	sender := &recordingSender{}
	r := NewReplier(NewBuilder(0), sender, logger.NopLogger())
	msg := sourceMessage()

	_, err := r.React(context.Background(), msg, "👍")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, msg.ConversationID, sender.sent[0].to)
	assert.Equal(t, models.ReactionContent{Key: msg.Key(), Emoji: "👍"}, sender.sent[0].content)
	assert.Nil(t, sender.sent[0].opts.Quoted)

	_, err = r.React(context.Background(), nil, "👍")
	assert.Error(t, err)
}
