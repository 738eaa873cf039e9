package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/completion"
	"chatgate/internal/logger"
	"chatgate/internal/reply"
	"chatgate/internal/router"
	"chatgate/pkg/models"
)

type recordingSender struct {
	sent []models.OutboundContent
}

func (s *recordingSender) Send(_ context.Context, _ string, content models.OutboundContent, _ models.SendOptions) (string, error) {
	s.sent = append(s.sent, content)
	return "OUT", nil
}

func (s *recordingSender) texts() []string {
	var out []string
	for _, c := range s.sent {
		if text, ok := c.(models.TextContent); ok {
			out = append(out, text.Text)
		}
	}
	return out
}

type stubCompleter struct {
	prompt string
	answer string
	err    error
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.answer, c.err
}

func setup(t *testing.T, completer completion.Completer) (*router.Router, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	r := router.New("!", logger.NopLogger())
	replier := reply.NewReplier(reply.NewBuilder(0), sender, logger.NopLogger())
	require.NoError(t, NewSet(r, replier, completer, logger.NopLogger()).Register())
	return r, sender
}

func route(t *testing.T, r *router.Router, text string) {
	t.Helper()
	msg := &models.CanonicalMessage{
		ID:             "M1",
		ConversationID: "628111@s.whatsapp.net",
		SenderID:       "628111@s.whatsapp.net",
		Text:           text,
	}
	handled, err := r.Route(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, handled)
}

func TestBuiltins_FixedReplies(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "!tes", want: "hehe"},
		{text: "!ping", want: "Pong!"},
		{text: "!PING now", want: "Pong!"},
		{text: "!nothing", want: "Command not recognized!"},
		{text: "!", want: "Command not recognized!"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r, sender := setup(t, nil)
			route(t, r, tt.text)
			assert.Equal(t, []string{tt.want}, sender.texts())
		})
	}
}

func TestBuiltins_Help(t *testing.T) {
	r, sender := setup(t, nil)
	route(t, r, "!help")

	require.Len(t, sender.texts(), 1)
	help := sender.texts()[0]
	assert.Contains(t, help, "!ask (!askgpt)")
	assert.Contains(t, help, "!ping")
	assert.Contains(t, help, "!tes")
}

func TestBuiltins_AskUsage(t *testing.T) {
	completer := &stubCompleter{answer: "unused"}
	r, sender := setup(t, completer)
	route(t, r, "!askgpt")

	assert.Equal(t, []string{"Usage: !askgpt <question>"}, sender.texts())
	assert.Empty(t, completer.prompt)
}

func TestBuiltins_AskAnswers(t *testing.T) {
	completer := &stubCompleter{answer: "It is noon."}
	r, sender := setup(t, completer)
	route(t, r, "!askgpt what time is it")

	assert.Equal(t, "what time is it", completer.prompt)
	assert.Equal(t, []string{"It is noon."}, sender.texts())

	var reactions []string
	for _, c := range sender.sent {
		if react, ok := c.(models.ReactionContent); ok {
			reactions = append(reactions, react.Emoji)
		}
	}
	assert.Equal(t, []string{"⏳", ""}, reactions)
}

func TestBuiltins_AskBackendFailure(t *testing.T) {
	r, sender := setup(t, &stubCompleter{err: errors.New("down")})
	route(t, r, "!ask hello")

	assert.Equal(t, []string{"Sorry, I could not get an answer right now."}, sender.texts())
}

func TestBuiltins_AskDisabled(t *testing.T) {
	r, sender := setup(t, nil)
	route(t, r, "!ask hello")

	assert.Equal(t, []string{"Text generation is not configured."}, sender.texts())
}
