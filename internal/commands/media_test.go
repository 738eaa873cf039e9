package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/logger"
	"chatgate/internal/reply"
	"chatgate/internal/router"
	"chatgate/pkg/models"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type stubFetcher struct {
	err error
}

func (f stubFetcher) FetchMedia(context.Context, models.MediaDescriptor) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(pngBytes)), nil
}

func setupMedia(t *testing.T, fetcher stubFetcher, dir string) (*router.Router, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	r := router.New("!", logger.NopLogger())
	replier := reply.NewReplier(reply.NewBuilder(0), sender, logger.NopLogger())
	set := NewSet(r, replier, nil, logger.NopLogger(),
		WithMedia(fetcher, dir),
		WithOwner("628999:4@s.whatsapp.net"),
	)
	require.NoError(t, set.Register())
	return r, sender
}

func quotingImage(text, sender string) *models.CanonicalMessage {
	return &models.CanonicalMessage{
		ID:             "M2",
		ConversationID: "628111@s.whatsapp.net",
		SenderID:       sender,
		Text:           text,
		Quoted: &models.QuotedMessage{
			ID:          "Q1",
			PrimaryType: "viewOnceMessageV2",
			Text:        "secret",
			Media: &models.MediaDescriptor{
				Kind:     models.MediaImage,
				Locator:  models.MediaLocator{DirectPath: "/v/t62/abc"},
				Mimetype: "image/png",
			},
		},
	}
}

func routeMsg(t *testing.T, r *router.Router, msg *models.CanonicalMessage) {
	t.Helper()
	handled, err := r.Route(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, handled)
}

func TestReveal(t *testing.T) {
	r, sender := setupMedia(t, stubFetcher{}, t.TempDir())
	routeMsg(t, r, quotingImage("!rvo", "628111@s.whatsapp.net"))

	require.Len(t, sender.sent, 1)
	content, ok := sender.sent[0].(models.MediaContent)
	require.True(t, ok)
	assert.Equal(t, models.MediaImage, content.Kind)
	assert.Equal(t, "secret", content.Caption)
	assert.Equal(t, pngBytes, content.Source.Data)
}

func TestReveal_NoMedia(t *testing.T) {
	r, sender := setupMedia(t, stubFetcher{}, t.TempDir())
	msg := quotingImage("!reveal", "628111@s.whatsapp.net")
	msg.Quoted = nil
	routeMsg(t, r, msg)

	assert.Equal(t, []string{"Reply to a message that carries media."}, sender.texts())
}

func TestReveal_FetchFailure(t *testing.T) {
	r, sender := setupMedia(t, stubFetcher{err: errors.New("gone")}, t.TempDir())
	routeMsg(t, r, quotingImage("!reveal", "628111@s.whatsapp.net"))

	assert.Equal(t, []string{"Could not download that media."}, sender.texts())
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	r, sender := setupMedia(t, stubFetcher{}, dir)

	routeMsg(t, r, quotingImage("!save", "628111@s.whatsapp.net"))
	assert.Equal(t, []string{"This command is only for the owner."}, sender.texts())

	routeMsg(t, r, quotingImage("!save", "628999@s.whatsapp.net"))
	assert.Equal(t, "Saved as Q1.png", sender.texts()[1])

	data, err := os.ReadFile(filepath.Join(dir, "Q1.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}
