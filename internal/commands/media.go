package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chatgate/internal/media"
	"chatgate/internal/normalize"
	"chatgate/internal/reply"
	"chatgate/pkg/models"
)

// mediaOf returns the media of the quoted message, else of msg itself.
func mediaOf(msg *models.CanonicalMessage) (*models.MediaDescriptor, string) {
	if msg.Quoted != nil && msg.Quoted.Media != nil {
		return msg.Quoted.Media, msg.Quoted.ID
	}
	return msg.Media, msg.ID
}

func (s *Set) reveal(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error {
	desc, _ := mediaOf(msg)
	if desc == nil {
		_, err := s.replier.Text(ctx, msg, replyNoMedia)
		return err
	}

	data, err := media.Download(ctx, s.fetcher, desc)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Media download failed",
			"command", cmd.Name,
			"kind", desc.Kind,
			"error", err,
		)
		_, sendErr := s.replier.Text(ctx, msg, replyMediaFailed)
		return sendErr
	}

	caption := cmd.RemainderText
	if caption == "" && msg.Quoted != nil {
		caption = msg.Quoted.Text
	}

	_, err = s.replier.Reply(ctx, msg, reply.Intent{
		Text: caption,
		Media: &reply.MediaInput{
			Data:     data,
			Mimetype: desc.Mimetype,
			FileName: desc.FileName,
			Size:     int64(len(data)),
		},
	})
	return err
}

func (s *Set) save(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error {
	if !s.isOwner(msg) {
		_, err := s.replier.Text(ctx, msg, replyOwnerOnly)
		return err
	}

	desc, id := mediaOf(msg)
	if desc == nil {
		_, err := s.replier.Text(ctx, msg, replyNoMedia)
		return err
	}

	if err := os.MkdirAll(s.saveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	path, err := media.SaveToFile(ctx, s.fetcher, desc, filepath.Join(s.saveDir, filepath.Base(id)), true)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Media save failed",
			"command", cmd.Name,
			"error", err,
		)
		_, sendErr := s.replier.Text(ctx, msg, replyMediaFailed)
		return sendErr
	}

	s.logger.InfowCtx(ctx, "Media saved", "path", path)
	_, err = s.replier.Text(ctx, msg, "Saved as "+filepath.Base(path))
	return err
}

func (s *Set) isOwner(msg *models.CanonicalMessage) bool {
	if msg.FromSelf {
		return true
	}
	return s.owner != "" && normalize.NormalizeID(s.owner) == msg.SenderID
}
