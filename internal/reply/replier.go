package reply

import (
	"context"

	"chatgate/internal/logger"
	"chatgate/pkg/errors"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

// Sender is the transport send primitive.
type Sender interface {
	Send(ctx context.Context, to string, content models.OutboundContent, opts models.SendOptions) (string, error)
}

// Replier builds replies and hands each one to the transport exactly once.
type Replier struct {
	builder *Builder
	sender  Sender
	logger  logger.Logger
}

func NewReplier(builder *Builder, sender Sender, log logger.Logger) *Replier {
	return &Replier{
		builder: builder,
		sender:  sender,
		logger:  log,
	}
}

// Reply sends the resolved intent and returns the transport's message id.
func (r *Replier) Reply(ctx context.Context, msg *models.CanonicalMessage, intent Intent) (string, error) {
	out, err := r.builder.Build(msg, intent)
	if err != nil {
		return "", err
	}
	return r.send(ctx, out)
}

// Text replies with plain text, quoting msg.
func (r *Replier) Text(ctx context.Context, msg *models.CanonicalMessage, text string) (string, error) {
	return r.Reply(ctx, msg, Intent{Text: text})
}

// React attaches an emoji reaction to msg. An empty emoji removes it.
func (r *Replier) React(ctx context.Context, msg *models.CanonicalMessage, emoji string) (string, error) {
	if msg == nil {
		return "", errors.ErrValidation.WithMessage("reaction requires a source message")
	}
	return r.send(ctx, models.Outbound{
		To:      msg.ConversationID,
		Content: models.ReactionContent{Key: msg.Key(), Emoji: emoji},
	})
}

func (r *Replier) send(ctx context.Context, out models.Outbound) (string, error) {
	shape := string(out.Content.Shape())
	ctx, span := tracing.StartSpan(ctx, "reply.send", "", out.To)
	defer span.End()

	id, err := r.sender.Send(ctx, out.To, out.Content, out.Options)
	if err != nil {
		metrics.RepliesSentTotal.WithLabelValues(shape, "error").Inc()
		span.RecordError(err)
		r.logger.ErrorwCtx(ctx, "Failed to send reply",
			"to", out.To,
			"shape", shape,
			"error", err,
		)
		return "", errors.ErrSendFailure.WithCause(err).WithDetail("to", out.To)
	}

	metrics.RepliesSentTotal.WithLabelValues(shape, "ok").Inc()
	r.logger.DebugwCtx(ctx, "Reply sent",
		"to", out.To,
		"shape", shape,
		"message_id", id,
	)
	return id, nil
}
