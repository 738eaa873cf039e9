// Package commands holds the built-in chat commands.
package commands

import (
	"context"
	"fmt"
	"strings"

	"chatgate/internal/completion"
	"chatgate/internal/logger"
	"chatgate/internal/media"
	"chatgate/internal/reply"
	"chatgate/internal/router"
	"chatgate/pkg/models"
)

const (
	replyTes          = "hehe"
	replyPong         = "Pong!"
	replyUnknown      = "Command not recognized!"
	replyAskDisabled  = "Text generation is not configured."
	replyAskFailed    = "Sorry, I could not get an answer right now."
	replyNoMedia      = "Reply to a message that carries media."
	replyMediaFailed  = "Could not download that media."
	replyOwnerOnly    = "This command is only for the owner."
	reactionThinking  = "⏳"
	reactionCompleted = ""
)

// Set wires the built-in commands to a replier. Completer may be nil, in
// which case ask answers that generation is unavailable.
type Set struct {
	router    *router.Router
	replier   *reply.Replier
	completer completion.Completer
	fetcher   media.Fetcher
	saveDir   string
	owner     string
	logger    logger.Logger
}

type Option func(*Set)

// WithMedia enables the media commands. Saved files go under saveDir.
func WithMedia(fetcher media.Fetcher, saveDir string) Option {
	return func(s *Set) {
		s.fetcher = fetcher
		s.saveDir = saveDir
	}
}

// WithOwner restricts owner-only commands to id.
func WithOwner(id string) Option {
	return func(s *Set) {
		s.owner = id
	}
}

func NewSet(r *router.Router, replier *reply.Replier, completer completion.Completer, log logger.Logger, opts ...Option) *Set {
	s := &Set{
		router:    r,
		replier:   replier,
		completer: completer,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds every built-in to the router and installs the default
// handler.
func (s *Set) Register() error {
	builtins := []builtin{
		{router.CommandInfo{Name: "tes", Description: "Liveness check"}, s.tes},
		{router.CommandInfo{Name: "ping", Description: "Replies with Pong!"}, s.ping},
		{router.CommandInfo{Name: "help", Aliases: []string{"menu"}, Description: "Lists available commands"}, s.help},
		{router.CommandInfo{Name: "ask", Aliases: []string{"askgpt"}, Description: "Asks the text-generation backend"}, s.ask},
	}
	if s.fetcher != nil {
		builtins = append(builtins,
			builtin{router.CommandInfo{Name: "reveal", Aliases: []string{"rvo"}, Description: "Resends the media of the quoted message"}, s.reveal},
			builtin{router.CommandInfo{Name: "save", Description: "Stores the quoted media on the gateway (owner only)"}, s.save},
		)
	}

	for _, b := range builtins {
		if err := s.router.Register(b.info, b.handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", b.info.Name, err)
		}
	}
	s.router.SetDefault(router.HandlerFunc(s.unknown))
	return nil
}

type builtin struct {
	info    router.CommandInfo
	handler router.HandlerFunc
}

func (s *Set) tes(ctx context.Context, msg *models.CanonicalMessage, _ models.Command) error {
	_, err := s.replier.Text(ctx, msg, replyTes)
	return err
}

func (s *Set) ping(ctx context.Context, msg *models.CanonicalMessage, _ models.Command) error {
	_, err := s.replier.Text(ctx, msg, replyPong)
	return err
}

func (s *Set) unknown(ctx context.Context, msg *models.CanonicalMessage, _ models.Command) error {
	_, err := s.replier.Text(ctx, msg, replyUnknown)
	return err
}

func (s *Set) help(ctx context.Context, msg *models.CanonicalMessage, _ models.Command) error {
	prefix := s.router.Prefix()

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, info := range s.router.Commands() {
		b.WriteString("\n")
		b.WriteString(prefix)
		b.WriteString(info.Name)
		if len(info.Aliases) > 0 {
			b.WriteString(" (")
			b.WriteString(prefix)
			b.WriteString(strings.Join(info.Aliases, ", "+prefix))
			b.WriteString(")")
		}
		if info.Description != "" {
			b.WriteString(" - ")
			b.WriteString(info.Description)
		}
	}

	_, err := s.replier.Text(ctx, msg, b.String())
	return err
}

func (s *Set) ask(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error {
	question := strings.TrimSpace(cmd.RemainderText)
	if question == "" {
		_, err := s.replier.Text(ctx, msg, fmt.Sprintf("Usage: %s%s <question>", s.router.Prefix(), cmd.Name))
		return err
	}
	if s.completer == nil {
		_, err := s.replier.Text(ctx, msg, replyAskDisabled)
		return err
	}

	if _, err := s.replier.React(ctx, msg, reactionThinking); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to add reaction", "error", err)
	}
	defer func() {
		if _, err := s.replier.React(ctx, msg, reactionCompleted); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to clear reaction", "error", err)
		}
	}()

	answer, err := s.completer.Complete(ctx, question)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Completion failed",
			"command", cmd.Name,
			"error", err,
		)
		_, sendErr := s.replier.Text(ctx, msg, replyAskFailed)
		return sendErr
	}

	_, err = s.replier.Text(ctx, msg, answer)
	return err
}
