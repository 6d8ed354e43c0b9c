package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/config"
	"github.com/tOgg1/roomchat/internal/logging"
	"github.com/tOgg1/roomchat/internal/transcript"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// resolveIdentity picks the identity and credential: flags first, then the
// stored login, then the config file.
func resolveIdentity(cfg *config.Config, ctx *config.Context) chat.Identity {
	id := chat.Identity{
		Name:  strings.TrimSpace(cfg.Identity.Name),
		Token: strings.TrimSpace(cfg.Identity.Token),
	}
	if ctx != nil {
		if ctx.Identity != "" {
			id.Name = ctx.Identity
		}
		if ctx.Token != "" {
			id.Token = ctx.Token
		}
	}
	if v := strings.TrimSpace(identityFlag); v != "" {
		id.Name = v
	}
	if v := strings.TrimSpace(tokenFlag); v != "" {
		id.Token = v
	}
	return id
}

// chatOptions translates configuration into chat options. The credential is
// passed explicitly; the chat package never reads the context file.
func chatOptions(cfg *config.Config, id chat.Identity) chat.Options {
	return chat.Options{
		Identity: id,
		History: chat.NewHTTPHistoryLoader(chat.HTTPHistoryConfig{
			URLFor:  cfg.HistoryURL,
			Token:   id.Token,
			Timeout: cfg.API.RequestTimeout,
		}),
		LiveURL:             cfg.LiveURL,
		HandshakeTimeout:    cfg.API.HandshakeTimeout,
		AuthenticateChannel: cfg.API.AuthenticateChannel,
		Reconnect: chat.ReconnectPolicy{
			Enabled:     cfg.Reconnect.Enabled,
			Initial:     cfg.Reconnect.Initial,
			Max:         cfg.Reconnect.Max,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		MaxMessages:    cfg.Chat.MaxMessages,
		OptimisticEcho: cfg.Chat.OptimisticEcho,
		EchoWindow:     cfg.Chat.EchoWindow,
	}
}

// openRecorder opens the transcript archive when enabled. The returned
// closer is always non-nil.
func openRecorder(cfg *config.Config) (chat.Recorder, io.Closer, error) {
	if !cfg.Transcript.Enabled {
		return nil, nopCloser{}, nil
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	archive, err := transcript.Open(cfg.TranscriptPath())
	if err != nil {
		return nil, nil, err
	}
	return archive, archive, nil
}

// newChatClient builds a client for the current command, wiring the
// transcript archive as recorder when enabled.
func newChatClient() (*chat.Client, chat.Identity, io.Closer, error) {
	cfg := GetConfig()
	id := resolveIdentity(cfg, GetContext())
	if err := id.Validate(); err != nil {
		return nil, id, nil, Exitf(ExitCodeUsage, "identity %q: %w", id.Name, err)
	}
	opts := chatOptions(cfg, id)

	recorder, closer, err := openRecorder(cfg)
	if err != nil {
		return nil, id, nil, Exitf(ExitCodeFailure, "open transcript: %v", err)
	}
	opts.Recorder = recorder

	logger := logging.Component("cli")
	logger.Debug().
		Str("identity", id.Name).
		Bool("credential", id.Token != "").
		Bool("transcript", recorder != nil).
		Msg("chat client configured")

	return chat.NewClient(opts), id, closer, nil
}

// rememberRoom stores roomID as the last joined room.
func rememberRoom(roomID string) {
	if contextStore == nil {
		return
	}
	ctx := GetContext()
	ctx.SetRoom(roomID)
	if err := contextStore.Save(ctx); err != nil {
		logger := logging.Component("cli")
		logger.Warn().Err(err).Msg("failed to save context")
	}
}

// roomArg returns the room from args, falling back to the last joined room.
func roomArg(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return GetContext().LastRoom
}

// waitOpen blocks until the session's live channel opens or fails.
func waitOpen(ctx context.Context, s *chat.Session, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		switch s.State() {
		case chat.StateOpen:
			return nil
		case chat.StateClosed:
			if err := s.ConnErr(); err != nil {
				return err
			}
			return chat.ErrNotOpen
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return chat.ErrNotOpen
		case <-s.Done():
			return chat.ErrClosed
		case <-s.Updates():
		}
	}
}
