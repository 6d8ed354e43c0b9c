package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/logging"
)

// TailConfig configures message streaming.
type TailConfig struct {
	// PollInterval re-reads the store in case an update was dropped.
	PollInterval time.Duration

	// SkipHistory prints only live messages.
	SkipHistory bool

	// Count stops after this many live messages (0 = until interrupted).
	Count int

	// Reconnect keeps streaming after a drop while the channel retries.
	Reconnect bool
}

// DefaultTailConfig returns the streaming defaults.
func DefaultTailConfig() TailConfig {
	return TailConfig{PollInterval: 250 * time.Millisecond}
}

// messageTail prints a session's messages in order: the history first, once
// it settles, then each live message as it arrives.
type messageTail struct {
	session *chat.Session
	out     io.Writer
	errOut  io.Writer
	config  TailConfig

	historyDone bool
	lastSeq     uint64
	liveCount   int
}

func newMessageTail(s *chat.Session, out, errOut io.Writer, config TailConfig) *messageTail {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultTailConfig().PollInterval
	}
	return &messageTail{session: s, out: out, errOut: errOut, config: config}
}

// Stream runs until ctx ends, the session closes or Count is reached.
// Returns nil on graceful shutdown.
func (t *messageTail) Stream(ctx context.Context) error {
	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	for {
		done, err := t.flush()
		if err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.session.Done():
			return nil
		case u := <-t.session.Updates():
			if u.Kind == chat.UpdateConnection && u.State == chat.StateClosed {
				if t.config.Reconnect {
					if !IsQuiet() && t.errOut != nil {
						fmt.Fprintf(t.errOut, "disconnected: %v; reconnecting\n", u.Err)
					}
					continue
				}
				if _, err := t.flush(); err != nil {
					return fmt.Errorf("failed to write message: %w", err)
				}
				if u.Err != nil {
					return fmt.Errorf("live channel closed: %w", u.Err)
				}
				return nil
			}
		case <-ticker.C:
		}
	}
}

// flush prints whatever has not been printed yet. History is printed once;
// live messages are tracked by sequence number.
func (t *messageTail) flush() (bool, error) {
	if !t.historyDone && !t.config.SkipHistory {
		status := t.session.History()
		switch status.State {
		case chat.HistoryPending:
			return false, nil
		case chat.HistoryFailed:
			if !IsQuiet() && t.errOut != nil {
				fmt.Fprintf(t.errOut, "history unavailable: %v\n", status.Err)
			}
		}
	}

	var batch []chat.ChatMessage
	for _, m := range t.session.Messages() {
		if m.Pending {
			continue
		}
		switch m.Source {
		case chat.SourceHistory:
			if !t.historyDone && !t.config.SkipHistory {
				batch = append(batch, m)
			}
		case chat.SourceLive:
			if m.Seq <= t.lastSeq || t.reachedCount() {
				continue
			}
			batch = append(batch, m)
			t.lastSeq = m.Seq
			t.liveCount++
		}
	}
	t.historyDone = true

	if err := writeMessageStream(t.out, t.session.RoomID(), t.session.Identity(), batch); err != nil {
		return false, err
	}
	return t.reachedCount(), nil
}

func (t *messageTail) reachedCount() bool {
	return t.config.Count > 0 && t.liveCount >= t.config.Count
}

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail [room]",
		Short: "Stream a room's messages to stdout",
		Long: `Print a room's history followed by live messages as they arrive.
Use --jsonl for one JSON object per message.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTail,
	}
	cmd.Flags().Bool("no-history", false, "print only live messages")
	cmd.Flags().IntP("count", "n", 0, "exit after this many live messages")
	return cmd
}

func runTail(cmd *cobra.Command, args []string) error {
	roomID := roomArg(args)
	if roomID == "" {
		return usageError(cmd, "room id is required")
	}
	skipHistory, _ := cmd.Flags().GetBool("no-history")
	count, _ := cmd.Flags().GetInt("count")
	if count < 0 {
		return usageError(cmd, "--count must not be negative")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, _, closer, err := newChatClient()
	if err != nil {
		return err
	}
	defer closer.Close()
	defer client.Leave()

	session, err := client.Enter(ctx, roomID)
	if err != nil {
		return chatExit("join room", err)
	}
	rememberRoom(roomID)

	config := DefaultTailConfig()
	config.SkipHistory = skipHistory
	config.Count = count
	config.Reconnect = GetConfig().Reconnect.Enabled

	logger := logging.FromContext(ctx)
	logger.Debug().Str("room", roomID).Bool("skip_history", skipHistory).Msg("tail started")
	if err := newMessageTail(session, cmd.OutOrStdout(), cmd.ErrOrStderr(), config).Stream(ctx); err != nil {
		return chatExit("tail", err)
	}
	return nil
}
