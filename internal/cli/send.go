package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/logging"
)

const defaultEchoWait = 5 * time.Second

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <room> [message...]",
		Short: "Send one message to a room",
		Long: `Connect to a room's live channel, send one message and leave.
The message is read from stdin when no message argument is given.`,
		Example: `  roomchat send 42 "hello there"
  echo "build finished" | roomchat send 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSend,
	}
	cmd.Flags().Bool("no-wait", false, "do not wait for the server echo")
	cmd.Flags().Duration("timeout", 0, "how long to wait for the channel to open (default: handshake timeout)")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	roomID := strings.TrimSpace(args[0])
	if roomID == "" {
		return usageError(cmd, "room id is required")
	}
	body, err := resolveSendBody(cmd, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	noWait, _ := cmd.Flags().GetBool("no-wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = GetConfig().API.HandshakeTimeout
	}

	client, id, closer, err := newChatClient()
	if err != nil {
		return err
	}
	defer closer.Close()
	defer client.Leave()

	if strings.TrimSpace(id.Name) == "" {
		return Exitf(ExitCodeUsage, "no identity set; use --identity or `roomchat login`")
	}

	ctx := cmd.Context()
	session, err := client.Enter(ctx, roomID)
	if err != nil {
		return chatExit("join room", err)
	}
	if err := waitOpen(ctx, session, timeout); err != nil {
		return chatExit("connect", err)
	}
	if err := session.Send(body); err != nil {
		return chatExit("send", err)
	}

	echoed := false
	if !noWait {
		echoed = waitEcho(ctx, session, body, defaultEchoWait)
		if !echoed {
			logger := logging.FromContext(ctx)
			logger.Warn().Str("room", roomID).Msg("no echo received for sent message")
		}
	}

	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(cmd.OutOrStdout(), map[string]any{
			"room":   roomID,
			"sender": id.Name,
			"sent":   true,
			"echoed": echoed,
		})
	}
	if !IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "sent to #%s as %s\n", roomID, id.Name)
	}
	return nil
}

// waitEcho waits for the live channel to return body from this identity.
func waitEcho(ctx context.Context, s *chat.Session, body string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, m := range s.Messages() {
			if m.Source == chat.SourceLive && !m.Pending && s.IsOwn(m) && m.Content == body {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.Updates():
		case <-ticker.C:
		}
	}
}

func resolveSendBody(cmd *cobra.Command, bodyArg string) (string, error) {
	raw := bodyArg
	if strings.TrimSpace(raw) == "" || raw == "-" {
		data, err := readStdinIfPiped()
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read stdin: %v", err)
		}
		raw = strings.TrimRight(data, "\n")
	}
	if strings.TrimSpace(raw) == "" {
		return "", usageError(cmd, "message body is required")
	}
	return raw, nil
}

func readStdinIfPiped() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
