package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/transcript"
)

func newTranscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript [room]",
		Short: "Show locally archived live messages",
		Long: `Show live messages archived on this machine. Archiving is enabled with
transcript.enabled in the config file. Without a room, lists archived rooms.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTranscript,
	}
	cmd.Flags().IntP("limit", "n", 50, "newest N messages to show (0 = all)")
	return cmd
}

func runTranscript(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return usageError(cmd, "--limit must not be negative")
	}

	path := GetConfig().TranscriptPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Exitf(ExitCodeFailure, "no transcript at %s (set transcript.enabled: true to start archiving)", path)
		}
		return Exitf(ExitCodeFailure, "stat transcript: %v", err)
	}

	archive, err := transcript.Open(path)
	if err != nil {
		return Exitf(ExitCodeFailure, "open transcript: %v", err)
	}
	defer archive.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		rooms, err := archive.Rooms(ctx)
		if err != nil {
			return Exitf(ExitCodeFailure, "list rooms: %v", err)
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, rooms)
		}
		rows := make([][]string, 0, len(rooms))
		for _, room := range rooms {
			rows = append(rows, []string{room})
		}
		return writeTable(out, 0, []column{{Header: "ROOM"}}, rows)
	}

	roomID := args[0]
	entries, err := archive.List(ctx, roomID, limit)
	if err != nil {
		return Exitf(ExitCodeFailure, "list transcript: %v", err)
	}
	id := resolveIdentity(GetConfig(), GetContext())

	if IsJSONOutput() || IsJSONLOutput() {
		msgs := make([]chat.ChatMessage, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, e.Message())
		}
		return writeMessages(out, roomID, id, msgs)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		sent := "-"
		if e.Timestamp != nil {
			sent = e.Timestamp.Local().Format("2006-01-02 15:04:05")
		}
		sender := terminalSafe(e.Sender)
		if id.IsOwn(e.Message()) {
			sender = "*" + sender
		}
		rows = append(rows, []string{sent, sender, oneLine(e.Content)})
	}
	return writeTable(out, tableWidth(out), transcriptColumns, rows)
}

var transcriptColumns = []column{
	{Header: "SENT"},
	{Header: "SENDER", MaxWidth: chat.MaxIdentityLength + 1},
	{Header: "MESSAGE"},
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(terminalSafe(s)), " ")
}
