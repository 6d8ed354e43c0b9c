package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/roomchat/internal/roomtui"
)

func newJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join [room]",
		Short: "Open the chat view for a room",
		Long: `Open the full-screen chat view for a room. Without an argument the last
joined room is used. Inside the view, /join <room> switches rooms.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runJoin,
	}
	cmd.Flags().String("theme", "", "color theme (default, high-contrast)")
	cmd.Flags().Bool("no-timestamps", false, "hide message timestamps")
	return cmd
}

func runJoin(cmd *cobra.Command, args []string) error {
	roomID := roomArg(args)
	if roomID == "" {
		return usageError(cmd, "room id is required")
	}
	if !hasTTY() {
		return Exitf(ExitCodeUsage, "join requires an interactive terminal; use `roomchat tail %s` instead", roomID)
	}

	cfg := GetConfig()
	theme, _ := cmd.Flags().GetString("theme")
	if theme == "" {
		theme = cfg.TUI.Theme
	}
	noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")

	client, _, closer, err := newChatClient()
	if err != nil {
		return err
	}
	defer closer.Close()

	rememberRoom(roomID)

	return roomtui.Run(cmd.Context(), roomtui.Options{
		Client:         client,
		RoomID:         roomID,
		Theme:          theme,
		ShowTimestamps: cfg.TUI.ShowTimestamps && !noTimestamps,
	})
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
