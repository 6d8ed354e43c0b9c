package cli

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history [room]",
		Aliases: []string{"log"},
		Short:   "Print a room's stored history",
		Long:    "Fetch a room's persisted history from the backend once and print it.",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runHistory,
	}
	cmd.Flags().IntP("limit", "n", 0, "print only the newest N messages")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	roomID := roomArg(args)
	if roomID == "" {
		return usageError(cmd, "room id is required")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return usageError(cmd, "--limit must not be negative")
	}

	cfg := GetConfig()
	id := resolveIdentity(cfg, GetContext())
	loader := chatOptions(cfg, id).History

	msgs, err := loader.Load(cmd.Context(), roomID)
	if err != nil {
		return chatExit("load history", err)
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if len(msgs) == 0 && !IsJSONOutput() && !IsJSONLOutput() {
		if !IsQuiet() {
			cmd.PrintErrf("no messages in #%s\n", roomID)
		}
		return nil
	}
	return writeMessages(cmd.OutOrStdout(), roomID, id, msgs)
}
