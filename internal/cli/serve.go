package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/devserver"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development chat backend",
		Long: `Run an in-memory chat backend that serves the history endpoint and the
live channel at the configured paths. Credentials come from serve.tokens;
with none configured any non-empty token is accepted.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default: serve.addr)")
	cmd.Flags().StringToString("token", nil, "accepted credential as token=identity (repeatable)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	addr, _ := cmd.Flags().GetString("addr")
	if strings.TrimSpace(addr) == "" {
		addr = cfg.Serve.Addr
	}

	tokens := make(map[string]string, len(cfg.Serve.Tokens))
	for token, identity := range cfg.Serve.Tokens {
		tokens[token] = identity
	}
	extra, _ := cmd.Flags().GetStringToString("token")
	for token, identity := range extra {
		tokens[token] = identity
	}

	server := devserver.New(devserver.Config{
		HistoryPath: cfg.API.HistoryPath,
		LivePath:    cfg.API.LivePath,
		Tokens:      tokens,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !IsQuiet() {
		cmd.PrintErrf("serving chat backend on http://%s (ctrl-c to stop)\n", addr)
	}
	if err := server.ListenAndServe(ctx, addr); err != nil {
		return Exitf(ExitCodeFailure, "serve: %v", err)
	}
	return nil
}
