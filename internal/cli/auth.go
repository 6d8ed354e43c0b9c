package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/chat"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <identity>",
		Short: "Store the identity and credential used by other commands",
		Long: `Store a display identity and backend credential in the context file.
The credential is sent as "Authorization: Token <value>" when loading history.`,
		Example: `  roomchat login alice --token 3f9c...
  ROOMCHAT_IDENTITY_TOKEN=3f9c... roomchat login alice`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	identity := strings.TrimSpace(args[0])
	if identity == "" {
		return usageError(cmd, "identity is required")
	}
	if err := (chat.Identity{Name: identity}).Validate(); err != nil {
		return usageError(cmd, err.Error())
	}
	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(GetConfig().Identity.Token)
	}
	if token == "" {
		return usageError(cmd, "a credential is required; pass --token")
	}

	ctx := GetContext()
	ctx.SetLogin(identity, token)
	if err := contextStore.Save(ctx); err != nil {
		return Exitf(ExitCodeFailure, "save context: %v", err)
	}

	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(cmd.OutOrStdout(), map[string]any{
			"identity":  identity,
			"logged_in": true,
			"path":      contextStore.Path(),
		})
	}
	if !IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", identity)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity and credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := contextStore.Clear(); err != nil {
				return Exitf(ExitCodeFailure, "clear context: %v", err)
			}
			appContext.Clear()
			if !IsQuiet() && !IsJSONOutput() {
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			}
			return nil
		},
	}
}

func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show the stored identity and last room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(cmd.OutOrStdout(), map[string]any{
					"identity":       ctx.Identity,
					"has_credential": ctx.HasCredential(),
					"last_room":      ctx.LastRoom,
					"path":           contextStore.Path(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.String())
			return nil
		},
	}
}
