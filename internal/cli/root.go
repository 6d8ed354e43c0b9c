// Package cli implements the roomchat command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/config"
	"github.com/tOgg1/roomchat/internal/logging"
)

var (
	cfgFile      string
	logLevel     string
	jsonOutput   bool
	jsonlOutput  bool
	quiet        bool
	identityFlag string
	tokenFlag    string
	baseURLFlag  string

	appConfig    *config.Config
	appContext   *config.Context
	contextStore *config.ContextStore

	// logSink is closed when the command finishes.
	logSink io.Closer
)

// Execute runs the root command.
func Execute(version string) error {
	root := newRootCmd(version)
	defer closeLogSink()
	return root.Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roomchat",
		Short: "Real-time room chat client",
		Long: `roomchat joins a chat room: it loads the room's history, subscribes to
the live channel and keeps both in one ordered message list.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version,
		PersistentPreRunE: initApp,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/roomchat/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output in JSON Lines format (for streaming)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	flags.StringVar(&identityFlag, "identity", "", "display identity for outgoing messages")
	flags.StringVar(&tokenFlag, "token", "", "backend credential (overrides the stored login)")
	flags.StringVar(&baseURLFlag, "base-url", "", "backend REST origin, e.g. http://127.0.0.1:8000")

	cmd.AddCommand(
		newJoinCmd(),
		newTailCmd(),
		newHistoryCmd(),
		newSendCmd(),
		newTranscriptCmd(),
		newServeCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newContextCmd(),
	)

	return cmd
}

// initApp loads configuration, applies flag overrides and the stored login,
// then initialises logging.
func initApp(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return Exitf(ExitCodeConfig, "%v", err)
	}

	if baseURLFlag != "" {
		cfg.API.BaseURL = strings.TrimSpace(baseURLFlag)
	}
	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return Exitf(ExitCodeUsage, "invalid --log-level %q", logLevel)
		}
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return Exitf(ExitCodeConfig, "config validation failed: %v", err)
	}

	store := config.NewContextStore(cfg.ContextPath())
	ctx, err := store.Load()
	if err != nil {
		return Exitf(ExitCodeConfig, "%v", err)
	}

	appConfig = cfg
	appContext = ctx
	contextStore = store

	initLogging(cfg, cmd)

	logger := logging.Component("cli")
	logger.Debug().
		Str("command", cmd.Name()).
		Str("config_file", loader.ConfigFileUsed()).
		Interface("settings", logging.RedactMap(loader.Settings())).
		Msg("configuration loaded")
	cmd.SetContext(logging.WithContext(cmd.Context(), logger.With().Str("command", cmd.Name()).Logger()))
	return nil
}

// initLogging routes logs to stderr, or for the full-screen view to the
// configured log file or nowhere.
func initLogging(cfg *config.Config, cmd *cobra.Command) {
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if quiet && logLevel == "" {
		logCfg.Level = "error"
	}

	if cmd.Name() == "join" {
		logCfg.Output = io.Discard
		if cfg.Logging.File != "" {
			f, err := logging.OpenFile(cfg.Logging.File)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v; logs discarded\n", err)
			} else {
				logCfg.Output = f
				logSink = f
			}
		}
	}

	logging.Init(logCfg)
}

func closeLogSink() {
	if logSink != nil {
		_ = logSink.Close()
		logSink = nil
	}
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// GetContext returns the stored session context.
func GetContext() *config.Context {
	if appContext == nil {
		return &config.Context{}
	}
	return appContext
}
