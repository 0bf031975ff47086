package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mofa-org/dorabridge/cmd/mofa-bridge/internal/config"
	"github.com/mofa-org/dorabridge/pkg/cli"
)

var (
	verbose      bool
	contextName  string
	formatOutput string
	outputFile   string

	globalConfig  *config.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "mofa-bridge",
	Short: "Run MoFA widget bridges for dora dataflows",
	Long: `mofa-bridge - inspect MoFA dataflows and run their widget bridges.

Widget nodes (mofa-audio-player, mofa-system-log, mofa-prompt-input,
mofa-mic-input, mofa-chat-viewer, mofa-participant-panel and
mofa-cast-controller) are declared with "path: dynamic" in a dataflow.
mofa-bridge registers one bridge per widget node with a dora node gateway.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/mofa-bridge/
  Linux:   ~/.config/mofa-bridge/
  Windows: %AppData%/mofa-bridge/

Examples:
  mofa-bridge parse voice-chat.yml -o json
  mofa-bridge env voice-chat.yml
  mofa-bridge config add-context local
  mofa-bridge config set local engine addr ws://127.0.0.1:6060
  mofa-bridge config use-context local
  mofa-bridge run voice-chat.yml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(slog.LevelInfo)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "config context (default: current context)")
}

// addOutputFlags registers -o and --output-file on cmd.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&formatOutput, "output", "o", "yaml", "output format: yaml, json or table")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "write the result to a file")
}

func output(result any) error {
	format, err := cli.ParseOutputFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputFile})
}

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		configLoadErr = err
		globalConfig = nil
		return
	}
	configLoadErr = nil
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// setupLogging installs the default slog handler. --verbose forces debug.
func setupLogging(level slog.Level) {
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}
