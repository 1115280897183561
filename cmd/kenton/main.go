// Command kenton is a research assistant CLI. It keeps per-session
// conversation memory and gives the model live HTTP API tools.
//
// # Basic Usage
//
//	kenton ask "What is the weather in London?"
//	kenton chat --session team-sync
//	kenton history --session team-sync
//	kenton tools list
//	kenton serve
//	kenton config init
//
// # Environment Variables
//
//   - KENTON_CONFIG: Path to configuration file
//   - OPENAI_API_KEY, OPENAI_BASE_URL, KENTON_MODEL: Model endpoint
//   - REDIS_URL, KENTON_STORE: Conversation storage
//   - WEATHER_API_KEY, NEWS_API_KEY, MARKET_DATA_KEY, FRED_KEY: Built-in tool credentials
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kenton-research/kenton/internal/logger"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "none"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	sessionID  string
	logLevel   string
}

func main() {
	err := buildRootCmd().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "kenton",
		Short: "Kenton - research assistant with conversation memory and live API tools",
		Long: `Kenton answers research questions with an LLM that can call HTTP APIs
(weather, markets, news, economic data). Each session remembers its recent
exchanges in memory, Redis or local files.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("KENTON_CONFIG"), "Path to YAML configuration file")
	root.PersistentFlags().StringVarP(&flags.sessionID, "session", "s", "", "Conversation session ID")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		buildAskCmd(flags),
		buildChatCmd(flags),
		buildHistoryCmd(flags),
		buildSummaryCmd(flags),
		buildClearCmd(flags),
		buildToolsCmd(flags),
		buildServeCmd(flags),
		buildConfigCmd(flags),
	)
	return root
}
