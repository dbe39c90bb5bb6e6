package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qiufen",
	Short: "qiufen mocks a GraphQL API from its schema",
	Long: `qiufen serves mock responses for a GraphQL API. It loads the schema from a
live endpoint (via introspection) or a local file and answers every query,
mutation and subscription with data generated from that schema.

Configuration is read from qiufen.yaml, qiufen.yml or qiufen.json in the
current directory, from $QIUFEN_CONFIG, or from --config. Run 'qiufen init'
to create one.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command and exits non-zero on failure. This is
// called by main.main().
func Execute() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: discover qiufen.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
