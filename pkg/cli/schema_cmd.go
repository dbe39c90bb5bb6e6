package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/logging"
)

var (
	schemaEndpoint string
	schemaOutput   string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema being mocked",
	Long: `Load the schema the same way 'serve' does and print it as SDL, or as an
introspection result with --json. Handy for snapshotting a remote schema
into a local schemaFile.`,
	Example: `  # Snapshot a remote schema
  qiufen schema --endpoint https://api.example.com/graphql -o schema.graphql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("endpoint") {
			cfg.Endpoint.URL = schemaEndpoint
			cfg.SchemaFile = ""
		}

		out := cmd.OutOrStdout()
		if schemaOutput != "" {
			f, err := os.Create(schemaOutput)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		return runSchema(cmd.Context(), cfg, jsonOutput, out, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaEndpoint, "endpoint", "e", "", "URL of the GraphQL API (overrides the configuration)")
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runSchema(ctx context.Context, cfg *config.Config, asJSON bool, stdout, stderr io.Writer) error {
	log := logging.FromStrings(cfg.Log.Level, cfg.Log.Format, stderr)
	s, err := loadSchema(ctx, cfg, log)
	if err != nil {
		return err
	}
	if !asJSON {
		_, err := fmt.Fprint(stdout, s.SDL())
		return err
	}
	data, err := s.IntrospectionJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "{\"data\":{\"__schema\":%s}}\n", data)
	return err
}
