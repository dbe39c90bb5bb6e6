package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/qiufen/pkg/cli/internal/output"
	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/logging"
	"github.com/getmockd/qiufen/pkg/operation"
)

type operationsFlags struct {
	discover bool
	depth    int
	list     bool
}

var operationsFlagVals operationsFlags

var operationsCmd = &cobra.Command{
	Use:     "operations",
	Aliases: []string{"ops"},
	Short:   "Print the operation catalog",
	Long: `Print every operation and fragment in canonical form, grouped by kind.
Operations come from the configured documents, or are generated from the
schema with --discover (the default when no documents are configured).`,
	Example: `  # Canonical form of every configured operation
  qiufen operations

  # Operations generated from the schema, as the doc artifact JSON
  qiufen operations --discover --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return runOperations(cmd.Context(), cfg, operationsFlagVals, jsonOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(operationsCmd)
	operationsCmd.Flags().BoolVar(&operationsFlagVals.discover, "discover", false, "Generate operations from the schema")
	operationsCmd.Flags().IntVar(&operationsFlagVals.depth, "depth", operation.DefaultDiscoverDepth, "Selection depth of discovered operations")
	operationsCmd.Flags().BoolVarP(&operationsFlagVals.list, "list", "l", false, "List names and kinds only")
}

func runOperations(ctx context.Context, cfg *config.Config, f operationsFlags, asJSON bool, stdout, stderr io.Writer) error {
	cat, err := catalogFor(ctx, cfg, f, stderr)
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		return output.JSON(stdout, cat.Entries())
	case f.list:
		tw := output.Table(stdout)
		fmt.Fprintln(tw, "NAME\tKIND\tDOCUMENT")
		for _, rec := range cat.Records() {
			name := rec.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, rec.Kind, rec.Document)
		}
		return tw.Flush()
	}

	printed := operation.PrintBatch(cat.Records())
	if printed != "" {
		fmt.Fprintln(stdout, printed)
	}
	return nil
}

// catalogFor loads documents when they are configured and discovery was not
// asked for; only then is the schema not needed.
func catalogFor(ctx context.Context, cfg *config.Config, f operationsFlags, stderr io.Writer) (*operation.Catalog, error) {
	if !f.discover && len(cfg.Operations) > 0 {
		docs, err := operation.LoadFiles(cfg.Operations, cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("loading operations: %w", err)
		}
		if len(docs) == 0 {
			output.Warn(stderr, "no documents match %s", strings.Join(cfg.Operations, ", "))
		}
		cat := operation.Parse(docs...)
		for _, e := range cat.Errors {
			output.Warn(stderr, "%v", e)
		}
		return cat, nil
	}

	log := logging.FromStrings(cfg.Log.Level, cfg.Log.Format, stderr)
	s, err := loadSchema(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return loadCatalog(cfg, s, true, f.depth, stderr)
}
