package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/getmockd/qiufen/internal/netutil"
	"github.com/getmockd/qiufen/pkg/config"
)

// DefaultPort is the port suggested by init.
const DefaultPort = 9406

type initOptions struct {
	output     string
	force      bool
	port       int
	endpoint   string
	schemaFile string
	operations []string
}

var initFlagVals initOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a qiufen configuration file",
	Long: `Create a starter configuration file. Without --endpoint or --schema-file an
interactive form asks for the values.`,
	Example: `  # Interactive
  qiufen init

  # Non-interactive
  qiufen init --endpoint https://api.example.com/graphql --port 9406`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initFlagVals
		if !cmd.Flags().Changed("endpoint") && !cmd.Flags().Changed("schema-file") {
			if err := initForm(&opts); err != nil {
				return err
			}
		}
		return runInit(opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	f := &initFlagVals
	initCmd.Flags().StringVarP(&f.output, "output", "o", config.DiscoveryOrder[0], "Output filename (.yaml, .yml or .json)")
	initCmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing file")
	initCmd.Flags().IntVarP(&f.port, "port", "p", DefaultPort, "Port the mock server listens on")
	initCmd.Flags().StringVarP(&f.endpoint, "endpoint", "e", "", "URL of the GraphQL API to mock")
	initCmd.Flags().StringVar(&f.schemaFile, "schema-file", "", "Local schema file instead of an endpoint")
	initCmd.Flags().StringSliceVar(&f.operations, "operations", nil, "Glob patterns of operation documents")
}

// initForm asks for the values flags did not provide.
func initForm(opts *initOptions) error {
	if opts.port == DefaultPort && !netutil.IsAvailable("", DefaultPort) {
		if p := netutil.NextAvailable("", DefaultPort+1, 100); p != 0 {
			opts.port = p
		}
	}
	portStr := strconv.Itoa(opts.port)
	operations := strings.Join(opts.operations, ",")
	source := "endpoint"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where does the schema come from?").
				Options(
					huh.NewOption("A running GraphQL endpoint", "endpoint"),
					huh.NewOption("A local schema file", "file"),
				).
				Value(&source),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GraphQL endpoint URL").
				Placeholder("https://api.example.com/graphql").
				Value(&opts.endpoint).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return errors.New("must be an http(s) URL")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return source != "endpoint" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Schema file (SDL or introspection JSON)").
				Placeholder("schema.graphql").
				Value(&opts.schemaFile).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("schema file is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return source != "file" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Port for the mock server").
				Value(&portStr).
				Validate(func(s string) error {
					p, err := strconv.Atoi(s)
					if err != nil || p < 1 || p > 65535 {
						return errors.New("port must be between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("Operation documents (comma-separated globs, empty to discover)").
				Placeholder("operations/**/*.graphql").
				Value(&operations),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	opts.port, _ = strconv.Atoi(portStr)
	if source == "endpoint" {
		opts.schemaFile = ""
	} else {
		opts.endpoint = ""
	}
	opts.operations = nil
	for _, p := range strings.Split(operations, ",") {
		if p = strings.TrimSpace(p); p != "" {
			opts.operations = append(opts.operations, p)
		}
	}
	return nil
}

// runInit writes a starter configuration built from opts.
func runInit(opts initOptions, stdout io.Writer) error {
	if opts.output == "" {
		opts.output = config.DiscoveryOrder[0]
	}
	if _, err := os.Stat(opts.output); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", opts.output)
	}

	cfg := &config.Config{
		Port:       opts.port,
		Endpoint:   config.Endpoint{URL: opts.endpoint},
		SchemaFile: opts.schemaFile,
		Operations: opts.operations,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := config.Marshal(cfg, config.FormatFromPath(opts.output))
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", opts.output, err)
	}

	fmt.Fprintf(stdout, "Created %s\n", opts.output)
	fmt.Fprintln(stdout, "Start the mock server with: qiufen serve")
	return nil
}
