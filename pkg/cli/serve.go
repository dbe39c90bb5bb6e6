package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/qiufen/internal/netutil"
	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/logging"
	"github.com/getmockd/qiufen/pkg/server"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 10 * time.Second

// serveFlags holds the flag values of the serve command. Only flags the
// user set override the configuration file.
type serveFlags struct {
	port       int
	host       string
	path       string
	endpoint   string
	schemaFile string
	operations []string
	seed       int64
	listSize   int
	logLevel   string
	logFormat  string
	logFile    string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock GraphQL server (foreground)",
	Long: `Start the mock server. The schema is loaded once at startup; send SIGHUP
to reload the configuration, schema and operations without restarting the
process.`,
	Example: `  # Serve using qiufen.yaml from the working directory
  qiufen serve

  # Mock a remote API on port 9406
  qiufen serve --endpoint https://api.example.com/graphql --port 9406

  # Serve a local schema with seeded random values
  qiufen serve --schema schema.graphql --port 9406 --seed 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serveConfig(cmd, configPath, &serveFlagVals)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		return runServe(ctx, cfg, serveFlagVals.logFile, hup, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&f.host, "host", "", "Host to bind (default: all interfaces)")
	serveCmd.Flags().StringVar(&f.path, "path", "", "GraphQL endpoint path (default: /)")
	serveCmd.Flags().StringVarP(&f.endpoint, "endpoint", "e", "", "URL of the GraphQL API whose schema is mocked")
	serveCmd.Flags().StringVarP(&f.schemaFile, "schema", "s", "", "Local SDL or introspection JSON file instead of --endpoint")
	serveCmd.Flags().StringSliceVar(&f.operations, "operations", nil, "Glob patterns of .graphql operation documents")
	serveCmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for random mock values (default: fixed values)")
	serveCmd.Flags().IntVar(&f.listSize, "list-size", config.DefaultListSize, "Number of elements in generated lists")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	serveCmd.Flags().StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
}

// serveConfig loads the configuration file and applies the flags the user
// set on top of it.
func serveConfig(cmd *cobra.Command, path string, f *serveFlags) (*config.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("path") {
		cfg.Path = f.path
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint.URL = f.endpoint
	}
	if flags.Changed("schema") {
		wd, _ := os.Getwd()
		cfg.SchemaFile = config.ResolvePath(wd, f.schemaFile)
	}
	if flags.Changed("operations") {
		cfg.Operations = f.operations
	}
	if flags.Changed("seed") {
		seed := f.seed
		cfg.Seed = &seed
	}
	if flags.Changed("list-size") {
		n := f.listSize
		cfg.ListSize = &n
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg, teeing JSON records into
// logFile when one is given. The returned closer releases the file.
func newLogger(cfg *config.Config, logFile string, stderr io.Writer) (*slog.Logger, func(), error) {
	console := logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: stderr,
	}
	if logFile == "" {
		return logging.New(console), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logging.Config{Level: console.Level, Format: logging.FormatJSON, Output: f}
	return logging.New(console, file), func() { _ = f.Close() }, nil
}

// runServe starts the server for cfg and blocks until ctx is done. Every
// value received on reload swaps the running instance for one built from a
// freshly loaded snapshot; a failed reload keeps the current instance.
func runServe(ctx context.Context, cfg *config.Config, logFile string, reload <-chan os.Signal, stdout, stderr io.Writer) error {
	log, closeLog, err := newLogger(cfg, logFile, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	snap, err := loadSnapshot(ctx, cfg, log, stderr)
	if err != nil {
		return err
	}

	var current atomic.Pointer[server.Server]
	srv := server.New(server.WithLogger(log))
	if err := srv.Start(snap.cfg, snap.schema, snap.catalog); err != nil {
		return err
	}
	current.Store(srv)
	printBanner(stdout, snap)

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return current.Load().Stop(stopCtx)

		case <-reload:
			log.Info("reloading configuration")
			next, err := reloadSnapshot(ctx, log, stderr)
			if err != nil {
				log.Error("reload failed, keeping current instance", "error", err)
				continue
			}
			if snap, err = swap(&current, snap, next, log); err != nil {
				return err
			}
			printBanner(stdout, snap)
		}
	}
}

// reloadSnapshot re-reads the configuration file the process started with.
// Flags given at startup are not reapplied.
func reloadSnapshot(ctx context.Context, log *slog.Logger, stderr io.Writer) (*snapshot, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return loadSnapshot(ctx, cfg, log, stderr)
}

// swap stops the running instance and starts one for next. When the new
// instance cannot start, the previous snapshot is served again. It returns
// the snapshot being served.
func swap(current *atomic.Pointer[server.Server], prev, next *snapshot, log *slog.Logger) (*snapshot, error) {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := current.Load().Stop(stopCtx); err != nil {
		log.Warn("stopping previous instance", "error", err)
	}

	serving := next
	srv := server.New(server.WithLogger(log))
	if err := srv.Start(next.cfg, next.schema, next.catalog); err != nil {
		log.Error("starting reloaded instance failed, restoring previous", "error", err)
		if restoreErr := srv.Start(prev.cfg, prev.schema, prev.catalog); restoreErr != nil {
			return nil, fmt.Errorf("restoring previous instance: %w", restoreErr)
		}
		serving = prev
	}
	current.Store(srv)
	return serving, nil
}

func printBanner(w io.Writer, snap *snapshot) {
	cfg := snap.cfg
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = netutil.LocalIP()
	}
	source := cfg.Endpoint.URL
	if cfg.SchemaFile != "" {
		source = cfg.ResolvedSchemaFile()
	}
	fmt.Fprintf(w, "qiufen mocking %s\n", source)
	fmt.Fprintf(w, "  GraphQL:    http://%s%s\n", joinAddr(host, cfg.Port), cfg.Path)
	fmt.Fprintf(w, "  Operations: http://%s%s (%d)\n", joinAddr(host, cfg.Port), server.OperationsPath, snap.catalog.Len())
	fmt.Fprintf(w, "  Metrics:    http://%s%s\n", joinAddr(host, cfg.Port), server.MetricsPath)
}

func joinAddr(host string, port int) string {
	cfg := config.Config{Host: host, Port: port}
	return cfg.Addr()
}
