package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/getmockd/qiufen/pkg/cli/internal/output"
	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/operation"
	"github.com/getmockd/qiufen/pkg/schema"
)

// snapshot is everything one server instance is built from.
type snapshot struct {
	cfg     *config.Config
	schema  *schema.Schema
	catalog *operation.Catalog
}

// loadConfig reads the configuration at path, or discovers one in the
// working directory. A missing discovered file yields a defaulted empty
// config so flags alone can drive the command.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := config.Discover(wd)
		if errors.Is(err, config.ErrNoConfig) {
			cfg := &config.Config{BaseDir: wd}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

// loadSchema reads cfg's schema file, or fetches the schema from its
// endpoint.
func loadSchema(ctx context.Context, cfg *config.Config, log *slog.Logger) (*schema.Schema, error) {
	if file := cfg.ResolvedSchemaFile(); file != "" {
		s, err := schema.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("loading schema: %w", err)
		}
		return s, nil
	}
	if cfg.Endpoint.URL == "" {
		return nil, fmt.Errorf("loading schema: %w", config.ErrMissingEndpoint)
	}
	loader := schema.NewLoader(
		schema.WithHeaders(cfg.Endpoint.Headers),
		schema.WithTimeout(cfg.Endpoint.TimeoutDuration()),
		schema.WithLogger(log),
	)
	s, err := loader.Load(ctx, cfg.Endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return s, nil
}

// loadCatalog reads cfg's operation documents. Without patterns, or with
// discover set, operations are generated from the schema instead.
func loadCatalog(cfg *config.Config, s *schema.Schema, discover bool, depth int, stderr io.Writer) (*operation.Catalog, error) {
	if discover || len(cfg.Operations) == 0 {
		return operation.Discover(s, operation.DiscoverOptions{Depth: depth}), nil
	}
	docs, err := operation.LoadFiles(cfg.Operations, cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("loading operations: %w", err)
	}
	cat := operation.Parse(docs...)
	for _, e := range cat.Errors {
		output.Warn(stderr, "%v", e)
	}
	return cat, nil
}

// loadSnapshot loads the schema and operations for an already validated
// configuration.
func loadSnapshot(ctx context.Context, cfg *config.Config, log *slog.Logger, stderr io.Writer) (*snapshot, error) {
	s, err := loadSchema(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg, s, false, 0, stderr)
	if err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, schema: s, catalog: cat}, nil
}
