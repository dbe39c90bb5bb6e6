package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/qiufen/pkg/config"
)

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	tests := []struct {
		name string
		file string
		opts initOptions
	}{
		{
			name: "yaml with endpoint",
			file: "qiufen.yaml",
			opts: initOptions{port: 9406, endpoint: "https://api.example.com/graphql"},
		},
		{
			name: "json with schema file",
			file: "qiufen.json",
			opts: initOptions{port: 8080, schemaFile: "schema.graphql", operations: []string{"ops/**/*.graphql"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.output = filepath.Join(t.TempDir(), tt.file)
			var stdout bytes.Buffer
			require.NoError(t, runInit(tt.opts, &stdout))
			assert.Contains(t, stdout.String(), "Created ")

			cfg, err := config.Load(tt.opts.output)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.opts.port, cfg.Port)
			assert.Equal(t, tt.opts.endpoint, cfg.Endpoint.URL)
			assert.Equal(t, tt.opts.schemaFile, cfg.SchemaFile)
			assert.Equal(t, tt.opts.operations, cfg.Operations)
		})
	}
}

func TestRunInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qiufen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 1\n"), 0o600))

	opts := initOptions{output: path, port: 9406, endpoint: "http://localhost:4000/graphql"}
	err := runInit(opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	opts.force = true
	require.NoError(t, runInit(opts, &bytes.Buffer{}))
}

func TestRunInit_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qiufen.yaml")

	err := runInit(initOptions{output: path, port: 9406}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrMissingEndpoint)

	err = runInit(initOptions{output: path, port: 0, endpoint: "http://x"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrMissingPort)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing written on invalid input")
}
