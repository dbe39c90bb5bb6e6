package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("QIUFEN_TEST_TOKEN", "s3cret")
	dir := t.TempDir()
	path := writeFile(t, dir, "qiufen.yaml", `
port: 9406
endpoint:
  url: https://api.example.com/graphql
  headers:
    Authorization: Bearer ${QIUFEN_TEST_TOKEN}
    X-Env: ${QIUFEN_TEST_MISSING:-dev}
operations:
  - "ops/**/*.graphql"
listSize: 0
seed: 7
overrides:
  User.name: Ada
  Post:
    title: Pinned
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9406, cfg.Port)
	assert.Equal(t, "https://api.example.com/graphql", cfg.Endpoint.URL)
	assert.Equal(t, "Bearer s3cret", cfg.Endpoint.Headers["Authorization"])
	assert.Equal(t, "dev", cfg.Endpoint.Headers["X-Env"])
	assert.Equal(t, []string{"ops/**/*.graphql"}, cfg.Operations)
	require.NotNil(t, cfg.ListSize)
	assert.Equal(t, 0, *cfg.ListSize, "explicit zero is kept")
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(7), *cfg.Seed)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.BaseDir)

	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DefaultSubscriptionEvents, cfg.Subscription.Events)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "qiufen.json", `{
  "port": 8080,
  "schemaFile": "schema.graphql",
  "endpoint": {"timeout": "2s"},
  "subscription": {"events": 5, "interval": "10ms"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, filepath.Join(cfg.BaseDir, "schema.graphql"), cfg.ResolvedSchemaFile())
	assert.Equal(t, 5, cfg.Subscription.Events)
	assert.Equal(t, "10ms", cfg.Subscription.IntervalDuration().String())
	assert.Equal(t, "2s", cfg.Endpoint.TimeoutDuration().String())
	require.NotNil(t, cfg.ListSize)
	assert.Equal(t, DefaultListSize, *cfg.ListSize)
	assert.NoError(t, cfg.Validate(), "schemaFile stands in for endpoint.url")
}

func TestLoad_FileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), ErrFileNotFound},
		{"empty", writeFile(t, dir, "empty.yaml", "  \n"), ErrEmptyFile},
		{"comments only", writeFile(t, dir, "comments.yaml", "# nothing here\n"), ErrEmptyFile},
		{"bad json", writeFile(t, dir, "bad.json", "{ port: }"), ErrInvalidJSON},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "port: [1, 2\n"), ErrInvalidYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantErr   error
		wantField string
	}{
		{"port not a number", "port: abc\n", ErrInvalidPort, "port"},
		{"url not a string", "port: 1\nendpoint:\n  url: 5\n", ErrInvalidEndpoint, "endpoint.url"},
		{"negative list size", "port: 1\nlistSize: -1\n", ErrInvalidValue, "listSize"},
		{"unknown log format", "port: 1\nlog:\n  format: xml\n", ErrInvalidValue, "log.format"},
		{"bad override key", "port: 1\noverrides:\n  \"User.name.first\": x\n", ErrInvalidOverride, "overrides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "got %T", err)
			assert.Contains(t, cfgErr.Field, tt.wantField)
		})
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte(`{"port": 1, "prot": 2}`), FormatJSON)
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "prot")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(EnvConfigPath, "")
	_, err := Discover(dir)
	assert.ErrorIs(t, err, ErrNoConfig)

	jsonPath := writeFile(t, dir, "qiufen.json", `{"port": 1}`)
	found, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, jsonPath, found)

	yamlPath := writeFile(t, dir, "qiufen.yaml", "port: 1\n")
	found, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, found, "yaml wins over json")

	other := writeFile(t, t.TempDir(), "custom.yml", "port: 2\n")
	t.Setenv(EnvConfigPath, other)
	found, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, other, found)

	t.Setenv(EnvConfigPath, filepath.Join(dir, "ghost.yaml"))
	_, err = Discover(dir)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := &Config{Port: 9406, Endpoint: Endpoint{URL: "http://localhost:4000/graphql"}}
	cfg.ApplyDefaults()

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := Marshal(cfg, format)
		require.NoError(t, err)
		again, err := Parse(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, cfg.Port, again.Port)
		assert.Equal(t, cfg.Endpoint.URL, again.Endpoint.URL)
		assert.Equal(t, *cfg.ListSize, *again.ListSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("QIUFEN_A", "alpha")
	assert.Equal(t, "alpha-beta-", ExpandEnvVars("${QIUFEN_A}-${QIUFEN_B:-beta}-${QIUFEN_C}"))
	assert.Equal(t, "$QIUFEN_A", ExpandEnvVars("$QIUFEN_A"))
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "x.graphql"), ResolvePath("/base", "x.graphql"))
	assert.Equal(t, "/abs/x.graphql", ResolvePath("/base", "/abs/x.graphql"))
}
