package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/operation"
)

func projectConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(dir, "qiufen.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestRunOperations_Documents(t *testing.T) {
	dir, _ := writeProject(t, cliTestSDL)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ops"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops", "user.graphql"),
		[]byte("query GetUser{user{...U}}\nfragment U on User{id name}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops", "broken.graphql"), []byte("query {"), 0o600))

	cfg := projectConfig(t, dir)
	cfg.Operations = []string{"ops/**/*.graphql"}

	var stdout, stderr bytes.Buffer
	require.NoError(t, runOperations(context.Background(), cfg, operationsFlags{}, false, &stdout, &stderr))
	assert.Equal(t, "query GetUser {\n  user {\n    ...U\n  }\n}\n\nfragment U on User {\n  id\n  name\n}\n", stdout.String())
	assert.Contains(t, stderr.String(), "broken.graphql")

	stdout.Reset()
	require.NoError(t, runOperations(context.Background(), cfg, operationsFlags{list: true}, false, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "GetUser")
	assert.Contains(t, stdout.String(), filepath.Join("ops", "user.graphql"))
}

func TestRunOperations_DiscoverJSON(t *testing.T) {
	dir, _ := writeProject(t, cliTestSDL)
	cfg := projectConfig(t, dir)

	var stdout bytes.Buffer
	require.NoError(t, runOperations(context.Background(), cfg, operationsFlags{discover: true}, true, &stdout, &bytes.Buffer{}))

	var entries []operation.Entry
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "user", entries[0].Name)
	assert.Equal(t, operation.KindQuery, entries[0].Kind)
	assert.Contains(t, entries[0].Printed, "name")
}

func TestRunSchema(t *testing.T) {
	dir, _ := writeProject(t, cliTestSDL)
	cfg := projectConfig(t, dir)

	var sdl bytes.Buffer
	require.NoError(t, runSchema(context.Background(), cfg, false, &sdl, &bytes.Buffer{}))
	assert.Contains(t, sdl.String(), "type User {")

	var js bytes.Buffer
	require.NoError(t, runSchema(context.Background(), cfg, true, &js, &bytes.Buffer{}))
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, js.Bytes(), 0o600))

	cfg.SchemaFile = path
	var again bytes.Buffer
	require.NoError(t, runSchema(context.Background(), cfg, false, &again, &bytes.Buffer{}))
	assert.Equal(t, sdl.String(), again.String())
}

func TestPrintVersion(t *testing.T) {
	out := VersionOutput{Version: "1.2.3", Commit: "abc", Date: "today", Go: "go1.24", OS: "linux", Arch: "amd64"}

	var text bytes.Buffer
	require.NoError(t, printVersion(&text, out, false))
	assert.Equal(t, "qiufen v1.2.3 (abc, today)\ngo1.24 linux/amd64\n", text.String())

	var js bytes.Buffer
	require.NoError(t, printVersion(&js, out, true))
	var decoded VersionOutput
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, out, decoded)
}
