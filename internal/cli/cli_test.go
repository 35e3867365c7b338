package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knitfamily/knit/pkg/pipeline"
)

const sampleYAML = `family_space_id: smiths
people:
  - id: gran
    first_name: Rose
    last_name: Smith
    status: deceased
  - id: mum
    first_name: Jane
    last_name: Smith
    status: active
    user_id: u-1
  - id: dad
    first_name: John
    last_name: Smith
  - id: ann
    first_name: Ann
    last_name: Smith
    status: invited
    birth_date: "2010-04-02"
relationships:
  - id: r1
    type: parent_child
    person_a_id: gran
    person_b_id: mum
  - id: r2
    type: partnership
    person_a_id: mum
    person_b_id: dad
  - id: r3
    type: parent_child
    person_a_id: mum
    person_b_id: ann
`

var knitEnv = []string{
	"KNIT_STORE_DRIVER", "KNIT_STORE_DSN", "KNIT_MONGO_URI", "KNIT_MONGO_DATABASE",
	"KNIT_CACHE_DRIVER", "KNIT_CACHE_DIR", "KNIT_REDIS_ADDR", "KNIT_REDIS_PASSWORD", "KNIT_REDIS_DB",
	"KNIT_SERVER_ADDR", "KNIT_RATE_LIMIT", "KNIT_RATE_BURST", "KNIT_LOG_LEVEL",
}

// isolate points every XDG directory into a temp dir, clears KNIT_*
// overrides and captures stdout. It returns the temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range knitEnv {
		t.Setenv(k, "")
	}
	return dir
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	prev := stdout
	stdout = &out
	defer func() { stdout = prev }()

	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&logs)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "family.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestRootCommandRegistersCommands(t *testing.T) {
	root := New(&bytes.Buffer{}, LogInfo).RootCommand()
	for _, name := range []string{
		"layout", "visualize", "render", "relatives", "validate", "browse",
		"import", "export", "spaces", "serve", "cache", "completion",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSourceFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		space   string
		want    source
		wantErr bool
	}{
		{name: "file", args: []string{"f.yaml"}, want: source{path: "f.yaml"}},
		{name: "space", space: "smiths", want: source{space: "smiths"}},
		{name: "both", args: []string{"f.yaml"}, space: "smiths", wantErr: true},
		{name: "neither", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sourceFromArgs(tt.args, tt.space)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormats(t *testing.T) {
	assert.Equal(t, []string{pipeline.FormatSVG}, parseFormats(""))
	assert.Equal(t, []string{"svg", "png"}, parseFormats("SVG, png,"))
}

func TestOutputBase(t *testing.T) {
	assert.Equal(t, "dir/family", outputBase(source{path: "dir/family.yaml"}))
	assert.Equal(t, "smiths", outputBase(source{space: "smiths"}))
}

func TestUnknownConfigFails(t *testing.T) {
	dir := isolate(t)
	_, err := run(t, "--config", filepath.Join(dir, "missing.toml"), "spaces")
	assert.Error(t, err)
}

func TestConfigLogLevel(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "knit.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[log]\nlevel = \"warn\"\n"), 0o644))

	var logs bytes.Buffer
	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", cfgPath, "cache", "path"})
	root.SetOut(&bytes.Buffer{})
	prev := stdout
	stdout = &bytes.Buffer{}
	defer func() { stdout = prev }()

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "warn", c.Logger.GetLevel().String())
}
