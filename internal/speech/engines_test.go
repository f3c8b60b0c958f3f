package speech

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/quill/internal/debuglog"
)

func fakeLookPath(installed ...string) func(string) (string, error) {
	set := make(map[string]bool, len(installed))
	for _, bin := range installed {
		set[bin] = true
	}
	return func(bin string) (string, error) {
		if set[bin] {
			return "/usr/bin/" + bin, nil
		}
		return "", errors.New("not found")
	}
}

func TestNewRegistry_EmbeddedEngines(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	r, err := NewRegistry()
	require.NoError(t, err)

	for _, name := range []string{"hear", "whisper-cpp", "vosk", "windows-sapi"} {
		def, ok := r.Lookup(name)
		require.True(t, ok, "engine %s", name)
		assert.NotEmpty(t, def.Command, "engine %s", name)
		assert.NotEmpty(t, def.Platforms, "engine %s", name)
	}
	assert.IsIncreasing(t, r.Names())
}

func TestRegistry_Command(t *testing.T) {
	r := &Registry{
		engines: map[string]EngineDefinition{
			"echo": {Platforms: []string{runtime.GOOS}, Command: []string{"echo", "-l", "{lang}", "--for={seconds}s"}},
			"elsewhere": {Platforms: []string{"plan9"}, Command: []string{"x"}},
			"empty": {},
		},
		lookPath: fakeLookPath(),
	}

	argv, err := r.Command("echo", "de", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "-l", "de", "--for=7s"}, argv)

	_, err = r.Command("missing", "en", 5)
	assert.Error(t, err)

	_, err = r.Command("elsewhere", "en", 5)
	assert.ErrorContains(t, err, "not supported")

	_, err = r.Command("empty", "en", 5)
	assert.ErrorContains(t, err, "no command")
}

func TestRegistry_Available(t *testing.T) {
	r := &Registry{
		engines: map[string]EngineDefinition{
			"a-two-bins": {Requires: []string{"rec", "whisper-cli"}, Command: []string{"sh", "-c", "x"}},
			"b-implicit": {Command: []string{"hear"}},
			"c-foreign":  {Platforms: []string{"plan9"}, Command: []string{"sh"}},
		},
		lookPath: fakeLookPath("rec", "hear", "sh"),
	}

	assert.False(t, r.Available("a-two-bins"), "whisper-cli is missing")
	assert.True(t, r.Available("b-implicit"), "falls back to the command binary")
	assert.False(t, r.Available("c-foreign"))
	assert.False(t, r.Available("nope"))
	assert.Equal(t, "b-implicit", r.FindAvailable())

	r.lookPath = fakeLookPath()
	assert.Empty(t, r.FindAvailable())
}

func TestRegistry_MergeOverridesBuiltIns(t *testing.T) {
	r := &Registry{
		engines:  map[string]EngineDefinition{"hear": {Command: []string{"hear"}}},
		lookPath: fakeLookPath(),
	}

	path := filepath.Join(t.TempDir(), "engines.toml")
	content := `
[engines.hear]
command = ["hear", "--custom"]

[engines.mine]
description = "local script"
command = ["/opt/bin/dictate", "{lang}"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, r.Merge(path))

	def, ok := r.Lookup("hear")
	require.True(t, ok)
	assert.Equal(t, []string{"hear", "--custom"}, def.Command)

	def, ok = r.Lookup("mine")
	require.True(t, ok)
	assert.Equal(t, "local script", def.Description)

	assert.NoError(t, r.Merge(filepath.Join(t.TempDir(), "missing.toml")))

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[engines\n"), 0o644))
	assert.Error(t, r.Merge(bad))
}

func TestNewRegistry_MalformedUserFileIsLogged(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "quill")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "engines.toml"), []byte("[engines.broken\n"), 0o644))

	logPath := filepath.Join(t.TempDir(), "quill.log")
	require.NoError(t, debuglog.Setup(debuglog.LevelWarn, logPath))
	t.Cleanup(func() { debuglog.Setup(debuglog.LevelOff) })

	r, err := NewRegistry()
	require.NoError(t, err, "built-in engines stay usable")
	assert.NotEmpty(t, r.Names())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ignoring user engines")
	assert.Contains(t, string(data), "engines.toml")
}
