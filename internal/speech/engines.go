package speech

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/quill/internal/debuglog"
)

//go:embed engines.toml
var enginesTOML []byte

// EngineDefinition describes how to run one external recognizer.
type EngineDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	Requires    []string `toml:"requires"`
	Command     []string `toml:"command"`
}

type enginesFile struct {
	Engines map[string]EngineDefinition `toml:"engines"`
}

// Registry holds the known engines, built-in ones first and user overrides
// on top.
type Registry struct {
	engines  map[string]EngineDefinition
	lookPath func(string) (string, error)
}

// NewRegistry parses the embedded definitions and merges any user file.
func NewRegistry() (*Registry, error) {
	var file enginesFile
	if err := toml.Unmarshal(enginesTOML, &file); err != nil {
		return nil, fmt.Errorf("parsing engines.toml: %w", err)
	}
	r := &Registry{engines: file.Engines, lookPath: exec.LookPath}
	if r.engines == nil {
		r.engines = make(map[string]EngineDefinition)
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := r.Merge(filepath.Join(home, ".config", "quill", "engines.toml")); err != nil {
			debuglog.Warnf("speech: ignoring user engines: %v", err)
		}
	}
	return r, nil
}

// Merge adds the engines defined in the TOML file at path, replacing
// built-ins of the same name. A missing file is not an error.
func (r *Registry) Merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var file enginesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for name, def := range file.Engines {
		r.engines[name] = def
	}
	return nil
}

func (r *Registry) Lookup(name string) (EngineDefinition, bool) {
	def, ok := r.engines[name]
	return def, ok
}

// Names lists every engine, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available reports whether the engine runs on this platform and all of
// its required binaries are on PATH.
func (r *Registry) Available(name string) bool {
	def, ok := r.engines[name]
	if !ok || len(def.Command) == 0 {
		return false
	}
	if !supportsPlatform(def.Platforms) {
		return false
	}
	requires := def.Requires
	if len(requires) == 0 {
		requires = def.Command[:1]
	}
	for _, bin := range requires {
		if _, err := r.lookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// FindAvailable returns the first available engine in name order.
func (r *Registry) FindAvailable() string {
	for _, name := range r.Names() {
		if r.Available(name) {
			return name
		}
	}
	return ""
}

// Command returns the argv for name with {lang} and {seconds} filled in.
func (r *Registry) Command(name, lang string, seconds int) ([]string, error) {
	def, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown speech engine %q", name)
	}
	if !supportsPlatform(def.Platforms) {
		return nil, fmt.Errorf("%s not supported on %s", name, runtime.GOOS)
	}
	if len(def.Command) == 0 {
		return nil, fmt.Errorf("speech engine %q has no command", name)
	}
	return expandArgs(def.Command, lang, seconds), nil
}

func expandArgs(args []string, lang string, seconds int) []string {
	repl := strings.NewReplacer("{lang}", lang, "{seconds}", strconv.Itoa(seconds))
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = repl.Replace(a)
	}
	return out
}

func supportsPlatform(platforms []string) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, p := range platforms {
		if p == runtime.GOOS {
			return true
		}
	}
	return false
}
