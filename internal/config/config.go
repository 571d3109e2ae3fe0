// Package config resolves gitversion settings from defaults, an optional
// YAML file, the environment (optionally seeded from a .env file) and
// command-line overrides, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fusion-engineering/git-version/internal/core"
)

// FileName is the config file looked up in the working directory.
const FileName = ".gitversion.yaml"

// EnvPrefix prefixes every environment key, e.g. GITVERSION_DIRTY_SUFFIX.
const EnvPrefix = "GITVERSION_"

// Config holds every setting. Keys match the YAML file.
type Config struct {
	// Git is the version-control executable.
	Git string `yaml:"git"`

	// DirtySuffix is the marker appended for modified trees.
	DirtySuffix string `yaml:"dirty_suffix"`

	// Args, when non-nil, replace everything after `describe`.
	Args []string `yaml:"args"`

	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`

	// Fallback is used when describing fails. Nil means fail.
	Fallback *string `yaml:"fallback"`

	// Package, Output, Const and Submodules shape the generated file. An
	// empty Submodules disables the submodule array.
	Package    string `yaml:"package"`
	Output     string `yaml:"output"`
	Const      string `yaml:"const"`
	Submodules string `yaml:"submodules"`

	// Depfile and Stamp are optional side outputs of generate.
	Depfile string `yaml:"depfile"`
	Stamp   string `yaml:"stamp"`

	// Source is the config file that was loaded, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Git:         core.DefaultTool,
		DirtySuffix: core.DefaultDirtySuffix,
		Package:     "main",
		Output:      "gitversion_gen.go",
		Const:       "GitVersion",
	}
}

// Error is a configuration problem, reported with the offending source.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Source == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load resolves the configuration for dir. explicit names a config file that
// must exist; when empty, dir/.gitversion.yaml is read if present.
// Environment variables are read from the process, then from dir/.env for
// keys the process does not set.
func Load(dir, explicit string) (Config, error) {
	return load(dir, explicit, os.LookupEnv)
}

func load(dir, explicit string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	path, required := explicit, true
	if path == "" {
		path, required = filepath.Join(dir, FileName), false
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if err := cfg.readFile(path, required); err != nil {
		return Config{}, err
	}

	dotenv, err := readDotenv(filepath.Join(dir, ".env"))
	if err != nil {
		return Config{}, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	for _, key := range Keys() {
		name := EnvPrefix + strings.ToUpper(key)
		v, ok := env(name)
		if !ok {
			continue
		}
		if err := cfg.Set(key, v); err != nil {
			return Config{}, &Error{Source: name, Err: err}
		}
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{Source: path, Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Source: path, Err: err}
	}
	c.Source = path
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	m, err := godotenv.Read(path)
	if err != nil {
		return nil, &Error{Source: path, Err: err}
	}
	return m, nil
}

var setters = map[string]func(c *Config, v string){
	"git":          func(c *Config, v string) { c.Git = v },
	"dirty_suffix": func(c *Config, v string) { c.DirtySuffix = v },
	"args":         func(c *Config, v string) { c.Args = splitArgs(v) },
	"prefix":       func(c *Config, v string) { c.Prefix = v },
	"suffix":       func(c *Config, v string) { c.Suffix = v },
	"fallback":     func(c *Config, v string) { c.Fallback = &v },
	"package":      func(c *Config, v string) { c.Package = v },
	"output":       func(c *Config, v string) { c.Output = v },
	"const":        func(c *Config, v string) { c.Const = v },
	"submodules":   func(c *Config, v string) { c.Submodules = v },
	"depfile":      func(c *Config, v string) { c.Depfile = v },
	"stamp":        func(c *Config, v string) { c.Stamp = v },
}

// splitArgs splits v on whitespace. A blank value means no pass-through
// arguments rather than a bare describe.
func splitArgs(v string) []string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one key from its string form. "args" is split on whitespace; a
// blank "args" clears it.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	set(c, value)
	return nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Git) == "" {
		return &Error{Source: c.Source, Err: errors.New("git must not be empty")}
	}
	return nil
}

// Resolve returns p relative to dir unless it is already absolute. Empty
// stays empty.
func Resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(dir, p))
}
