package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dshills/piecebuf/internal/config/loader"
)

// Defaults mirrored from the engine so this package stays a leaf.
const (
	DefaultChunkSize       = 65535
	DefaultSearchCacheSize = 10
	DefaultMaxFileSize     = 256 << 20
	DefaultReadBlockSize   = 64 << 10
	DefaultDebounce        = 100 * time.Millisecond
	DefaultInstructionCap  = 10_000_000
	DefaultScriptTimeout   = 5 * time.Second

	// minChunkSize keeps room for the longest UTF-8 sequence.
	minChunkSize = 4
)

// Config holds every piecebuf setting.
type Config struct {
	Buffer  BufferConfig
	Files   FilesConfig
	Watch   WatchConfig
	Script  ScriptConfig
	Logging LoggingConfig
}

// BufferConfig configures the piece tree behind each document.
type BufferConfig struct {
	// ChunkSize is the insert size above which text is stored in its own chunk.
	ChunkSize int
	// SearchCacheSize is the number of lookups remembered; 0 disables the cache.
	SearchCacheSize int
	// NormalizeEOL converts "\r\n" and "\r" to "\n" on load and insert.
	NormalizeEOL bool
	// InvariantChecks validates the tree after every edit.
	InvariantChecks bool
	// LineEnding forces the line ending used on save: "", "lf", "crlf" or "cr".
	// Empty keeps the ending detected on load.
	LineEnding string
}

// FilesConfig configures document loading.
type FilesConfig struct {
	MaxFileSize   int64
	ReadBlockSize int
	// Parallelism bounds concurrent loads when opening several files.
	Parallelism int
}

// WatchConfig configures external change detection.
type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
	// Reload is "never", "if-clean" or "always".
	Reload string
}

// ScriptConfig bounds Lua scripts.
type ScriptConfig struct {
	// InstructionLimit caps VM instructions per script; 0 means unlimited.
	InstructionLimit int
	// Timeout caps wall time per script; 0 means unlimited.
	Timeout time.Duration
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{
			ChunkSize:       DefaultChunkSize,
			SearchCacheSize: DefaultSearchCacheSize,
			NormalizeEOL:    true,
		},
		Files: FilesConfig{
			MaxFileSize:   DefaultMaxFileSize,
			ReadBlockSize: DefaultReadBlockSize,
			Parallelism:   4,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: DefaultDebounce,
			Reload:   "if-clean",
		},
		Script: ScriptConfig{
			InstructionLimit: DefaultInstructionCap,
			Timeout:          DefaultScriptTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	envPrefix string
	env       bool
}

// WithFileSystem reads config files through fs.
func WithFileSystem(fs loader.FileSystem) LoadOption {
	return func(o *loadOptions) {
		o.fs = fs
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutEnv skips environment overrides.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.env = false
	}
}

// Load builds a Config from defaults, the file at path and the environment.
// An empty path falls back to DefaultPath; a missing file is not an error.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
		env:       true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if path == "" {
		path = DefaultPath()
	}

	merged := make(map[string]any)
	if path != "" {
		fl, err := loader.ForPath(o.fs, path)
		if err != nil {
			return nil, err
		}
		data, err := fl.Load()
		if err != nil {
			return nil, err
		}
		loader.DeepMerge(merged, data)
	}

	if o.env {
		data, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		loader.DeepMerge(merged, data)
	}

	return FromMap(merged)
}

// FromMap decodes m over the defaults and validates the result.
func FromMap(m map[string]any) (*Config, error) {
	c := Default()
	if err := c.Decode(m); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultPath returns the user config file, preferring TOML over YAML.
// It returns "" when neither exists.
func DefaultPath() string {
	dir := userConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "piecebuf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "piecebuf")
}

// setting binds a dotted path to a typed field.
type setting struct {
	path string
	set  func(path string, v any) error
}

func (c *Config) settings() []setting {
	return []setting{
		{"buffer.chunk_size", intSetting(&c.Buffer.ChunkSize)},
		{"buffer.search_cache_size", intSetting(&c.Buffer.SearchCacheSize)},
		{"buffer.normalize_eol", boolSetting(&c.Buffer.NormalizeEOL)},
		{"buffer.invariant_checks", boolSetting(&c.Buffer.InvariantChecks)},
		{"buffer.line_ending", stringSetting(&c.Buffer.LineEnding)},
		{"files.max_file_size", int64Setting(&c.Files.MaxFileSize)},
		{"files.read_block_size", intSetting(&c.Files.ReadBlockSize)},
		{"files.parallelism", intSetting(&c.Files.Parallelism)},
		{"watch.enabled", boolSetting(&c.Watch.Enabled)},
		{"watch.debounce", durationSetting(&c.Watch.Debounce)},
		{"watch.reload", stringSetting(&c.Watch.Reload)},
		{"script.instruction_limit", intSetting(&c.Script.InstructionLimit)},
		{"script.timeout", durationSetting(&c.Script.Timeout)},
		{"logging.level", stringSetting(&c.Logging.Level)},
	}
}

// Decode copies the values in m onto c. Settings absent from m keep their
// current value. All unknown paths and type errors are returned joined.
func (c *Config) Decode(m map[string]any) error {
	var errs []error
	known := make(map[string]bool)
	for _, s := range c.settings() {
		known[s.path] = true
		v, ok := getPath(m, s.path)
		if !ok {
			continue
		}
		if err := s.set(s.path, v); err != nil {
			errs = append(errs, err)
		}
	}

	var unknown []string
	walkLeaves(m, "", func(path string) {
		if !known[path] {
			unknown = append(unknown, path)
		}
	})
	slices.Sort(unknown)
	for _, path := range unknown {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSetting, path))
	}

	return errors.Join(errs...)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, path, msg string, v any) {
		if !ok {
			errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
		}
	}

	check(c.Buffer.ChunkSize >= minChunkSize, "buffer.chunk_size",
		fmt.Sprintf("must be at least %d", minChunkSize), c.Buffer.ChunkSize)
	check(c.Buffer.SearchCacheSize >= 0, "buffer.search_cache_size", "must not be negative", c.Buffer.SearchCacheSize)
	check(slices.Contains([]string{"", "lf", "crlf", "cr"}, strings.ToLower(c.Buffer.LineEnding)),
		"buffer.line_ending", `must be "lf", "crlf", "cr" or empty`, c.Buffer.LineEnding)
	check(c.Files.MaxFileSize > 0, "files.max_file_size", "must be positive", c.Files.MaxFileSize)
	check(c.Files.ReadBlockSize > 0, "files.read_block_size", "must be positive", c.Files.ReadBlockSize)
	check(c.Files.Parallelism > 0, "files.parallelism", "must be positive", c.Files.Parallelism)
	check(c.Watch.Debounce >= 0, "watch.debounce", "must not be negative", c.Watch.Debounce)
	check(slices.Contains([]string{"never", "if-clean", "always"}, c.Watch.Reload),
		"watch.reload", `must be "never", "if-clean" or "always"`, c.Watch.Reload)
	check(c.Script.InstructionLimit >= 0, "script.instruction_limit", "must not be negative", c.Script.InstructionLimit)
	check(c.Script.Timeout >= 0, "script.timeout", "must not be negative", c.Script.Timeout)
	check(slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Logging.Level)),
		"logging.level", "must be debug, info, warn or error", c.Logging.Level)

	return errors.Join(errs...)
}

func intSetting(dst *int) func(string, any) error {
	return func(path string, v any) error {
		n, ok := toInt64(v)
		if !ok || n < math.MinInt || n > math.MaxInt {
			return &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
		}
		*dst = int(n)
		return nil
	}
}

func int64Setting(dst *int64) func(string, any) error {
	return func(path string, v any) error {
		n, ok := toInt64(v)
		if !ok {
			return &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
		}
		*dst = n
		return nil
	}
}

func boolSetting(dst *bool) func(string, any) error {
	return func(path string, v any) error {
		b, ok := v.(bool)
		if !ok {
			return &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
		}
		*dst = b
		return nil
	}
}

func stringSetting(dst *string) func(string, any) error {
	return func(path string, v any) error {
		s, ok := v.(string)
		if !ok {
			return &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
		}
		*dst = s
		return nil
	}
}

// durationSetting accepts a time.Duration, a duration string, or an
// integer number of milliseconds.
func durationSetting(dst *time.Duration) func(string, any) error {
	return func(path string, v any) error {
		switch val := v.(type) {
		case time.Duration:
			*dst = val
			return nil
		case string:
			d, err := time.ParseDuration(val)
			if err != nil {
				return &TypeError{Path: path, Expected: "duration", Actual: fmt.Sprintf("string %q", val)}
			}
			*dst = d
			return nil
		}
		if n, ok := toInt64(v); ok {
			*dst = time.Duration(n) * time.Millisecond
			return nil
		}
		return &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	current := any(m)
	for _, part := range strings.Split(path, ".") {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = cm[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// walkLeaves calls fn with the dotted path of every non-map value in m.
func walkLeaves(m map[string]any, prefix string, fn func(path string)) {
	for key, v := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if sub, ok := v.(map[string]any); ok {
			walkLeaves(sub, path, fn)
			continue
		}
		fn(path)
	}
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
