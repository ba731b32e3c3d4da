package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/formula-resolver/internal/logger"
)

// Config holds the settings shared by every formulactl command.
type Config struct {
	// Sources are formula locations: directories, files or http(s) URLs.
	Sources []string `yaml:"sources"`
	// Locations maps short names onto install directories for the --dir flag.
	Locations map[string]string `yaml:"locations,omitempty"`
	// BinDir is the default directory binaries are installed into.
	BinDir string `yaml:"bin_dir"`
	// StateDir holds install receipts and the install lock.
	StateDir string `yaml:"state_dir"`
	// TempDir is where archives are downloaded; empty means the system default.
	TempDir string `yaml:"temp_dir,omitempty"`
	// Timeout bounds a single HTTP request including the body transfer.
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of extra attempts for failed HTTP requests.
	Retries int `yaml:"retries"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level"`
}

const (
	// AppName names the configuration and state directories.
	AppName = "formulactl"

	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "config.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Minute

	// DefaultRetries is the default number of HTTP retries.
	DefaultRetries = 3

	// DefaultLogLevel is used when the config does not set one.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the permission for directories created by formulactl.
	DefaultDirPermissions = 0o750
)

var (
	// ErrDuplicate is returned when adding a source or location that already exists.
	ErrDuplicate = errors.New("entry already exists")
	// ErrEntryNotFound is returned when removing a source or location that does not exist.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidLocationName is returned for location names with spaces or slashes.
	ErrInvalidLocationName = errors.New("location name cannot be empty or contain spaces or slashes")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEmptySource is returned for blank source entries.
	errEmptySource = errors.New("source must not be empty")
	// errNegativeRetries is returned when retries is below zero.
	errNegativeRetries = errors.New("retries must not be negative")
	// errUnknownLogLevel is returned for log levels zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// DefaultPath returns the settings file location under $XDG_CONFIG_HOME.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, DefaultConfigFilename)
}

// Default returns a configuration filled with default values.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path, creating parent directories.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultPath()
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Reset removes the settings file so the next Load returns defaults.
func Reset(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	err := os.Remove(filepath.Clean(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks sources, locations and the log level.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	applyDefaults(settings)

	if settings.Retries < 0 {
		return errNegativeRetries
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	for _, source := range settings.Sources {
		if err := validateSource(source); err != nil {
			return err
		}
	}

	for name := range settings.Locations {
		if err := validateLocationName(name); err != nil {
			return err
		}
	}

	return nil
}

func applyDefaults(settings *Config) {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.BinDir == "" {
		settings.BinDir = CompressHome(xdg.BinHome)
	}

	if settings.StateDir == "" {
		settings.StateDir = CompressHome(filepath.Join(xdg.StateHome, AppName))
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.Sources == nil {
		settings.Sources = []string{}
	}
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return errEmptySource
	}

	if !IsRemote(source) {
		return nil
	}

	if _, err := url.ParseRequestURI(source); err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}

	return nil
}

func validateLocationName(name string) error {
	if name == "" || strings.ContainsAny(name, " /\\") {
		return fmt.Errorf("%w: %q", ErrInvalidLocationName, name)
	}

	return nil
}

// IsRemote reports whether a source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// AddSource appends a source unless it is already listed.
func (c *Config) AddSource(source string) error {
	if err := validateSource(source); err != nil {
		return err
	}

	if !IsRemote(source) {
		source = CompressHome(source)
	}

	if slices.Contains(c.Sources, source) {
		return fmt.Errorf("%w: source %q", ErrDuplicate, source)
	}

	c.Sources = append(c.Sources, source)

	return nil
}

// RemoveSource removes a source from the list.
func (c *Config) RemoveSource(source string) error {
	index := slices.Index(c.Sources, source)
	if index < 0 && !IsRemote(source) {
		index = slices.Index(c.Sources, CompressHome(source))
	}

	if index < 0 {
		return fmt.Errorf("%w: source %q", ErrEntryNotFound, source)
	}

	c.Sources = slices.Delete(c.Sources, index, index+1)

	return nil
}

// AddLocation maps name onto dir. The home directory prefix is stored as "~".
func (c *Config) AddLocation(name, dir string) error {
	if err := validateLocationName(name); err != nil {
		return err
	}

	if _, ok := c.Locations[name]; ok {
		return fmt.Errorf("%w: location %q", ErrDuplicate, name)
	}

	if c.Locations == nil {
		c.Locations = make(map[string]string)
	}

	c.Locations[name] = CompressHome(dir)

	return nil
}

// RemoveLocation deletes a named location.
func (c *Config) RemoveLocation(name string) error {
	if _, ok := c.Locations[name]; !ok {
		return fmt.Errorf("%w: location %q", ErrEntryNotFound, name)
	}

	delete(c.Locations, name)

	return nil
}

// LocationNames returns the configured location names in sorted order.
func (c *Config) LocationNames() []string {
	return slices.Sorted(maps.Keys(c.Locations))
}

// ResolveLocation turns a location name or directory into an absolute path.
// An empty value resolves to BinDir.
func (c *Config) ResolveLocation(value string) (string, error) {
	switch {
	case value == "":
		value = c.BinDir
	case c.Locations[value] != "":
		value = c.Locations[value]
	}

	path, err := filepath.Abs(ExpandHome(value))
	if err != nil {
		return "", fmt.Errorf("resolve location %q: %w", value, err)
	}

	return path, nil
}

// ResolvedStateDir returns StateDir with the home prefix expanded.
func (c *Config) ResolvedStateDir() string {
	return ExpandHome(c.StateDir)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CompressHome replaces the user's home directory prefix with "~".
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}

	switch {
	case path == home:
		return "~"
	case strings.HasPrefix(path, home+string(filepath.Separator)):
		return "~" + strings.TrimPrefix(path, home)
	default:
		return path
	}
}
