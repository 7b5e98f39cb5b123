package dupreclaim

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment variables read by ApplyEnvironment
const EnvPrefix = "DUPRECLAIM"

// Config represents the dupreclaim configuration
type Config struct {
	configDir  string
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string
}

// ScanConfig represents scanner and hasher tuning
type ScanConfig struct {
	MinSize     string // Human size, e.g. "1K"
	PartialSize string
	ChunkSize   string
	Symlinks    string // none, contained, all
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // human, json, csv
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug string // comma-separated debug flags
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int
}

// CleanupConfig represents excess-copy cleanup defaults
type CleanupConfig struct {
	Keep   string `ini:"keep"`
	DryRun bool   `ini:"dry_run"`
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Scan        *ScanConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Performance *PerformanceConfig
	Cleanup     *CleanupConfig
}

// environment lists the variables honoured by ApplyEnvironment; empty means unset
type environment struct {
	Hash        string `envconfig:"HASH"`
	MinSize     string `envconfig:"MIN_SIZE"`
	Symlinks    string `envconfig:"SYMLINKS"`
	HashWorkers string `envconfig:"HASH_WORKERS"`
	Level       string `envconfig:"VERBOSE"`
	Debug       string `envconfig:"DEBUG"`
	Format      string `envconfig:"FORMAT"`
	Keep        string `envconfig:"KEEP"`
	DryRun      string `envconfig:"DRY_RUN"`
}

// NewDefaultConfig returns an in-memory configuration holding the defaults
func NewDefaultConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	// setDefaults only fails on duplicate section creation which cannot
	// happen on an empty file
	_ = cfg.setDefaults()
	return cfg
}

// LoadConfig loads configuration from configDir/config, creating it with
// defaults when missing
func LoadConfig(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, ConfigFileName)

	cfg := &Config{
		configDir:  configDir,
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		iniFile, err := ini.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ini = iniFile
	}

	return cfg, nil
}

// setDefaults writes every section with its default keys
func (c *Config) setDefaults() error {
	defaults := []struct {
		section string
		keys    [][2]string
	}{
		{"filehash", [][2]string{{"default", DefaultHashAlgorithm}}},
		{"scan", [][2]string{
			{"min_size", strconv.FormatInt(DefaultMinFileSize, 10)},
			{"partial_size", strconv.Itoa(DefaultPartialHashSize)},
			{"chunk_size", "50K"},
			{"symlinks", DefaultSymlinkMode},
		}},
		{"performance", [][2]string{{"hash_workers", strconv.Itoa(DefaultHashWorkers)}}},
		{"verbose", [][2]string{{"level", "0"}, {"debug", ""}}},
		{"output", [][2]string{{"format", "human"}}},
		{"cleanup", [][2]string{{"keep", KeepEarliest.String()}, {"dry_run", "false"}}},
	}

	for _, d := range defaults {
		section, err := c.ini.NewSection(d.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", d.section, err)
		}
		for _, kv := range d.keys {
			if _, err := section.NewKey(kv[0], kv[1]); err != nil {
				return fmt.Errorf("failed to set default %s.%s: %w", d.section, kv[0], err)
			}
		}
	}
	return nil
}

// Dir returns the directory holding the config file, empty for in-memory configs
func (c *Config) Dir() string {
	return c.configDir
}

// IgnorePath returns the path of the ignore-pattern file next to the config
func (c *Config) IgnorePath() string {
	if c.configDir == "" {
		return ""
	}
	return filepath.Join(c.configDir, IgnoreFileName)
}

// stringKey reads section.key, returning fallback when absent
func (c *Config) stringKey(section, key, fallback string) string {
	if c.ini.HasSection(section) {
		s := c.ini.Section(section)
		if s.HasKey(key) {
			return s.Key(key).String()
		}
	}
	return fallback
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	return &HashConfig{
		Default: c.stringKey("filehash", "default", DefaultHashAlgorithm),
	}
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	return &ScanConfig{
		MinSize:     c.stringKey("scan", "min_size", strconv.FormatInt(DefaultMinFileSize, 10)),
		PartialSize: c.stringKey("scan", "partial_size", strconv.Itoa(DefaultPartialHashSize)),
		ChunkSize:   c.stringKey("scan", "chunk_size", strconv.Itoa(DefaultChunkSize)),
		Symlinks:    c.stringKey("scan", "symlinks", DefaultSymlinkMode),
	}
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	return &OutputConfig{
		Format: c.stringKey("output", "format", "human"),
	}
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{
		Debug: c.stringKey("verbose", "debug", ""),
	}
	if level, err := strconv.Atoi(c.stringKey("verbose", "level", "0")); err == nil {
		verboseConfig.Level = level
	}
	return verboseConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers,
	}
	if workers, err := strconv.Atoi(c.stringKey("performance", "hash_workers", "")); err == nil {
		performanceConfig.HashWorkers = workers
	}
	return performanceConfig
}

// GetCleanupConfig returns the cleanup configuration
func (c *Config) GetCleanupConfig() *CleanupConfig {
	cleanupConfig := &CleanupConfig{
		Keep: KeepEarliest.String(),
	}
	if c.ini.HasSection("cleanup") {
		// MapTo leaves fields untouched for missing keys
		if err := c.ini.Section("cleanup").MapTo(cleanupConfig); err != nil {
			VerboseLog(1, "ignoring malformed cleanup section: %v", err)
		}
	}
	return cleanupConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Scan:        c.GetScanConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Performance: c.GetPerformanceConfig(),
		Cleanup:     c.GetCleanupConfig(),
	}
}

// Options converts the configuration into pipeline options
func (c *Config) Options() (Options, error) {
	opts := DefaultOptions()
	scanConfig := c.GetScanConfig()

	minSize, err := parseSizeAllowZero(scanConfig.MinSize)
	if err != nil {
		return opts, fmt.Errorf("invalid scan.min_size: %w", err)
	}
	opts.MinFileSize = int64(minSize)

	if opts.PartialHashSize, err = ParseHumanSize(scanConfig.PartialSize); err != nil {
		return opts, fmt.Errorf("invalid scan.partial_size: %w", err)
	}
	if opts.ChunkSize, err = ParseHumanSize(scanConfig.ChunkSize); err != nil {
		return opts, fmt.Errorf("invalid scan.chunk_size: %w", err)
	}

	opts.SymlinkMode = strings.ToLower(scanConfig.Symlinks)
	opts.HashAlgorithm = strings.ToLower(c.GetHashConfig().Default)
	opts.HashWorkers = c.GetPerformanceConfig().HashWorkers

	if ignorePath := c.IgnorePath(); ignorePath != "" {
		patterns, err := LoadIgnoreFile(ignorePath)
		if err != nil {
			return opts, err
		}
		opts.IgnorePatterns = patterns
	}

	return opts, opts.Validate()
}

// parseSizeAllowZero is ParseHumanSize that also accepts "0"
func parseSizeAllowZero(s string) (int, error) {
	if strings.TrimSpace(s) == "0" {
		return 0, nil
	}
	return ParseHumanSize(s)
}

// SetHashDefault sets the default hash algorithm
func (c *Config) SetHashDefault(algorithm string) error {
	if err := ValidateHashAlgorithm(algorithm); err != nil {
		return err
	}
	c.ini.Section("filehash").Key("default").SetValue(algorithm)
	return c.Save()
}

// SetHashWorkers sets the number of hash workers
func (c *Config) SetHashWorkers(workers int) error {
	if err := ValidateHashWorkers(workers); err != nil {
		return err
	}
	c.ini.Section("performance").Key("hash_workers").SetValue(strconv.Itoa(workers))
	return c.Save()
}

// SetKeepPolicy sets the default keep policy for cleanup
func (c *Config) SetKeepPolicy(policy string) error {
	if _, err := ParseKeepPolicy(policy); err != nil {
		return err
	}
	c.ini.Section("cleanup").Key("keep").SetValue(policy)
	return c.Save()
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("configuration has no backing file")
	}
	return c.ini.SaveTo(c.configPath)
}

// overrideKeys maps override names to their section
var overrideKeys = map[string]string{
	"default":      "filehash",
	"min_size":     "scan",
	"partial_size": "scan",
	"chunk_size":   "scan",
	"symlinks":     "scan",
	"hash_workers": "performance",
	"level":        "verbose",
	"debug":        "verbose",
	"format":       "output",
	"keep":         "cleanup",
	"dry_run":      "cleanup",
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "format:json", "level:2", "keep:largest"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		section, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s'", key)
		}
		c.ini.Section(section).Key(key).SetValue(value)
	}

	return nil
}

// ApplyEnvironment applies DUPRECLAIM_* environment variables on top of the file values
func (c *Config) ApplyEnvironment() error {
	var env environment
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	var overrides []string
	for key, value := range map[string]string{
		"default":      env.Hash,
		"min_size":     env.MinSize,
		"symlinks":     env.Symlinks,
		"hash_workers": env.HashWorkers,
		"level":        env.Level,
		"debug":        env.Debug,
		"format":       env.Format,
		"keep":         env.Keep,
		"dry_run":      env.DryRun,
	} {
		if value != "" {
			overrides = append(overrides, key+":"+value)
		}
	}

	return c.ApplyOverrides(overrides)
}

// Validate validates all configuration options
func (c *Config) Validate() error {
	allConfig := c.GetAllConfig()

	if err := ValidateHashAlgorithm(allConfig.Hash.Default); err != nil {
		return err
	}
	if err := ValidateOutputFormat(allConfig.Output.Format); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(allConfig.Verbose.Level); err != nil {
		return err
	}
	if err := ValidateSymlinkMode(allConfig.Scan.Symlinks); err != nil {
		return err
	}
	if err := ValidateHashWorkers(allConfig.Performance.HashWorkers); err != nil {
		return err
	}
	if _, err := ParseKeepPolicy(allConfig.Cleanup.Keep); err != nil {
		return err
	}
	_, err := c.Options()
	return err
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, ok := HashTypeFromName(algorithm); !ok {
		return fmt.Errorf("unsupported hash algorithm: %s (supported: sha1, sha256, sha512)", algorithm)
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "human", "json", "csv":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, csv)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateSymlinkMode validates that a symlink mode is supported
func ValidateSymlinkMode(mode string) error {
	switch strings.ToLower(mode) {
	case "all", "contained", "none":
		return nil
	default:
		return fmt.Errorf("unsupported symlink mode: %s (supported: all, contained, none)", mode)
	}
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > 64 {
		return fmt.Errorf("hash workers should not exceed 64, got: %d", workers)
	}
	return nil
}
