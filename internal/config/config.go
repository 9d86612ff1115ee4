package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "VOICEDIARY"

// RootConfig is the file layout: base settings, named profiles and the profile
// selected by default.
type RootConfig struct {
	ActiveProfile string             `mapstructure:"active_profile" yaml:"active_profile"`
	Base          Config             `mapstructure:",squash" yaml:",inline"`
	Profiles      map[string]*Config `mapstructure:"profiles" yaml:"profiles,omitempty"`
}

type Config struct {
	OwnerID  string         `mapstructure:"owner_id" yaml:"owner_id"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Gemini   GeminiConfig   `mapstructure:"gemini" yaml:"gemini"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`

	// Profile is the name of the merged profile, empty for the base settings
	Profile string `mapstructure:"-" yaml:"-"`
	// Inheritance records, per dotted key, whether the value came from the
	// profile or the base settings. Used by `config show`.
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type StorageConfig struct {
	Directory     string `mapstructure:"directory" yaml:"directory"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type AnalyzerConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type CaptureConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"` // "auto", "ffmpeg", "arecord"
	Device    string `mapstructure:"device" yaml:"device"`
	ChunkSize int    `mapstructure:"chunk_size" yaml:"chunk_size"`
}

type DisplayConfig struct {
	GroupBy   string `mapstructure:"group_by" yaml:"group_by"` // "week", "month"
	Locale    string `mapstructure:"locale" yaml:"locale"`     // "pt-BR", "en"
	WeekStart string `mapstructure:"week_start" yaml:"week_start"`
}

type GeminiConfig struct {
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	Model       string `mapstructure:"model" yaml:"model"`
	Prompt      string `mapstructure:"prompt" yaml:"prompt"`
	TTSVoice    string `mapstructure:"tts_voice" yaml:"tts_voice"`
	TTSLanguage string `mapstructure:"tts_language" yaml:"tts_language"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

const DefaultPrompt = "Analise este áudio. Gere um resumo curto e acolhedor, em primeira pessoa, como se fosse um amigo conselheiro."

var defaultConfig = Config{
	OwnerID: "local",
	Storage: StorageConfig{
		Directory:     filepath.Join(os.Getenv("HOME"), "Audio", "VoiceDiary"),
		PublicBaseURL: "http://localhost:8080/media",
	},
	Database: DatabaseConfig{
		Path: filepath.Join(os.Getenv("HOME"), "Audio", "VoiceDiary", "voicediary.db"),
	},
	Analyzer: AnalyzerConfig{
		URL:     "http://localhost:8080/audio/analyzer/analyze",
		Timeout: 60 * time.Second,
	},
	Capture: CaptureConfig{
		Backend:   "auto",
		Device:    "default",
		ChunkSize: 4096,
	},
	Display: DisplayConfig{
		GroupBy:   "week",
		Locale:    "pt-BR",
		WeekStart: "sunday",
	},
	Gemini: GeminiConfig{
		Model:       "gemini-2.5-flash",
		Prompt:      DefaultPrompt,
		TTSVoice:    "pt-BR-Neural2-C",
		TTSLanguage: "pt-BR",
	},
	Server: ServerConfig{
		Port: 8080,
	},
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	c := defaultConfig
	return &c
}

// DefaultPath is where the config file is looked up when --config is not given
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voicediary", "config.yaml")
}

// LoadWithProfile reads configFile (or DefaultPath when empty), applies
// VOICEDIARY_* environment overrides and merges the selected profile over the
// base settings. A missing default file yields the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	v := newViper()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultPath()
	}

	if configFile != "" && (explicit || fileExists(configFile)) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	name := profile
	if name == "" {
		name = root.ActiveProfile
	}

	cfg := &root.Base
	if name != "" {
		selected, exists := root.Profiles[name]
		if !exists {
			return nil, fmt.Errorf("configuration profile '%s' not found", name)
		}
		cfg = mergeConfigs(&root.Base, selected)
		cfg.Profile = name
	}

	cfg.Storage.Directory = expandPath(cfg.Storage.Directory)
	cfg.Database.Path = expandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := defaultConfig
	v.SetDefault("owner_id", d.OwnerID)
	v.SetDefault("storage.directory", d.Storage.Directory)
	v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("analyzer.url", d.Analyzer.URL)
	v.SetDefault("analyzer.timeout", d.Analyzer.Timeout)
	v.SetDefault("capture.backend", d.Capture.Backend)
	v.SetDefault("capture.device", d.Capture.Device)
	v.SetDefault("capture.chunk_size", d.Capture.ChunkSize)
	v.SetDefault("display.group_by", d.Display.GroupBy)
	v.SetDefault("display.locale", d.Display.Locale)
	v.SetDefault("display.week_start", d.Display.WeekStart)
	v.SetDefault("gemini.api_key", d.Gemini.APIKey)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.prompt", d.Gemini.Prompt)
	v.SetDefault("gemini.tts_voice", d.Gemini.TTSVoice)
	v.SetDefault("gemini.tts_language", d.Gemini.TTSLanguage)
	v.SetDefault("server.port", d.Server.Port)
	return v
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// UpdateActiveProfile rewrites the active_profile field in the config file
func UpdateActiveProfile(configFile, name string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	profiles := v.GetStringMap("profiles")
	if _, ok := profiles[name]; !ok && name != "" {
		return fmt.Errorf("configuration profile '%s' not found", name)
	}

	v.Set("active_profile", name)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs overlays the non-zero values of profile on base and records
// where each value came from.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: make(map[string]string)}
	if base != nil {
		*result = *base
		result.Inheritance = make(map[string]string)
	}
	if profile == nil {
		return result
	}

	pickString := func(key string, dst *string, v string) {
		if v != "" {
			*dst = v
			result.Inheritance[key] = "profile-specific"
			return
		}
		result.Inheritance[key] = "inherited"
	}
	pickInt := func(key string, dst *int, v int) {
		if v != 0 {
			*dst = v
			result.Inheritance[key] = "profile-specific"
			return
		}
		result.Inheritance[key] = "inherited"
	}

	pickString("owner_id", &result.OwnerID, profile.OwnerID)
	pickString("storage.directory", &result.Storage.Directory, profile.Storage.Directory)
	pickString("storage.public_base_url", &result.Storage.PublicBaseURL, profile.Storage.PublicBaseURL)
	pickString("database.path", &result.Database.Path, profile.Database.Path)
	pickString("analyzer.url", &result.Analyzer.URL, profile.Analyzer.URL)
	if profile.Analyzer.Timeout != 0 {
		result.Analyzer.Timeout = profile.Analyzer.Timeout
		result.Inheritance["analyzer.timeout"] = "profile-specific"
	} else {
		result.Inheritance["analyzer.timeout"] = "inherited"
	}
	pickString("capture.backend", &result.Capture.Backend, profile.Capture.Backend)
	pickString("capture.device", &result.Capture.Device, profile.Capture.Device)
	pickInt("capture.chunk_size", &result.Capture.ChunkSize, profile.Capture.ChunkSize)
	pickString("display.group_by", &result.Display.GroupBy, profile.Display.GroupBy)
	pickString("display.locale", &result.Display.Locale, profile.Display.Locale)
	pickString("display.week_start", &result.Display.WeekStart, profile.Display.WeekStart)
	pickString("gemini.api_key", &result.Gemini.APIKey, profile.Gemini.APIKey)
	pickString("gemini.model", &result.Gemini.Model, profile.Gemini.Model)
	pickString("gemini.prompt", &result.Gemini.Prompt, profile.Gemini.Prompt)
	pickString("gemini.tts_voice", &result.Gemini.TTSVoice, profile.Gemini.TTSVoice)
	pickString("gemini.tts_language", &result.Gemini.TTSLanguage, profile.Gemini.TTSLanguage)
	pickInt("server.port", &result.Server.Port, profile.Server.Port)

	return result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks every field and returns the first problem found
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("owner_id is required")
	}
	if strings.ContainsAny(c.OwnerID, "/\\") || c.OwnerID == "." || c.OwnerID == ".." {
		return fmt.Errorf("owner_id must not contain path separators, got: %s", c.OwnerID)
	}

	if c.Storage.Directory == "" {
		return fmt.Errorf("storage.directory is required")
	}
	if err := validateHTTPURL("storage.public_base_url", c.Storage.PublicBaseURL); err != nil {
		return err
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := validateHTTPURL("analyzer.url", c.Analyzer.URL); err != nil {
		return err
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be > 0, got: %s", c.Analyzer.Timeout)
	}

	switch strings.ToLower(c.Capture.Backend) {
	case "auto", "ffmpeg", "arecord":
	default:
		return fmt.Errorf("capture.backend must be 'auto', 'ffmpeg' or 'arecord', got: %s", c.Capture.Backend)
	}
	if c.Capture.ChunkSize <= 0 {
		return fmt.Errorf("capture.chunk_size must be > 0, got: %d", c.Capture.ChunkSize)
	}

	if c.Display.GroupBy != "week" && c.Display.GroupBy != "month" {
		return fmt.Errorf("display.group_by must be 'week' or 'month', got: %s", c.Display.GroupBy)
	}
	if c.Display.Locale != "pt-BR" && c.Display.Locale != "en" {
		return fmt.Errorf("display.locale must be 'pt-BR' or 'en', got: %s", c.Display.Locale)
	}
	if _, err := ParseWeekday(c.Display.WeekStart); err != nil {
		return fmt.Errorf("display.week_start: %w", err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}

	return nil
}

func validateHTTPURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got: %s", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got: %s", key, raw)
	}
	return nil
}

// ParseWeekday accepts english weekday names, case-insensitive
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// WeekStartDay returns the configured first day of the week, Sunday if unset
func (c *Config) WeekStartDay() time.Weekday {
	d, err := ParseWeekday(c.Display.WeekStart)
	if err != nil {
		return time.Sunday
	}
	return d
}

// GeminiEnabled reports whether the built-in analyzer backend can be served
func (c *Config) GeminiEnabled() bool {
	return c.Gemini.APIKey != ""
}
