package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/glossary"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Matcher MatcherConfig     `yaml:"matcher"`
	Bridge  BridgeConfig      `yaml:"bridge"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Matcher.Validate(); err != nil {
		return err
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the vault directory plus the rules restricting which
// notes contribute glossary terms. Directory patterns are regular
// expressions matched against vault-relative paths.
type VaultConfig struct {
	Path        string   `yaml:"path"`
	IncludeDirs []string `yaml:"include_dirs"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
	IncludeTags []string `yaml:"include_tags"`
	ExcludeTags []string `yaml:"exclude_tags"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Rules returns the glossary eligibility rules.
func (c *VaultConfig) Rules() glossary.Rules {
	return glossary.Rules{
		IncludeDirs: c.IncludeDirs,
		ExcludeDirs: c.ExcludeDirs,
		IncludeTags: c.IncludeTags,
		ExcludeTags: c.ExcludeTags,
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MatcherConfig holds the global matching policy applied to every scan.
type MatcherConfig struct {
	MatchAnyPart              bool    `yaml:"match_any_part"`
	MatchBeginning            bool    `yaml:"match_beginning"`
	MatchEnd                  bool    `yaml:"match_end"`
	SuppressSuffixForSubwords bool    `yaml:"suppress_suffix_for_subwords"`
	LinkOnce                  bool    `yaml:"link_once"`
	ExcludeAlreadyLinked      bool    `yaml:"exclude_already_linked"`
	Antialiases               bool    `yaml:"antialiases"`
	IncludeHeaders            bool    `yaml:"include_headers"`
	CaseSensitiveDefault      bool    `yaml:"case_sensitive_default"`
	CapitalizationThreshold   float64 `yaml:"capitalization_threshold"`
	ContextWindow             string  `yaml:"context_window"`
}

// Validate validates the matcher configuration.
func (c *MatcherConfig) Validate() error {
	if c.ContextWindow == "" {
		c.ContextWindow = glossary.ContextLine
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CapitalizationThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.ContextWindow, validation.In(glossary.ContextLine, glossary.ContextBuffer)),
	)
}

// Policy converts the matcher configuration into a scan policy.
func (c *MatcherConfig) Policy() glossary.Policy {
	return glossary.Policy{
		MatchAnyPart:              c.MatchAnyPart,
		MatchBeginning:            c.MatchBeginning,
		MatchEnd:                  c.MatchEnd,
		SuppressSuffixForSubwords: c.SuppressSuffixForSubwords,
		LinkOnce:                  c.LinkOnce,
		ExcludeAlreadyLinked:      c.ExcludeAlreadyLinked,
		AntialiasesEnabled:        c.Antialiases,
		IncludeHeaders:            c.IncludeHeaders,
		CaseSensitiveDefault:      c.CaseSensitiveDefault,
		CapitalizationThreshold:   c.CapitalizationThreshold,
		ContextWindow:             c.ContextWindow,
	}
}

// BridgeConfig tunes the background bulk scan and the decorate-path cache.
type BridgeConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Workers   int `yaml:"workers"`
	CacheSize int `yaml:"cache_size"`
}

// Validate validates the bridge configuration.
func (c *BridgeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Matcher: MatcherConfig{
			MatchEnd:                true,
			LinkOnce:                true,
			ExcludeAlreadyLinked:    true,
			Antialiases:             true,
			IncludeHeaders:          true,
			CapitalizationThreshold: 0.75,
			ContextWindow:           glossary.ContextLine,
		},
		Bridge: BridgeConfig{
			ChunkSize: 32,
			Workers:   4,
			CacheSize: 128,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
