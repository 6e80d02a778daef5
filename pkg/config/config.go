// Package config loads generation settings from YAML with environment
// overrides and optional live reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cexll/structgen/pkg/mcp"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	defaultMaxTokens = 1024
	defaultTimeout   = 2 * time.Minute
)

// ErrUnknownProvider reports a provider name outside the supported set.
var ErrUnknownProvider = errors.New("config: unknown provider")

// ErrMissingAPIKey reports that no API key could be resolved from the
// environment.
var ErrMissingAPIKey = errors.New("config: api key not set")

// Settings is the resolved runtime configuration.
type Settings struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	APIKeyEnv    string   `yaml:"api_key_env,omitempty"`
	BaseURL      string   `yaml:"base_url,omitempty"`
	MaxTokens    int64    `yaml:"max_tokens,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`

	Timeout    time.Duration `yaml:"timeout,omitempty"`
	SessionDir string        `yaml:"session_dir,omitempty"`

	// ToolAllowlist restricts which registered tools the model may call.
	// Empty means every registered tool is available.
	ToolAllowlist []string `yaml:"tool_allowlist,omitempty"`

	Telemetry  TelemetrySettings  `yaml:"telemetry,omitempty"`
	MCPServers []mcp.ServerConfig `yaml:"mcp_servers,omitempty"`
}

// TelemetrySettings controls trace and metric export.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	Environment string `yaml:"environment,omitempty"`
}

// Default returns settings usable without any config file.
func Default() *Settings {
	s := &Settings{}
	s.Normalize()
	return s
}

// Normalize trims fields and fills defaults for everything left unset.
func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	s.Model = strings.TrimSpace(s.Model)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.APIKeyEnv = strings.TrimSpace(s.APIKeyEnv)

	if s.Provider == "" {
		s.Provider = ProviderAnthropic
	}
	if s.Model == "" {
		switch s.Provider {
		case ProviderAnthropic:
			s.Model = "claude-sonnet-4-5"
		case ProviderOpenAI:
			s.Model = "gpt-4o"
		}
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	for i := range s.ToolAllowlist {
		s.ToolAllowlist[i] = strings.TrimSpace(s.ToolAllowlist[i])
	}
}

// Validate checks that the settings describe a usable backend.
func (s *Settings) Validate() error {
	switch s.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}
	if s.Model == "" {
		return errors.New("config: model is required")
	}
	for _, srv := range s.MCPServers {
		if srv.Command == "" && srv.URL == "" {
			return fmt.Errorf("config: mcp server %q needs a command or url", srv.Name)
		}
	}
	return nil
}

// APIKey resolves the provider credential from the environment. APIKeyEnv
// overrides the provider's conventional variable name.
func (s *Settings) APIKey() (string, error) {
	name := s.APIKeyEnv
	if name == "" {
		switch s.Provider {
		case ProviderAnthropic:
			name = "ANTHROPIC_API_KEY"
		case ProviderOpenAI:
			name = "OPENAI_API_KEY"
		}
	}
	if key := os.Getenv(name); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s is empty", ErrMissingAPIKey, name)
}

// AllowsTool reports whether the allowlist admits the named tool.
func (s *Settings) AllowsTool(name string) bool {
	if len(s.ToolAllowlist) == 0 {
		return true
	}
	for _, allowed := range s.ToolAllowlist {
		if allowed == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a reload never mutates settings already
// handed out.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	dup := *s
	if s.Temperature != nil {
		t := *s.Temperature
		dup.Temperature = &t
	}
	dup.ToolAllowlist = append([]string(nil), s.ToolAllowlist...)
	dup.MCPServers = append([]mcp.ServerConfig(nil), s.MCPServers...)
	return &dup
}

const envPrefix = "STRUCTGEN_"

// applyEnv overlays STRUCTGEN_* variables onto file-provided settings.
func (s *Settings) applyEnv() {
	if v := os.Getenv(envPrefix + "PROVIDER"); v != "" {
		s.Provider = v
	}
	if v := os.Getenv(envPrefix + "MODEL"); v != "" {
		s.Model = v
	}
	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "SESSION_DIR"); v != "" {
		s.SessionDir = v
	}
	if v := os.Getenv(envPrefix + "OTLP_ENDPOINT"); v != "" {
		s.Telemetry.Enabled = true
		s.Telemetry.Endpoint = v
	}
}
