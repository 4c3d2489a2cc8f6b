package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reva-dev/reva/internal/agent"
)

// Config represents the application configuration
type Config struct {
	// Org is the GitHub organization whose open pull requests are tracked.
	Org string `yaml:"org,omitempty"`

	// PollInterval is how often the poll loop refreshes the working set,
	// e.g. "2m". Zero disables periodic polling.
	PollInterval string `yaml:"poll_interval,omitempty"`

	// Listen is the address the local API server binds to.
	Listen string `yaml:"listen,omitempty"`

	Agent  *AgentOverrides  `yaml:"agent,omitempty"`
	Prompt *PromptOverrides `yaml:"prompt,omitempty"`
}

// AgentOverrides customizes how the analysis tool is spawned.
type AgentOverrides struct {
	Tool      *string `yaml:"tool,omitempty"`
	Model     *string `yaml:"model,omitempty"`
	Timeout   *string `yaml:"timeout,omitempty"`
	KillGrace *string `yaml:"kill_grace,omitempty"`
}

// PromptOverrides customizes the review prompt.
type PromptOverrides struct {
	Addons  []string `yaml:"addons,omitempty"`
	Context string   `yaml:"context,omitempty"`
}

// AgentSettings is the fully resolved agent configuration.
type AgentSettings struct {
	Tool      string
	Model     string
	Timeout   time.Duration
	KillGrace time.Duration
}

// DefaultAgentSettings returns the default agent settings.
func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		Tool:      "claude",
		Timeout:   agent.DefaultTimeout,
		KillGrace: agent.DefaultKillGrace,
	}
}

// GetAgentSettings returns agent settings with user overrides merged with
// defaults. Invalid duration strings surface as errors rather than being
// silently replaced.
func (c *Config) GetAgentSettings() (AgentSettings, error) {
	settings := DefaultAgentSettings()
	if c.Agent == nil {
		return settings, nil
	}

	a := c.Agent
	if a.Tool != nil && *a.Tool != "" {
		settings.Tool = *a.Tool
	}
	if a.Model != nil {
		settings.Model = *a.Model
	}
	if a.Timeout != nil && *a.Timeout != "" {
		d, err := time.ParseDuration(*a.Timeout)
		if err != nil {
			return settings, fmt.Errorf("invalid agent.timeout %q: %w", *a.Timeout, err)
		}
		settings.Timeout = d
	}
	if a.KillGrace != nil && *a.KillGrace != "" {
		d, err := time.ParseDuration(*a.KillGrace)
		if err != nil {
			return settings, fmt.Errorf("invalid agent.kill_grace %q: %w", *a.KillGrace, err)
		}
		settings.KillGrace = d
	}

	return settings, nil
}

// GetPollInterval parses the configured poll interval, defaulting to 2m.
func (c *Config) GetPollInterval() (time.Duration, error) {
	if c.PollInterval == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval %q: %w", c.PollInterval, err)
	}
	return d, nil
}

// GetListen returns the API listen address, defaulting to localhost.
func (c *Config) GetListen() string {
	if c.Listen == "" {
		return "127.0.0.1:7432"
	}
	return c.Listen
}

// GetPromptAddons returns the configured prompt add-on names.
func (c *Config) GetPromptAddons() []string {
	if c.Prompt == nil {
		return nil
	}
	return c.Prompt.Addons
}

// GetPromptContext returns the persistent context appended to every prompt.
func (c *Config) GetPromptContext() string {
	if c.Prompt == nil {
		return ""
	}
	return c.Prompt.Context
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".reva"
	}
	return filepath.Join(configDir, "reva")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".reva.yaml"
}

// Load loads the configuration from disk.
// It first loads the global config from the XDG config directory, then merges
// any local .reva.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}
		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}
		cfg = mergeConfig(cfg, &localCfg)
	}

	return cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{}

	if local.Org != "" {
		result.Org = local.Org
	} else {
		result.Org = global.Org
	}

	if local.PollInterval != "" {
		result.PollInterval = local.PollInterval
	} else {
		result.PollInterval = global.PollInterval
	}

	if local.Listen != "" {
		result.Listen = local.Listen
	} else {
		result.Listen = global.Listen
	}

	result.Agent = mergeAgentOverrides(global.Agent, local.Agent)
	result.Prompt = mergePromptOverrides(global.Prompt, local.Prompt)

	return result
}

func mergeAgentOverrides(global, local *AgentOverrides) *AgentOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &AgentOverrides{}

	if global != nil {
		result.Tool = global.Tool
		result.Model = global.Model
		result.Timeout = global.Timeout
		result.KillGrace = global.KillGrace
	}

	if local != nil {
		if local.Tool != nil {
			result.Tool = local.Tool
		}
		if local.Model != nil {
			result.Model = local.Model
		}
		if local.Timeout != nil {
			result.Timeout = local.Timeout
		}
		if local.KillGrace != nil {
			result.KillGrace = local.KillGrace
		}
	}

	if result.Tool == nil && result.Model == nil && result.Timeout == nil && result.KillGrace == nil {
		return nil
	}

	return result
}

func mergePromptOverrides(global, local *PromptOverrides) *PromptOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &PromptOverrides{}

	if global != nil {
		result.Addons = global.Addons
		result.Context = global.Context
	}

	if local != nil {
		if len(local.Addons) > 0 {
			result.Addons = local.Addons
		}
		if local.Context != "" {
			result.Context = local.Context
		}
	}

	if len(result.Addons) == 0 && result.Context == "" {
		return nil
	}

	return result
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir := DefaultConfigDir()

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetGitHubToken returns the GitHub token from the GITHUB_TOKEN environment variable.
// Following 12-factor app best practices, tokens are only read from the environment.
func (c *Config) GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# Reva configuration file

# GitHub organization to track
# org: my-org

# How often to refresh the working set
poll_interval: 2m

# Local API listen address
listen: 127.0.0.1:7432

# Analysis tool settings (optional)
# agent:
#   tool: claude
#   model: sonnet
#   timeout: 5m
#   kill_grace: 3s

# Prompt customization (optional)
# prompt:
#   addons: [security, performance]
#   context: |
#     This codebase uses Go 1.21 and follows internal style guide v3.
`
}
