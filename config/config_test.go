package config

import (
	"testing"
	"time"
)

func TestGetAgentSettings(t *testing.T) {
	t.Run("returns defaults when no overrides", func(t *testing.T) {
		cfg := &Config{}
		settings, err := cfg.GetAgentSettings()
		if err != nil {
			t.Fatalf("GetAgentSettings() error = %v", err)
		}

		if settings.Tool != "claude" {
			t.Errorf("Tool = %q, want claude", settings.Tool)
		}
		if settings.Timeout != 5*time.Minute {
			t.Errorf("Timeout = %v, want 5m", settings.Timeout)
		}
		if settings.KillGrace != 3*time.Second {
			t.Errorf("KillGrace = %v, want 3s", settings.KillGrace)
		}
		if settings.Model != "" {
			t.Errorf("Model = %q, want empty", settings.Model)
		}
	})

	t.Run("merges partial overrides", func(t *testing.T) {
		model := "sonnet"
		timeout := "10m"
		cfg := &Config{
			Agent: &AgentOverrides{
				Model:   &model,
				Timeout: &timeout,
			},
		}
		settings, err := cfg.GetAgentSettings()
		if err != nil {
			t.Fatalf("GetAgentSettings() error = %v", err)
		}

		if settings.Model != "sonnet" {
			t.Errorf("Model = %q, want sonnet", settings.Model)
		}
		if settings.Timeout != 10*time.Minute {
			t.Errorf("Timeout = %v, want 10m", settings.Timeout)
		}
		// Defaults preserved
		if settings.Tool != "claude" {
			t.Errorf("Tool = %q, want claude", settings.Tool)
		}
		if settings.KillGrace != 3*time.Second {
			t.Errorf("KillGrace = %v, want 3s", settings.KillGrace)
		}
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		timeout := "not-a-duration"
		cfg := &Config{
			Agent: &AgentOverrides{Timeout: &timeout},
		}
		if _, err := cfg.GetAgentSettings(); err == nil {
			t.Error("GetAgentSettings() error = nil, want parse error")
		}
	})
}

func TestGetPollInterval(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		cfg := &Config{}
		d, err := cfg.GetPollInterval()
		if err != nil {
			t.Fatalf("GetPollInterval() error = %v", err)
		}
		if d != 2*time.Minute {
			t.Errorf("interval = %v, want 2m", d)
		}
	})

	t.Run("configured", func(t *testing.T) {
		cfg := &Config{PollInterval: "30s"}
		d, err := cfg.GetPollInterval()
		if err != nil {
			t.Fatalf("GetPollInterval() error = %v", err)
		}
		if d != 30*time.Second {
			t.Errorf("interval = %v, want 30s", d)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := &Config{PollInterval: "often"}
		if _, err := cfg.GetPollInterval(); err == nil {
			t.Error("GetPollInterval() error = nil, want parse error")
		}
	})
}

func TestMergeConfig(t *testing.T) {
	t.Run("local values take precedence", func(t *testing.T) {
		globalTool := "claude"
		localModel := "opus"
		global := &Config{
			Org:    "global-org",
			Listen: "127.0.0.1:9000",
			Agent:  &AgentOverrides{Tool: &globalTool},
		}
		local := &Config{
			Org:   "local-org",
			Agent: &AgentOverrides{Model: &localModel},
		}

		merged := mergeConfig(global, local)

		if merged.Org != "local-org" {
			t.Errorf("Org = %q, want local-org", merged.Org)
		}
		if merged.Listen != "127.0.0.1:9000" {
			t.Errorf("Listen = %q, want global value preserved", merged.Listen)
		}
		if merged.Agent == nil || merged.Agent.Tool == nil || *merged.Agent.Tool != "claude" {
			t.Error("global agent.tool not preserved through merge")
		}
		if merged.Agent.Model == nil || *merged.Agent.Model != "opus" {
			t.Error("local agent.model not applied")
		}
	})

	t.Run("all-nil sections collapse to nil", func(t *testing.T) {
		merged := mergeConfig(&Config{}, &Config{})
		if merged.Agent != nil {
			t.Error("Agent section should be nil when nothing is set")
		}
		if merged.Prompt != nil {
			t.Error("Prompt section should be nil when nothing is set")
		}
	})

	t.Run("prompt addons replace", func(t *testing.T) {
		global := &Config{Prompt: &PromptOverrides{Addons: []string{"security"}}}
		local := &Config{Prompt: &PromptOverrides{Addons: []string{"performance", "tests"}}}

		merged := mergeConfig(global, local)
		if merged.Prompt == nil || len(merged.Prompt.Addons) != 2 || merged.Prompt.Addons[0] != "performance" {
			t.Errorf("Addons = %+v, want local list", merged.Prompt)
		}
	})
}

func TestGetListen(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetListen(); got != "127.0.0.1:7432" {
		t.Errorf("GetListen() = %q, want default", got)
	}
	cfg.Listen = "0.0.0.0:8080"
	if got := cfg.GetListen(); got != "0.0.0.0:8080" {
		t.Errorf("GetListen() = %q, want configured value", got)
	}
}
