package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("POLY_SERVER__PORT", "")
		os.Unsetenv("POLY_SERVER__PORT")

		cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Orchestrator.OverallTimeout != 90*time.Second {
			t.Errorf("overall timeout = %v, want 90s", cfg.Orchestrator.OverallTimeout)
		}
		if cfg.Orchestrator.ConfidenceThreshold != 0.7 {
			t.Errorf("confidence threshold = %v, want 0.7", cfg.Orchestrator.ConfidenceThreshold)
		}
		if cfg.Usage.Limits["free"] != 3 {
			t.Errorf("free limit = %v, want 3", cfg.Usage.Limits["free"])
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("cache type = %q, want memory", cfg.Cache.Type)
		}
		if got := cfg.Usage.Upgrade["free"]; got.Tier != "pro" || got.Suggestion == "" {
			t.Errorf("free upgrade = %+v, want pro offer", got)
		}
		if got := cfg.Usage.Upgrade["pro"]; got.Tier != "premium" {
			t.Errorf("pro upgrade = %+v, want premium offer", got)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("POLY_SERVER__PORT", "9000")

		cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("port = %v, want 9000", cfg.Server.Port)
		}
	})
}

func TestLoadFile_YAML(t *testing.T) {
	t.Setenv("TEST_DRAFT_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 8181
providers:
  - name: draft
    type: openai
    role: drafting
    api_key: ${TEST_DRAFT_KEY}
    timeout: 45s
orchestrator:
  qa_timeout: 5s
  tiers:
    pro:
      multi_provider: true
      validation: true
      qa: "off"
usage:
  limits:
    pro: 10
  upgrade:
    free:
      tier: premium
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8181 {
		t.Errorf("port = %v, want 8181", cfg.Server.Port)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("providers = %d, want 1", len(cfg.Providers))
	}
	if cfg.Providers[0].APIKey != "sk-test" {
		t.Errorf("api key = %q, want substituted value", cfg.Providers[0].APIKey)
	}
	if cfg.Providers[0].Timeout != 45*time.Second {
		t.Errorf("provider timeout = %v, want 45s", cfg.Providers[0].Timeout)
	}
	if cfg.Orchestrator.QATimeout != 5*time.Second {
		t.Errorf("qa timeout = %v, want 5s", cfg.Orchestrator.QATimeout)
	}
	if got := cfg.Orchestrator.Tiers["pro"].QA; got != "off" {
		t.Errorf("pro qa = %q, want off", got)
	}
	if cfg.Usage.Limits["pro"] != 10 {
		t.Errorf("pro limit = %d, want 10", cfg.Usage.Limits["pro"])
	}
	if cfg.Usage.Limits["free"] != 3 {
		t.Errorf("free limit default lost, got %d", cfg.Usage.Limits["free"])
	}
	if got := cfg.Usage.Upgrade["free"]; got.Tier != "premium" || got.Price != "" {
		t.Errorf("free upgrade = %+v, want configured offer without default price", got)
	}
	if _, ok := cfg.Usage.Upgrade["pro"]; ok {
		t.Error("configured offers should replace the defaults")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
