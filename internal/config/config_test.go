package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GitHub.SearchQuery != "AI machine learning artificial intelligence" {
		t.Errorf("SearchQuery = %q", cfg.GitHub.SearchQuery)
	}
	if cfg.GitHub.MaxRepos != 1000 {
		t.Errorf("MaxRepos = %d, want 1000", cfg.GitHub.MaxRepos)
	}
	if cfg.GitHub.RateLimitDelay != time.Second {
		t.Errorf("RateLimitDelay = %v, want 1s", cfg.GitHub.RateLimitDelay)
	}
	if cfg.Collection.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.Collection.BatchSize)
	}
	if cfg.Qdrant.Collection != "github_projects" {
		t.Errorf("Qdrant.Collection = %q", cfg.Qdrant.Collection)
	}
	if cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxTokens != 1000 {
		t.Errorf("LLM defaults = %v/%d, want 0.7/1000", cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}
	if got := cfg.LLM.Providers["deepseek"].BaseURL; got != "https://api.deepseek.com" {
		t.Errorf("deepseek base url = %q", got)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	yaml := "github:\n  max_repos: 200\n  rate_limit_delay: 250ms\ncollection:\n  batch_size: 10\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHub.MaxRepos != 200 {
		t.Errorf("MaxRepos = %d, want 200", cfg.GitHub.MaxRepos)
	}
	if cfg.GitHub.RateLimitDelay != 250*time.Millisecond {
		t.Errorf("RateLimitDelay = %v, want 250ms", cfg.GitHub.RateLimitDelay)
	}
	if cfg.Collection.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.Collection.BatchSize)
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("Token = %q, want from env", cfg.GitHub.Token)
	}
	if !cfg.LLM.IsEnabled("deepseek") {
		t.Error("deepseek should be enabled once its key is present")
	}
}

func TestEnabledProvidersOrder(t *testing.T) {
	cfg := LLMConfig{
		Providers: map[string]LLMProviderConfig{
			"ollama":   {Enabled: false},
			"deepseek": {APIKey: "a"},
			"openai":   {},
			"zhipu":    {APIKey: "b"},
		},
	}
	got := cfg.EnabledProviders()
	want := []string{"deepseek", "zhipu"}
	if len(got) != len(want) {
		t.Fatalf("EnabledProviders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EnabledProviders()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:   DatabaseConfig{Driver: "sqlite"},
			GitHub:     GitHubConfig{MaxRepos: 100, PerPage: 100},
			Collection: CollectionConfig{BatchSize: 50},
			Embedding:  EmbeddingConfig{Dimensions: 8},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "max repos too large", mutate: func(c *Config) { c.GitHub.MaxRepos = 5000 }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Collection.BatchSize = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.GitHub.RateLimitDelay = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
