package config

import (
	"os"
	"time"
)

// DefaultProviderPriority is the order in which LLM providers are tried.
var DefaultProviderPriority = []string{"ollama", "deepseek", "openai", "anthropic", "baidu", "alibaba", "zhipu"}

// LLMConfig configures the chat backends used for question answering.
type LLMConfig struct {
	Priority     []string                     `mapstructure:"priority"`
	DefaultModel string                       `mapstructure:"default_model"`
	Temperature  float64                      `mapstructure:"temperature"`
	MaxTokens    int                          `mapstructure:"max_tokens"`
	Timeout      time.Duration                `mapstructure:"timeout"`
	Providers    map[string]LLMProviderConfig `mapstructure:"providers"`
}

// LLMProviderConfig defines a single provider endpoint.
type LLMProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"` // environment variable holding the key
	Enabled   bool   `mapstructure:"enabled"`     // only consulted for keyless providers
}

var defaultProviders = map[string]LLMProviderConfig{
	"ollama":    {BaseURL: "http://localhost:11434", Model: "llama3.1", Enabled: true},
	"deepseek":  {BaseURL: "https://api.deepseek.com", Model: "deepseek-chat", APIKeyEnv: "DEEPSEEK_API_KEY"},
	"openai":    {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
	"anthropic": {BaseURL: "https://api.anthropic.com", Model: "claude-3-5-haiku-latest", APIKeyEnv: "ANTHROPIC_API_KEY"},
	"baidu":     {BaseURL: "https://qianfan.baidubce.com/v2", Model: "ernie-4.0-8k", APIKeyEnv: "BAIDU_API_KEY"},
	"alibaba":   {BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", Model: "qwen-turbo", APIKeyEnv: "ALIBABA_API_KEY"},
	"zhipu":     {BaseURL: "https://open.bigmodel.cn/api/paas/v4", Model: "glm-4-flash", APIKeyEnv: "ZHIPU_API_KEY"},
}

// ResolveEnvVars fills API keys from their environment variables when not set directly.
func (c *LLMConfig) ResolveEnvVars() {
	for name, p := range c.Providers {
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
			c.Providers[name] = p
		}
	}
}

// IsEnabled reports whether the named provider has what it needs to be used:
// an API key, or the explicit enabled flag for providers that need none.
func (c *LLMConfig) IsEnabled(name string) bool {
	p, ok := c.Providers[name]
	if !ok {
		return false
	}
	if name == "ollama" {
		return p.Enabled
	}
	return p.APIKey != ""
}

// EnabledProviders returns the enabled providers in priority order.
func (c *LLMConfig) EnabledProviders() []string {
	priority := c.Priority
	if len(priority) == 0 {
		priority = DefaultProviderPriority
	}
	var enabled []string
	for _, name := range priority {
		if c.IsEnabled(name) {
			enabled = append(enabled, name)
		}
	}
	return enabled
}
