package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/logger"
)

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Current   bool   `json:"current"`
}

type registered struct {
	provider  Provider
	model     string
	available bool
}

// Manager owns the configured providers, tracks which is current and falls
// back through the rest in priority order when a call fails.
type Manager struct {
	mu          sync.RWMutex
	order       []string
	providers   map[string]*registered
	current     string
	temperature float64
	maxTokens   int
}

// NewManager builds providers for every enabled entry in cfg. Nothing is
// contacted until Initialize.
func NewManager(cfg *config.LLMConfig) *Manager {
	m := &Manager{
		providers:   make(map[string]*registered),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	for _, name := range cfg.EnabledProviders() {
		pc := cfg.Providers[name]
		var p Provider
		switch name {
		case "ollama":
			p = NewOllama(pc.BaseURL, pc.Model, cfg.Timeout)
		case "anthropic":
			p = NewAnthropic(pc.BaseURL, pc.APIKey, pc.Model, cfg.Timeout)
		default:
			p = NewOpenAICompatible(name, pc.BaseURL, pc.APIKey, pc.Model, cfg.Timeout)
		}
		m.Register(p, pc.Model)
	}
	return m
}

// Register adds p at the lowest priority. It is not available until
// Initialize checks it.
func (m *Manager) Register(p Provider, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[p.Name()]; !ok {
		m.order = append(m.order, p.Name())
	}
	m.providers[p.Name()] = &registered{provider: p, model: model}
}

// Initialize checks each provider with ListModels and selects the first
// available one as current. It fails only when none answers.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	m.mu.RUnlock()

	available := make(map[string]bool, len(order))
	for _, name := range order {
		m.mu.RLock()
		p := m.providers[name].provider
		m.mu.RUnlock()

		if _, err := p.ListModels(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldProvider, name).Warn("LLM provider unavailable")
			continue
		}
		available[name] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
	for _, name := range m.order {
		r := m.providers[name]
		r.available = available[name]
		if r.available && m.current == "" {
			m.current = name
		}
	}
	if m.current == "" {
		return ErrNoProvider
	}
	logger.FromContext(ctx).WithField(logger.FieldProvider, m.current).Info("LLM provider selected")
	return nil
}

// Current returns the name of the current provider, or "" when none is available.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Switch makes name the current provider.
func (m *Manager) Switch(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.providers[name]
	if !ok || !r.available {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	m.current = name
	return nil
}

// Providers describes every registered provider in priority order.
func (m *Manager) Providers() []ProviderInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProviderInfo, 0, len(m.order))
	for _, name := range m.order {
		r := m.providers[name]
		out = append(out, ProviderInfo{
			Name:      name,
			Model:     r.model,
			Available: r.available,
			Current:   name == m.current,
		})
	}
	return out
}

// candidates returns the current provider followed by the other available
// ones in priority order.
func (m *Manager) candidates() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Provider
	if r, ok := m.providers[m.current]; ok && r.available {
		out = append(out, r.provider)
	}
	for _, name := range m.order {
		r := m.providers[name]
		if name != m.current && r.available {
			out = append(out, r.provider)
		}
	}
	return out
}

// Chat sends req to the current provider and falls back on failure. Unset
// temperature and token limits take the configured defaults.
func (m *Manager) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	if req.Temperature == 0 {
		req.Temperature = m.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = m.maxTokens
	}

	candidates := m.candidates()
	if len(candidates) == 0 {
		return nil, ErrNoProvider
	}

	var errs []error
	for _, p := range candidates {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldProvider, p.Name()).Warn("LLM call failed, trying next provider")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all LLM providers failed: %w", errors.Join(errs...))
}

// GenerateText is Chat with a single prompt and optional system message.
func (m *Manager) GenerateText(ctx context.Context, system, prompt string) (*Response, error) {
	return m.Chat(ctx, ChatRequest{Messages: buildMessages(system, prompt)})
}
