package ai

import (
	"errors"

	"github.com/hrygo/virtualclone/ai/answering"
	"github.com/hrygo/virtualclone/ai/core/llm"
	"github.com/hrygo/virtualclone/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Answering answering.Config
	LLM       LLMConfig
	Translate LLMConfig
	Enabled   bool
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	MaxTokens         int
	Temperature       float32
	Timeout           int
	RequestsPerSecond float64
	Burst             int
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.AIEnabled,
		Answering: answering.Config{
			CacheCapacity:       p.AnswerCacheCapacity,
			RecentExchanges:     p.RecentExchanges,
			RepetitionWindow:    p.RepetitionWindow,
			SimilarityThreshold: p.SimilarityThreshold,
			PrimaryTopK:         p.QATopKPrimary,
			DiverseTopK:         p.QATopKDiverse,
			MaxAnswerLength:     p.MaxAnswerLength,
		},
	}

	if !cfg.Enabled {
		return cfg
	}

	// Extractive answering wants deterministic spans.
	cfg.LLM = LLMConfig{
		Provider:          p.LLMProvider,
		Model:             p.LLMModel,
		APIKey:            p.LLMAPIKey,
		BaseURL:           p.LLMBaseURL,
		MaxTokens:         1024,
		Temperature:       0,
		Timeout:           p.LLMTimeout,
		RequestsPerSecond: p.LLMRateLimit,
		Burst:             p.LLMBurst,
	}

	cfg.Translate = cfg.LLM
	cfg.Translate.Model = p.TranslateModel
	cfg.Translate.MaxTokens = 512
	cfg.Translate.Temperature = 0.2

	return cfg
}

// ServiceConfig converts c to the llm package configuration.
func (c LLMConfig) ServiceConfig() *llm.Config {
	return &llm.Config{
		Provider:          c.Provider,
		Model:             c.Model,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Answering.SimilarityThreshold > 1 {
		return errors.New("similarity threshold must not exceed 1")
	}
	if c.Answering.PrimaryTopK < 0 || c.Answering.DiverseTopK < 0 {
		return errors.New("top-k must not be negative")
	}

	if !c.Enabled {
		return nil
	}

	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	return nil
}
