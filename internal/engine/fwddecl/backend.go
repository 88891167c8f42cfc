package fwddecl

import (
	"context"
	"includecut/internal/core/errors"
	"time"
)

const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Backend selects and configures the model behind the oracle.
type Backend struct {
	Name    string
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewFactory returns a factory producing oracles for b.
func NewFactory(b Backend) (Factory, error) {
	switch b.Name {
	case BackendOpenAI, "":
		return func(context.Context) (Oracle, error) {
			return NewOpenAIClient(OpenAIConfig{BaseURL: b.BaseURL, APIKey: b.APIKey, Model: b.Model, Timeout: b.Timeout}), nil
		}, nil
	case BackendGemini:
		return func(ctx context.Context) (Oracle, error) {
			g, err := NewGeminiClient(ctx, b.APIKey, b.Model)
			if err != nil {
				return nil, err
			}
			return g, nil
		}, nil
	default:
		return nil, errors.Newf(errors.CodeValidationError, "unknown oracle backend %q", b.Name)
	}
}
