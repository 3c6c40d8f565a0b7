// Package provider builds the model backend the gateway answers with.
//
// With a credential configured the backend is the Gemini provider; without
// one it is the fallback synthesizer. Either is wrapped in Throttled.
package provider

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/rx-inference-gateway/internal/config"
	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
	"github.com/tjfontaine/rx-inference-gateway/internal/fallback"
	"github.com/tjfontaine/rx-inference-gateway/internal/provider/gemini"
	"github.com/tjfontaine/rx-inference-gateway/internal/tokens"
)

// New creates the provider described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Provider, error) {
	var base domain.Provider

	if cfg.Configured() {
		opts := []gemini.ProviderOption{
			gemini.WithModel(cfg.Model.Name),
			gemini.WithTemperature(cfg.Model.Temperature),
			gemini.WithMaxOutputTokens(cfg.Model.MaxOutputTokens),
			gemini.WithEstimator(tokens.NewEstimator()),
		}
		if cfg.Model.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Model.BaseURL))
		}
		p, err := gemini.New(ctx, cfg.Model.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		base = p
		logger.Info("model provider configured",
			slog.String("provider", p.Name()),
			slog.String("model", p.Model()),
		)
	} else {
		base = fallback.New(fallback.WithWordDelay(cfg.Fallback.WordDelay))
		logger.Warn("no model credential configured, answering with fallback responses")
	}

	return NewThrottled(base, cfg.Model.PreCallDelay), nil
}
