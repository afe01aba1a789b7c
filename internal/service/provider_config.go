package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/models"
	"github.com/noah-isme/screening-api/internal/repository"
	"github.com/noah-isme/screening-api/pkg/ai"
)

// ProviderConfig is the provider selection used for one scoring call.
type ProviderConfig struct {
	Provider ai.ProviderKind
	Model    string
	APIKey   string
}

// Validate checks that provider, model and key are present and consistent.
func (c ProviderConfig) Validate() error {
	if _, ok := ai.ParseProviderKind(string(c.Provider)); !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown scoring provider %q", c.Provider)}
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("no API key configured for %s", c.Provider)}
	}
	if strings.TrimSpace(c.Model) == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("no model selected for %s", c.Provider)}
	}
	if !ai.SupportsModel(c.Provider, c.Model) {
		return &ConfigurationError{Reason: fmt.Sprintf("model %q is not supported by %s (choose one of %s)",
			c.Model, c.Provider, strings.Join(ai.Models(c.Provider), ", "))}
	}
	return nil
}

// ProviderConfigResolver yields the active provider configuration of an
// operator. Implementations must not cache: it is called before every
// scoring attempt.
type ProviderConfigResolver interface {
	Resolve(ctx context.Context, operatorID uint) (ProviderConfig, error)
}

// ProviderConfigResolverFunc adapts a function to ProviderConfigResolver.
type ProviderConfigResolverFunc func(ctx context.Context, operatorID uint) (ProviderConfig, error)

// Resolve calls f.
func (f ProviderConfigResolverFunc) Resolve(ctx context.Context, operatorID uint) (ProviderConfig, error) {
	return f(ctx, operatorID)
}

// NewSettingsProviderResolver resolves provider configuration from stored
// operator settings.
func NewSettingsProviderResolver(repo repository.OperatorSettingsRepository) ProviderConfigResolver {
	return &settingsProviderResolver{repo: repo}
}

type settingsProviderResolver struct {
	repo repository.OperatorSettingsRepository
}

func (r *settingsProviderResolver) Resolve(ctx context.Context, operatorID uint) (ProviderConfig, error) {
	settings, err := r.repo.Get(ctx, operatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProviderConfig{}, &ConfigurationError{Reason: "configure the scoring provider and API key in the settings"}
		}
		return ProviderConfig{}, fmt.Errorf("load operator settings: %w", err)
	}
	return ProviderConfigFromSettings(settings)
}

// ProviderConfigFromSettings reads scoring_provider, scoring_model and the
// provider's <provider>_api_key entry. A missing provider falls back to
// ai.DefaultProvider; nothing else is defaulted.
func ProviderConfigFromSettings(settings models.OperatorSettings) (ProviderConfig, error) {
	rawProvider := settings.String(models.SettingScoringProvider)
	provider := ai.DefaultProvider
	if strings.TrimSpace(rawProvider) != "" {
		parsed, ok := ai.ParseProviderKind(rawProvider)
		if !ok {
			return ProviderConfig{}, &ConfigurationError{Reason: fmt.Sprintf("unknown scoring provider %q", rawProvider)}
		}
		provider = parsed
	}

	cfg := ProviderConfig{
		Provider: provider,
		Model:    strings.TrimSpace(settings.String(models.SettingScoringModel)),
		APIKey:   strings.TrimSpace(settings.String(provider.APIKeyField())),
	}
	if err := cfg.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return cfg, nil
}
