package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/screening-api/internal/models"
	"github.com/noah-isme/screening-api/pkg/ai"
)

func TestProviderConfigFromSettings(t *testing.T) {
	cases := []struct {
		name     string
		metadata datatypes.JSONMap
		want     ProviderConfig
		wantErr  string
	}{
		{
			name:     "openai",
			metadata: datatypes.JSONMap{"scoring_provider": "openai", "scoring_model": "gpt-4o", "openai_api_key": "sk-1"},
			want:     ProviderConfig{Provider: ai.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-1"},
		},
		{
			name:     "deepseek mixed case",
			metadata: datatypes.JSONMap{"scoring_provider": " DeepSeek ", "scoring_model": "deepseek-chat", "deepseek_api_key": "ds-1", "openai_api_key": "sk-1"},
			want:     ProviderConfig{Provider: ai.ProviderDeepSeek, Model: "deepseek-chat", APIKey: "ds-1"},
		},
		{
			name:     "provider defaults to openai",
			metadata: datatypes.JSONMap{"scoring_model": "gpt-4", "openai_api_key": "sk-1"},
			want:     ProviderConfig{Provider: ai.ProviderOpenAI, Model: "gpt-4", APIKey: "sk-1"},
		},
		{
			name:     "key of other provider is ignored",
			metadata: datatypes.JSONMap{"scoring_provider": "deepseek", "scoring_model": "deepseek-chat", "openai_api_key": "sk-1"},
			wantErr:  "no API key configured for deepseek",
		},
		{
			name:     "missing model",
			metadata: datatypes.JSONMap{"scoring_provider": "openai", "openai_api_key": "sk-1"},
			wantErr:  "no model selected for openai",
		},
		{
			name:     "model from other catalog",
			metadata: datatypes.JSONMap{"scoring_provider": "openai", "scoring_model": "deepseek-chat", "openai_api_key": "sk-1"},
			wantErr:  `model "deepseek-chat" is not supported by openai (choose one of gpt-4, gpt-4o, gpt-4o-mini, gpt-3.5-turbo)`,
		},
		{
			name:     "unknown provider",
			metadata: datatypes.JSONMap{"scoring_provider": "anthropic", "scoring_model": "x", "anthropic_api_key": "k"},
			wantErr:  `unknown scoring provider "anthropic"`,
		},
		{
			name:     "non string values",
			metadata: datatypes.JSONMap{"scoring_provider": 3, "scoring_model": "gpt-4", "openai_api_key": true},
			wantErr:  "no API key configured for openai",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ProviderConfigFromSettings(models.OperatorSettings{OperatorID: 1, Metadata: tc.metadata})
			if tc.wantErr != "" {
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, tc.wantErr, cfgErr.Reason)
				require.True(t, IsFatal(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, cfg)
		})
	}
}

func TestSettingsProviderResolver(t *testing.T) {
	resolver := NewSettingsProviderResolver(settingsRepoStub{settings: models.OperatorSettings{
		OperatorID: 7,
		Metadata:   datatypes.JSONMap{"scoring_provider": "openai", "scoring_model": "gpt-4o-mini", "openai_api_key": "sk-7"},
	}})
	cfg, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "sk-7", cfg.APIKey)

	_, err = NewSettingsProviderResolver(settingsRepoStub{err: errNoSettings}).Resolve(context.Background(), 7)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewSettingsProviderResolver(settingsRepoStub{err: errors.New("db down")}).Resolve(context.Background(), 7)
	require.Error(t, err)
	require.False(t, IsFatal(err))
}
