package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/sqlgo/core/config"
)

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{"默认openai", "", false},
		{"openai", "openai", false},
		{"azure", "azure", false},
		{"eino", "eino", false},
		{"不支持的provider", "bedrock", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newCompleter(context.Background(), config.LLMConfig{
				Provider:   tt.provider,
				APIKey:     "test-key",
				BaseURL:    "https://example.invalid/v1",
				APIVersion: "2024-06-01",
				Model:      "gpt-4o-mini",
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestGetBeforeInit(t *testing.T) {
	shared = nil
	assert.Nil(t, Get())

	var c *Components
	assert.NotPanics(t, c.Close)
}
