package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   PipelineConfig
		want func(t *testing.T, c PipelineConfig)
	}{
		{
			name: "空配置使用默认值",
			in:   PipelineConfig{},
			want: func(t *testing.T, c PipelineConfig) {
				assert.Equal(t, DefaultRowCap, c.DefaultRowCap)
				assert.Equal(t, DefaultMaxRowCap, c.MaxRowCap)
				assert.Equal(t, DefaultExecutionTimeout, c.ExecutionTimeout)
				assert.Equal(t, ScopeModeFused, c.ScopeMode)
				assert.Equal(t, SentinelMatchPrefix, c.SentinelMatch)
				assert.Equal(t, DefaultSentinel, c.Sentinel)
			},
		},
		{
			name: "默认上限不超过最大上限",
			in:   PipelineConfig{DefaultRowCap: 500, MaxRowCap: 200},
			want: func(t *testing.T, c PipelineConfig) {
				assert.Equal(t, 200, c.DefaultRowCap)
				assert.Equal(t, 200, c.MaxRowCap)
			},
		},
		{
			name: "保留显式配置",
			in:   PipelineConfig{ScopeMode: ScopeModeSeparate, SentinelMatch: SentinelMatchExact, ExecutionTimeout: time.Second},
			want: func(t *testing.T, c PipelineConfig) {
				assert.Equal(t, ScopeModeSeparate, c.ScopeMode)
				assert.Equal(t, SentinelMatchExact, c.SentinelMatch)
				assert.Equal(t, time.Second, c.ExecutionTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.Normalize()
			tt.want(t, c)
		})
	}
}
