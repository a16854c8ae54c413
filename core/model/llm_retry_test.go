package model

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scripted(replies ...interface{}) (Completer, *int) {
	calls := 0
	return CompleterFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		defer func() { calls++ }()
		if calls >= len(replies) {
			return "", fmt.Errorf("no more replies")
		}
		switch r := replies[calls].(type) {
		case error:
			return "", r
		default:
			return r.(string), nil
		}
	}), &calls
}

func fastRetry() *SingleModelRetryConfig {
	return &SingleModelRetryConfig{MaxRetries: 1, RetryDelay: time.Millisecond}
}

func TestCompleteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		replies   []interface{}
		want      string
		wantErr   bool
		wantCalls int
	}{
		{name: "首次成功", replies: []interface{}{"SELECT 1"}, want: "SELECT 1", wantCalls: 1},
		{name: "传输失败后重试成功", replies: []interface{}{fmt.Errorf("503"), "SELECT 1"}, want: "SELECT 1", wantCalls: 2},
		{name: "空响应后重试成功", replies: []interface{}{"  \n", "SELECT 2"}, want: "SELECT 2", wantCalls: 2},
		{name: "两次失败", replies: []interface{}{fmt.Errorf("503"), ""}, wantErr: true, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := scripted(tt.replies...)
			got, err := CompleteWithRetry(context.Background(), c, fastRetry(), CompletionRequest{User: "q"})
			assert.Equal(t, tt.wantCalls, *calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrGenerationUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompleteWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := CompleterFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		cancel()
		return "", fmt.Errorf("transport closed")
	})

	_, err := CompleteWithRetry(ctx, c, &SingleModelRetryConfig{MaxRetries: 1, RetryDelay: time.Hour}, CompletionRequest{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGenerationUnavailable))
}
