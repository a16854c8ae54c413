package generator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/core/model"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixDetector string

func (p prefixDetector) IsSentinel(raw string) bool {
	return len(raw) >= len(p) && raw[:len(p)] == string(p)
}

type scripted struct {
	replies []interface{}
	calls   int
}

func (s *scripted) Complete(ctx context.Context, req model.CompletionRequest) (string, error) {
	defer func() { s.calls++ }()
	if s.calls >= len(s.replies) {
		return "", fmt.Errorf("unexpected call %d", s.calls+1)
	}
	if err, ok := s.replies[s.calls].(error); ok {
		return "", err
	}
	return s.replies[s.calls].(string), nil
}

func newGenerator(c model.Completer) *SQLGenerator {
	return NewSQLGenerator(c, prefixDetector("OUT_OF_SCOPE"),
		&model.SingleModelRetryConfig{MaxRetries: 1, RetryDelay: time.Millisecond}, 0, 1000)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		candidate string
		valid     bool
	}{
		{name: "纯SQL", raw: "SELECT * FROM flights LIMIT 10", candidate: "SELECT * FROM flights LIMIT 10", valid: true},
		{name: "sql代码块", raw: "```sql\nSELECT 1;\n```", candidate: "SELECT 1;", valid: true},
		{name: "无语言代码块", raw: "```\nSELECT 2\n```", candidate: "SELECT 2", valid: true},
		{name: "单行代码块", raw: "```SELECT 3```", candidate: "SELECT 3", valid: true},
		{name: "未闭合代码块", raw: "```sql\nSELECT 4", candidate: "SELECT 4", valid: true},
		{name: "前置说明", raw: "Here is the query:\nSELECT a FROM t", candidate: "SELECT a FROM t", valid: true},
		{name: "合并多余分号", raw: "SELECT 1;;  ;\n", candidate: "SELECT 1;", valid: true},
		{name: "保留第二条语句", raw: "SELECT 1; DROP TABLE flights;", candidate: "SELECT 1; DROP TABLE flights;", valid: true},
		{name: "前置写操作不被跳过", raw: "DELETE FROM flights;\nSELECT 1", candidate: "DELETE FROM flights;\nSELECT 1", valid: true},
		{name: "WITH语句", raw: "with x as (select 1) select * from x", candidate: "with x as (select 1) select * from x", valid: true},
		{name: "括号开头", raw: "(SELECT 1) UNION (SELECT 2)", candidate: "(SELECT 1) UNION (SELECT 2)", valid: true},
		{name: "JSON响应", raw: `{"sql": "SELECT 5", "reasoning": "x"}`, candidate: "SELECT 5", valid: true},
		{name: "没有SQL", raw: "Sorry, I cannot answer that.", candidate: "Sorry, I cannot answer that.", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.raw)
			assert.Equal(t, tt.candidate, got.Candidate)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestGenerate(t *testing.T) {
	p := prompt.Prompt{DomainID: "airlines", System: "sys", User: "Show me flights"}

	t.Run("成功", func(t *testing.T) {
		c := &scripted{replies: []interface{}{"```sql\nSELECT * FROM flights\n```"}}
		stmt, err := newGenerator(c).Generate(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM flights", stmt.Candidate)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("越界标记短路", func(t *testing.T) {
		c := &scripted{replies: []interface{}{"OUT_OF_SCOPE"}}
		stmt, err := newGenerator(c).Generate(context.Background(), p)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrOutOfScope))
		assert.True(t, stmt.OutOfScope)
		assert.Empty(t, stmt.Candidate)
	})

	t.Run("两次空响应只重试一次", func(t *testing.T) {
		c := &scripted{replies: []interface{}{"", "   "}}
		_, err := newGenerator(c).Generate(context.Background(), p)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrGenerationUnavailable))
		assert.Equal(t, 2, c.calls)
	})

	t.Run("仅有代码块标记视为空响应", func(t *testing.T) {
		c := &scripted{replies: []interface{}{"```\n```", "SELECT 1"}}
		stmt, err := newGenerator(c).Generate(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", stmt.Candidate)
		assert.Equal(t, 2, c.calls)
	})

	t.Run("传输失败后重试", func(t *testing.T) {
		c := &scripted{replies: []interface{}{fmt.Errorf("connection reset"), "SELECT 1"}}
		stmt, err := newGenerator(c).Generate(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", stmt.Candidate)
	})
}

func TestGenerateTemperature(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float32
	}{
		{"使用配置值", 0.25, 0.25},
		{"未配置时使用默认值", 0, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.CompletionRequest
			c := model.CompleterFunc(func(ctx context.Context, req model.CompletionRequest) (string, error) {
				got = req
				return "SELECT 1", nil
			})
			g := NewSQLGenerator(c, prefixDetector("OUT_OF_SCOPE"), &model.SingleModelRetryConfig{}, tt.in, 500)
			_, err := g.Generate(context.Background(), prompt.Prompt{DomainID: "airlines", System: "s", User: "u"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Temperature)
			assert.Equal(t, 500, got.MaxTokens)
		})
	}
}
