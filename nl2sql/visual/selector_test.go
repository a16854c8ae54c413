package visual

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/sqlgo/core/model"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/executor"
)

var fastRetry = &model.SingleModelRetryConfig{MaxRetries: 1, RetryDelay: time.Millisecond, CallTimeout: time.Second}

func resultOf(rows int, cols ...executor.ResultColumn) *executor.ResultSet {
	rs := &executor.ResultSet{Columns: cols, RowCount: rows}
	for i := 0; i < rows; i++ {
		rs.Rows = append(rs.Rows, make([]interface{}, len(cols)))
	}
	return rs
}

func types(cs []ChartSuggestion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}

func TestSelector_Heuristics(t *testing.T) {
	sel := NewSelector(nil, fastRetry, false)
	ctx := context.Background()

	tests := []struct {
		name string
		rs   *executor.ResultSet
		want []string
	}{
		{
			name: "空结果",
			rs:   &executor.ResultSet{},
			want: []string{},
		},
		{
			name: "分类加数值少量行",
			rs: resultOf(5,
				executor.ResultColumn{Name: "airline_name", Kind: "text"},
				executor.ResultColumn{Name: "flights", Kind: "number"}),
			want: []string{ChartBar, ChartPie, ChartHistogram},
		},
		{
			name: "分类加数值大量行",
			rs: resultOf(40,
				executor.ResultColumn{Name: "brand", Kind: "text"},
				executor.ResultColumn{Name: "price", Kind: "number"}),
			want: []string{ChartBar, ChartBox, ChartHistogram},
		},
		{
			name: "时间序列",
			rs: resultOf(12,
				executor.ResultColumn{Name: "departure_date", Kind: "time"},
				executor.ResultColumn{Name: "avg_price", Kind: "number"}),
			want: []string{ChartLine, ChartBar, ChartBox, ChartHistogram},
		},
		{
			name: "两个数值列",
			rs: resultOf(30,
				executor.ResultColumn{Name: "mileage", Kind: "number"},
				executor.ResultColumn{Name: "price", Kind: "number"}),
			want: []string{ChartScatter, ChartHistogram},
		},
		{
			name: "单行单值退回默认",
			rs:   resultOf(1, executor.ResultColumn{Name: "total", Kind: "number"}),
			want: []string{ChartHistogram},
		},
		{
			name: "只有分类列",
			rs:   resultOf(4, executor.ResultColumn{Name: "city_name", Kind: "text"}),
			want: []string{ChartPie},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types(sel.Suggest(ctx, "q", tt.rs)))
		})
	}
}

func TestSelector_ColumnMapping(t *testing.T) {
	sel := NewSelector(nil, fastRetry, false)
	rs := resultOf(3,
		executor.ResultColumn{Name: "airline_name", Kind: "text"},
		executor.ResultColumn{Name: "avg_price", Kind: "number"})

	cs := sel.Suggest(context.Background(), "q", rs)
	require.NotEmpty(t, cs)
	assert.Equal(t, ChartSuggestion{Type: ChartBar, X: "airline_name", Y: "avg_price", Title: "avg_price by airline_name"}, cs[0])
}

func TestSelector_LLMOrdering(t *testing.T) {
	rs := resultOf(20,
		executor.ResultColumn{Name: "brand_name", Kind: "text"},
		executor.ResultColumn{Name: "price", Kind: "number"},
		executor.ResultColumn{Name: "mileage", Kind: "number"})
	ctx := context.Background()

	t.Run("按模型顺序并忽略无法构建的类型", func(t *testing.T) {
		var got model.CompletionRequest
		c := model.CompleterFunc(func(_ context.Context, req model.CompletionRequest) (string, error) {
			got = req
			return "1. scatter_plot\n- heatmap\nbox_plot\n", nil
		})
		sel := NewSelector(c, fastRetry, true)
		assert.Equal(t, []string{ChartScatter, ChartBox}, types(sel.Suggest(ctx, "price vs mileage", rs)))
		assert.Equal(t, nl2sqlCommon.TemperatureVisual, got.Temperature)
		assert.Contains(t, got.User, "price (number)")
	})

	t.Run("模型失败使用启发式", func(t *testing.T) {
		c := model.CompleterFunc(func(context.Context, model.CompletionRequest) (string, error) {
			return "", stdErrors.New("unavailable")
		})
		sel := NewSelector(c, fastRetry, true)
		assert.Equal(t, []string{ChartBar, ChartBox, ChartScatter, ChartHistogram}, types(sel.Suggest(ctx, "q", rs)))
	})
}
