package insight

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/model"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/executor"
)

const (
	sampleRows       = 5
	insightMaxTokens = 1000
)

const systemPrompt = `You are a data analyst expert. Analyze the provided data and generate meaningful insights.
Focus on patterns, trends, and actionable insights. Be concise but informative.`

// Generator 基于结果集生成叙述性洞察，失败时退回确定性摘要，永不报错
type Generator struct {
	completer model.Completer
	retry     *model.SingleModelRetryConfig
	enabled   bool
}

// NewGenerator 创建洞察生成器；completer 为 nil 或 enabled=false 时只输出确定性摘要
func NewGenerator(completer model.Completer, retry *model.SingleModelRetryConfig, enabled bool) *Generator {
	return &Generator{completer: completer, retry: retry, enabled: enabled && completer != nil}
}

// Generate 生成洞察文本
func (ig *Generator) Generate(ctx context.Context, question string, rs *executor.ResultSet) string {
	if rs == nil || rs.RowCount == 0 {
		return nl2sqlCommon.InsightNoData
	}
	if !ig.enabled {
		return Summarize(rs)
	}

	text, err := model.CompleteWithRetry(ctx, ig.completer, ig.retry, model.CompletionRequest{
		System:      systemPrompt,
		User:        buildUserPrompt(question, rs),
		Temperature: nl2sqlCommon.TemperatureInsight,
		MaxTokens:   insightMaxTokens,
	})
	if err != nil {
		g.Log().Warningf(ctx, "Insight generation failed, using summary: %v", err)
		return Summarize(rs)
	}
	if text = strings.TrimSpace(text); text == "" {
		return Summarize(rs)
	}
	return text
}

func buildUserPrompt(question string, rs *executor.ResultSet) string {
	n := rs.RowCount
	if n > sampleRows {
		n = sampleRows
	}
	sample := make([]map[string]interface{}, 0, n)
	for _, row := range rs.Rows[:n] {
		m := make(map[string]interface{}, len(rs.Columns))
		for i, c := range rs.Columns {
			if i < len(row) {
				m[c.Name] = row[i]
			}
		}
		sample = append(sample, m)
	}
	sampleJSON, err := sonic.MarshalString(sample)
	if err != nil {
		sampleJSON = "[]"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Original Query: %s\n\n", question)
	sb.WriteString("Data Summary:\n")
	fmt.Fprintf(&sb, "- Number of rows: %d\n", rs.RowCount)
	fmt.Fprintf(&sb, "- Number of columns: %d\n", len(rs.Columns))
	fmt.Fprintf(&sb, "- Columns: %s\n", strings.Join(rs.ColumnNames(), ", "))
	fmt.Fprintf(&sb, "- First rows: %s\n\n", sampleJSON)
	sb.WriteString(`Please provide:
1. A brief summary of what the data shows
2. Key insights and patterns
3. Any notable trends or outliers
4. Recommendations based on the data

Keep the response concise and focused on business value.`)
	return sb.String()
}

// Summarize 确定性摘要：行数与每个数值列的 min/avg/max
func Summarize(rs *executor.ResultSet) string {
	if rs == nil || rs.RowCount == 0 {
		return nl2sqlCommon.InsightNoData
	}

	var sb strings.Builder
	rowWord := "rows"
	if rs.RowCount == 1 {
		rowWord = "row"
	}
	fmt.Fprintf(&sb, "The query returned %d %s", rs.RowCount, rowWord)
	if rs.Truncated {
		sb.WriteString(" (limited)")
	}
	sb.WriteString(".")

	for i, c := range rs.Columns {
		if c.Kind != nl2sqlCommon.SemanticTypeNumber {
			continue
		}
		lo, hi, sum, count := math.Inf(1), math.Inf(-1), 0.0, 0
		for _, row := range rs.Rows {
			if i >= len(row) {
				continue
			}
			f, ok := executor.ToFloat(row[i])
			if !ok {
				continue
			}
			lo, hi = math.Min(lo, f), math.Max(hi, f)
			sum += f
			count++
		}
		if count == 0 {
			continue
		}
		if count == 1 {
			fmt.Fprintf(&sb, " %s: %s.", c.Name, formatNumber(sum))
			continue
		}
		fmt.Fprintf(&sb, " %s ranges from %s to %s (average %s).",
			c.Name, formatNumber(lo), formatNumber(hi), formatNumber(sum/float64(count)))
	}
	return sb.String()
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}
