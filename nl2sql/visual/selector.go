package visual

import (
	"context"
	"fmt"
	"strings"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/model"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/executor"
)

// 图表类型
const (
	ChartBar       = "bar_chart"
	ChartLine      = "line_chart"
	ChartScatter   = "scatter_plot"
	ChartPie       = "pie_chart"
	ChartHistogram = "histogram"
	ChartBox       = "box_plot"
)

const suggestMaxTokens = 200

const systemPrompt = `You are a data visualization expert. Based on the data and query, suggest the most appropriate visualization types.
Return only the visualization types, one per line, such as: bar_chart, line_chart, pie_chart, scatter_plot, histogram, box_plot.`

// ChartSuggestion 图表建议描述，由展示层渲染
type ChartSuggestion struct {
	Type  string `json:"type"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Color string `json:"color,omitempty"`
	Title string `json:"title"`
}

// Selector 根据结果集列类型给出图表建议
type Selector struct {
	completer model.Completer
	retry     *model.SingleModelRetryConfig
	useLLM    bool
}

// NewSelector 创建图表选择器；useLLM 为 true 时先让模型给出类型顺序
func NewSelector(completer model.Completer, retry *model.SingleModelRetryConfig, useLLM bool) *Selector {
	return &Selector{completer: completer, retry: retry, useLLM: useLLM && completer != nil}
}

// columnGroups 结果集列按数值 / 分类 / 时间归类
type columnGroups struct {
	numeric     []string
	categorical []string
	temporal    []string
}

func groupColumns(rs *executor.ResultSet) columnGroups {
	var cg columnGroups
	for _, c := range rs.Columns {
		switch c.Kind {
		case nl2sqlCommon.SemanticTypeNumber:
			cg.numeric = append(cg.numeric, c.Name)
		case nl2sqlCommon.SemanticTypeTime:
			cg.temporal = append(cg.temporal, c.Name)
			cg.categorical = append(cg.categorical, c.Name)
		default:
			cg.categorical = append(cg.categorical, c.Name)
		}
	}
	return cg
}

// Suggest 返回图表建议；空结果返回空列表
func (s *Selector) Suggest(ctx context.Context, question string, rs *executor.ResultSet) []ChartSuggestion {
	if rs == nil || rs.RowCount == 0 {
		return []ChartSuggestion{}
	}
	cg := groupColumns(rs)

	kinds := heuristicKinds(cg, rs.RowCount)
	if s.useLLM {
		if llmKinds := s.askModel(ctx, question, rs); len(llmKinds) > 0 {
			kinds = llmKinds
		}
	}

	out := make([]ChartSuggestion, 0, len(kinds))
	seen := make(map[string]bool)
	for _, k := range kinds {
		if cs, ok := build(k, cg); ok && !seen[cs.Type] {
			seen[cs.Type] = true
			out = append(out, cs)
		}
	}

	if len(out) == 0 {
		if cs, ok := build(ChartHistogram, cg); ok {
			out = append(out, cs)
		}
		if cs, ok := build(ChartBar, cg); ok {
			out = append(out, cs)
		}
	}
	return out
}

// heuristicKinds 按列的组合给出默认的类型顺序
func heuristicKinds(cg columnGroups, rows int) []string {
	var kinds []string
	if len(cg.temporal) > 0 && len(cg.numeric) > 0 {
		kinds = append(kinds, ChartLine)
	}
	if len(cg.categorical) > 0 && len(cg.numeric) > 0 {
		kinds = append(kinds, ChartBar)
		if rows > 1 && rows <= 10 {
			kinds = append(kinds, ChartPie)
		} else if rows > 10 {
			kinds = append(kinds, ChartBox)
		}
	}
	if len(cg.numeric) >= 2 {
		kinds = append(kinds, ChartScatter)
	}
	if len(cg.numeric) > 0 && rows > 1 {
		kinds = append(kinds, ChartHistogram)
	}
	if len(cg.numeric) == 0 && len(cg.categorical) > 0 && rows > 1 {
		kinds = append(kinds, ChartPie)
	}
	return kinds
}

// build 把类型名称转成具体的列映射，列不满足要求时返回 false
func build(kind string, cg columnGroups) (ChartSuggestion, bool) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch {
	case strings.Contains(k, "bar") && len(cg.categorical) > 0 && len(cg.numeric) > 0:
		x, y := cg.categorical[0], cg.numeric[0]
		return ChartSuggestion{Type: ChartBar, X: x, Y: y, Title: fmt.Sprintf("%s by %s", y, x)}, true
	case strings.Contains(k, "line") && len(cg.temporal) > 0 && len(cg.numeric) > 0:
		x, y := cg.temporal[0], cg.numeric[0]
		return ChartSuggestion{Type: ChartLine, X: x, Y: y, Title: fmt.Sprintf("%s over %s", y, x)}, true
	case strings.Contains(k, "line") && len(cg.numeric) >= 2:
		x, y := cg.numeric[0], cg.numeric[1]
		return ChartSuggestion{Type: ChartLine, X: x, Y: y, Title: fmt.Sprintf("%s vs %s", y, x)}, true
	case strings.Contains(k, "scatter") && len(cg.numeric) >= 2:
		cs := ChartSuggestion{Type: ChartScatter, X: cg.numeric[0], Y: cg.numeric[1], Title: fmt.Sprintf("%s vs %s", cg.numeric[1], cg.numeric[0])}
		if len(cg.categorical) > 0 {
			cs.Color = cg.categorical[0]
		}
		return cs, true
	case strings.Contains(k, "pie") && len(cg.categorical) > 0:
		cs := ChartSuggestion{Type: ChartPie, X: cg.categorical[0], Title: fmt.Sprintf("Distribution of %s", cg.categorical[0])}
		if len(cg.numeric) > 0 {
			cs.Y = cg.numeric[0]
		}
		return cs, true
	case strings.Contains(k, "histogram") && len(cg.numeric) > 0:
		return ChartSuggestion{Type: ChartHistogram, X: cg.numeric[0], Title: fmt.Sprintf("Distribution of %s", cg.numeric[0])}, true
	case strings.Contains(k, "box") && len(cg.categorical) > 0 && len(cg.numeric) > 0:
		x, y := cg.categorical[0], cg.numeric[0]
		return ChartSuggestion{Type: ChartBox, X: x, Y: y, Title: fmt.Sprintf("%s by %s", y, x)}, true
	}
	return ChartSuggestion{}, false
}

// askModel 让模型给出 2-3 个图表类型，失败返回 nil
func (s *Selector) askModel(ctx context.Context, question string, rs *executor.ResultSet) []string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original Query: %s\n\nData Summary:\n", question)
	fmt.Fprintf(&sb, "- Number of rows: %d\n", rs.RowCount)
	fmt.Fprintf(&sb, "- Number of columns: %d\n", len(rs.Columns))
	sb.WriteString("- Columns and kinds: ")
	for i, c := range rs.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s (%s)", c.Name, c.Kind)
	}
	sb.WriteString("\n\nSuggest 2-3 most appropriate visualization types for this data.")

	text, err := model.CompleteWithRetry(ctx, s.completer, s.retry, model.CompletionRequest{
		System:      systemPrompt,
		User:        sb.String(),
		Temperature: nl2sqlCommon.TemperatureVisual,
		MaxTokens:   suggestMaxTokens,
	})
	if err != nil {
		g.Log().Warningf(ctx, "Visualization suggestion failed, using heuristics: %v", err)
		return nil
	}

	var kinds []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "-*0123456789. ")
		if line != "" {
			kinds = append(kinds, line)
		}
	}
	return kinds
}
