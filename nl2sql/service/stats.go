package service

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/errors"
)

// QuickStatResult 单个概览指标
type QuickStatResult struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
	Error string      `json:"error,omitempty"`
}

// QuickStats 运行领域的概览查询，语句同样经过校验和行数限制
// 单个指标失败只记录在该指标上
func (p *Pipeline) QuickStats(ctx context.Context, domainID string) ([]QuickStatResult, error) {
	d, err := p.c.Contexts.Resolve(ctx, "", domainID)
	if err != nil {
		return nil, err
	}

	out := make([]QuickStatResult, 0, len(d.QuickStats))
	for _, qs := range d.QuickStats {
		item := QuickStatResult{Label: qs.Label}

		stmt, err := p.c.Sanitizer.SanitizeFor(qs.SQL, d.Dialect, d)
		if err != nil {
			g.Log().Errorf(ctx, "[stats] domain=%s quick stat %q rejected: %v", d.ID, qs.Label, err)
			item.Error = errors.ErrUnsafeStatement.Kind()
			out = append(out, item)
			continue
		}

		rs, err := p.c.Executor.Execute(ctx, stmt, d)
		if err != nil {
			kind := errors.ErrExecution.Kind()
			if appErr := errors.GetAppError(err); appErr != nil {
				kind = appErr.Kind()
			}
			item.Error = kind
			out = append(out, item)
			continue
		}
		if rs.RowCount > 0 && len(rs.Rows[0]) > 0 {
			item.Value = rs.Rows[0][0]
		}
		out = append(out, item)
	}
	return out, nil
}
