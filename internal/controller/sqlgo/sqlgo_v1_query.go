package sqlgo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gogf/gf/v2/frame/g"

	v1 "github.com/Malowking/sqlgo/api/sqlgo/v1"
	"github.com/Malowking/sqlgo/core/common"
	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/core/file_export"
	"github.com/Malowking/sqlgo/internal/dao"
	gormModel "github.com/Malowking/sqlgo/internal/model/gorm"
	"github.com/Malowking/sqlgo/internal/service"
	nl2sqlService "github.com/Malowking/sqlgo/nl2sql/service"
)

// components 获取共享组件
func components() (*service.Components, error) {
	c := service.Get()
	if c == nil {
		return nil, errors.New(errors.ErrInternalError, "pipeline not initialized")
	}
	return c, nil
}

// checkSessionID 会话ID会拼进缓存 key，非空时必须合法
func checkSessionID(id string) error {
	if id != "" && !common.ValidateSessionID(id) {
		return errors.New(errors.ErrInvalidParameter, "invalid session_id")
	}
	return nil
}

// failureError 将失败结果还原为业务错误，交给中间件映射 HTTP 状态
func failureError(f *nl2sqlService.Failure) error {
	return errors.New(errors.ErrCode(f.Code), f.Message)
}

// Query 自然语言查询
func (c *ControllerV1) Query(ctx context.Context, req *v1.QueryReq) (res *v1.QueryRes, err error) {
	g.Log().Infof(ctx, "Query request - Domain: %s, Session: %s, Question: %s", req.Domain, req.SessionID, req.Question)

	if err = checkSessionID(req.SessionID); err != nil {
		return nil, err
	}
	comps, err := components()
	if err != nil {
		return nil, err
	}
	resp := comps.Pipeline.Run(ctx, nl2sqlService.Question{
		Text:      req.Question,
		DomainID:  req.Domain,
		SessionID: req.SessionID,
	})
	res = &v1.QueryRes{Response: resp}
	if resp.Failure != nil {
		return res, failureError(resp.Failure)
	}
	return res, nil
}

// Export 执行查询并以文件形式返回结果
func (c *ControllerV1) Export(ctx context.Context, req *v1.ExportReq) (res *v1.ExportRes, err error) {
	g.Log().Infof(ctx, "Export request - Domain: %s, Format: %s, Question: %s", req.Domain, req.Format, req.Question)

	if err = checkSessionID(req.SessionID); err != nil {
		return nil, err
	}
	comps, err := components()
	if err != nil {
		return nil, err
	}
	resp := comps.Pipeline.Run(ctx, nl2sqlService.Question{
		Text:      req.Question,
		DomainID:  req.Domain,
		SessionID: req.SessionID,
	})
	if resp.Failure != nil {
		return nil, failureError(resp.Failure)
	}

	rs := resp.Success.Result
	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("%s_%s", resp.Domain, time.Now().Format("20060102_150405"))
	}
	result, err := comps.Exporter.Export(ctx, &file_export.ExportRequest{
		Format:   file_export.ExportFormat(req.Format),
		Filename: filename,
		Title:    req.Question,
		Columns:  rs.ColumnNames(),
		Rows:     rs.Rows,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, err, "failed to export query result")
	}

	r := g.RequestFromCtx(ctx)
	r.Response.Header().Set("Content-Type", result.ContentType)
	r.Response.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(result.Filename)))
	r.Response.Header().Set("X-Run-Id", resp.RunID)
	r.Response.Write(result.Content)
	return nil, nil
}

// ListQueries 查询日志列表
func (c *ControllerV1) ListQueries(ctx context.Context, req *v1.ListQueriesReq) (res *v1.ListQueriesRes, err error) {
	if !dao.Enabled() {
		return nil, errors.New(errors.ErrNotFound, "query log is not enabled")
	}
	logs, total, err := dao.QueryLog.List(ctx, req.Domain, req.Status, req.Page, req.PageSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalError, err, "failed to list query logs")
	}

	res = &v1.ListQueriesRes{
		List:     make([]*v1.QueryLogItem, 0, len(logs)),
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	for _, l := range logs {
		item := toQueryLogItem(l)
		item.Trace = ""
		res.List = append(res.List, item)
	}
	return res, nil
}

// GetQuery 查询日志详情
func (c *ControllerV1) GetQuery(ctx context.Context, req *v1.GetQueryReq) (res *v1.GetQueryRes, err error) {
	if !common.ValidateUUID(req.ID) {
		return nil, errors.New(errors.ErrInvalidParameter, "invalid query id")
	}
	if !dao.Enabled() {
		return nil, errors.New(errors.ErrNotFound, "query log is not enabled")
	}
	l, err := dao.QueryLog.GetByID(ctx, req.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNotFound, err, fmt.Sprintf("query %s not found", req.ID))
	}
	return &v1.GetQueryRes{QueryLogItem: toQueryLogItem(l)}, nil
}

func toQueryLogItem(l *gormModel.QueryLog) *v1.QueryLogItem {
	item := &v1.QueryLogItem{
		ID:              l.ID,
		Domain:          l.DomainID,
		Question:        l.UserQuestion,
		FinalSQL:        l.FinalSQL,
		Status:          l.ExecutionStatus,
		ErrorKind:       l.ErrorKind,
		ErrorMessage:    l.ErrorMessage,
		ResultRows:      l.ResultRows,
		ExecutionTimeMs: l.ExecutionTimeMs,
		Trace:           string(l.Trace),
	}
	if l.CreateTime != nil {
		item.CreateTime = l.CreateTime.Format(time.DateTime)
	}
	return item
}
