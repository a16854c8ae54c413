package dao

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/datatypes"

	gormModel "github.com/Malowking/sqlgo/internal/model/gorm"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/service"
)

// QueryLogDAO 查询日志数据访问对象
type QueryLogDAO struct{}

var QueryLog = &QueryLogDAO{}

// Create 创建查询日志
func (d *QueryLogDAO) Create(ctx context.Context, log *gormModel.QueryLog) error {
	if err := GetDB().WithContext(ctx).Create(log).Error; err != nil {
		g.Log().Errorf(ctx, "Failed to create query log: %v", err)
		return err
	}
	return nil
}

// GetByID 根据运行ID查询
func (d *QueryLogDAO) GetByID(ctx context.Context, id string) (*gormModel.QueryLog, error) {
	var log gormModel.QueryLog
	if err := GetDB().WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// List 分页查询，domainID 为空时不过滤
func (d *QueryLogDAO) List(ctx context.Context, domainID, status string, page, pageSize int) ([]*gormModel.QueryLog, int64, error) {
	var logs []*gormModel.QueryLog
	var total int64

	query := GetDB().WithContext(ctx).Model(&gormModel.QueryLog{})
	if domainID != "" {
		query = query.Where("domain_id = ?", domainID)
	}
	if status != "" {
		query = query.Where("execution_status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		g.Log().Errorf(ctx, "Failed to count query logs: %v", err)
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("create_time DESC").Find(&logs).Error; err != nil {
		g.Log().Errorf(ctx, "Failed to list query logs: %v", err)
		return nil, 0, err
	}
	return logs, total, nil
}

// Record 实现 service.QueryRecorder
func (d *QueryLogDAO) Record(ctx context.Context, resp *service.Response) error {
	return d.Create(ctx, NewQueryLog(resp))
}

// NewQueryLog 把流水线响应转换为日志记录
func NewQueryLog(resp *service.Response) *gormModel.QueryLog {
	log := &gormModel.QueryLog{
		ID:              resp.RunID,
		DomainID:        resp.Domain,
		UserQuestion:    resp.Question,
		ExecutionTimeMs: int(resp.DurationMs),
	}
	if trace, err := sonic.Marshal(resp.Trace); err == nil {
		log.Trace = datatypes.JSON(trace)
	}

	switch {
	case resp.Success != nil:
		log.ExecutionStatus = nl2sqlCommon.ExecutionStatusSuccess
		log.FinalSQL = resp.Success.Statement
		if resp.Success.Result != nil {
			log.ResultRows = resp.Success.Result.RowCount
		}
	case resp.Failure != nil:
		log.ExecutionStatus = nl2sqlCommon.ExecutionStatusFailed
		if resp.Failure.Kind == "ExecutionTimeout" {
			log.ExecutionStatus = nl2sqlCommon.ExecutionStatusTimeout
		}
		log.ErrorKind = resp.Failure.Kind
		log.ErrorMessage = resp.Failure.Message
	}
	return log
}
