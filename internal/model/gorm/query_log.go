package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueryLog 流水线运行日志，每次运行一条
type QueryLog struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"` // 运行ID
	DomainID        string         `gorm:"size:64;not null;index" json:"domain_id"`
	UserQuestion    string         `gorm:"type:text;not null" json:"user_question"`
	FinalSQL        string         `gorm:"type:text" json:"final_sql"`             // 校验后实际执行的语句
	ExecutionStatus string         `gorm:"size:50;index" json:"execution_status"`  // 'success', 'failed', 'timeout'
	ErrorKind       string         `gorm:"size:50;index" json:"error_kind"`        // OutOfScope, UnsafeStatement ...
	ErrorMessage    string         `gorm:"type:text" json:"error_message"`
	ResultRows      int            `json:"result_rows"`
	ExecutionTimeMs int            `gorm:"index" json:"execution_time_ms"`         // 整个运行耗时，方便查询慢查询
	Trace           datatypes.JSON `json:"trace"`                                  // 状态迁移记录
	CreateTime      *time.Time     `gorm:"column:create_time;autoCreateTime;index" json:"create_time"`
}

// TableName specifies table name
func (QueryLog) TableName() string {
	return "sqlgo_query_logs"
}

// BeforeCreate GORM钩子：创建前自动生成UUID
func (q *QueryLog) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
