package v1

import (
	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/nl2sql/service"
)

// QueryReq 自然语言查询请求
type QueryReq struct {
	g.Meta    `path:"/v1/query" method:"post" tags:"query" summary:"自然语言查询"`
	Question  string `json:"question" v:"required#问题不能为空"`
	Domain    string `json:"domain"`     // 领域ID，为空时使用会话绑定
	SessionID string `json:"session_id"` // 会话ID
}

// QueryRes 查询响应，包含完整的状态轨迹
type QueryRes struct {
	*service.Response
}

// ExportReq 导出查询结果
type ExportReq struct {
	g.Meta    `path:"/v1/export" method:"post" tags:"query" summary:"执行查询并导出结果文件"`
	Question  string `json:"question" v:"required#问题不能为空"`
	Domain    string `json:"domain"`
	SessionID string `json:"session_id"`
	Format    string `json:"format" v:"in:csv,xlsx,json#格式只支持 csv、xlsx、json" d:"csv"`
	Filename  string `json:"filename"` // 不含扩展名
}

// ExportRes 文件直接写入响应体
type ExportRes struct {
	g.Meta `mime:"application/octet-stream"`
}

// ListQueriesReq 查询日志列表
type ListQueriesReq struct {
	g.Meta   `path:"/v1/queries" method:"get" tags:"query" summary:"获取查询日志列表"`
	Domain   string `json:"domain"`
	Status   string `json:"status" v:"in:success,failed,timeout#状态只支持 success、failed、timeout"`
	Page     int    `json:"page" v:"min:1#页码必须大于0" d:"1"`
	PageSize int    `json:"page_size" v:"between:1,100#每页数量必须在1-100之间" d:"20"`
}

// QueryLogItem 查询日志条目
type QueryLogItem struct {
	ID              string `json:"id"`
	Domain          string `json:"domain"`
	Question        string `json:"question"`
	FinalSQL        string `json:"final_sql"`
	Status          string `json:"status"`
	ErrorKind       string `json:"error_kind,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ResultRows      int    `json:"result_rows"`
	ExecutionTimeMs int    `json:"execution_time_ms"`
	Trace           string `json:"trace,omitempty"`
	CreateTime      string `json:"create_time"`
}

// ListQueriesRes 查询日志列表响应
type ListQueriesRes struct {
	List     []*QueryLogItem `json:"list"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// GetQueryReq 查询日志详情
type GetQueryReq struct {
	g.Meta `path:"/v1/queries/:id" method:"get" tags:"query" summary:"获取查询日志详情"`
	ID     string `json:"id" in:"path" v:"required#ID不能为空"`
}

// GetQueryRes 查询日志详情响应
type GetQueryRes struct {
	*QueryLogItem
}
