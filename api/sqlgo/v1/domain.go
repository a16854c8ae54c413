package v1

import (
	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/nl2sql/service"
)

// DomainSummary 领域概要
type DomainSummary struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	Description     string   `json:"description"`
	Dialect         string   `json:"dialect"`
	Tables          []string `json:"tables"`
	SampleQuestions []string `json:"sample_questions"`
}

// ListDomainsReq 列出全部领域
type ListDomainsReq struct {
	g.Meta `path:"/v1/domains" method:"get" tags:"domain" summary:"获取领域列表"`
}

// ListDomainsRes 领域列表
type ListDomainsRes struct {
	List []*DomainSummary `json:"list"`
}

// GetDomainReq 领域详情
type GetDomainReq struct {
	g.Meta `path:"/v1/domains/:domain" method:"get" tags:"domain" summary:"获取领域详情"`
	Domain string `json:"domain" in:"path" v:"required#领域ID不能为空"`
}

// GetDomainRes 领域详情，包含提示词中使用的表结构描述
type GetDomainRes struct {
	*DomainSummary
	Topics    []string `json:"topics"`
	OffTopics []string `json:"off_topics"`
	Schema    string   `json:"schema"`
}

// DomainStatsReq 领域快速统计
type DomainStatsReq struct {
	g.Meta `path:"/v1/domains/:domain/stats" method:"get" tags:"domain" summary:"获取领域快速统计"`
	Domain string `json:"domain" in:"path" v:"required#领域ID不能为空"`
}

// DomainStatsRes 快速统计结果
type DomainStatsRes struct {
	Domain string                    `json:"domain"`
	Stats  []service.QuickStatResult `json:"stats"`
}

// BindSessionReq 为会话绑定领域
type BindSessionReq struct {
	g.Meta    `path:"/v1/session/domain" method:"post" tags:"domain" summary:"为会话选择领域"`
	SessionID string `json:"session_id"` // 为空时生成新会话
	Domain    string `json:"domain" v:"required#领域ID不能为空"`
}

// BindSessionRes 绑定结果
type BindSessionRes struct {
	SessionID string `json:"session_id"`
	Domain    string `json:"domain"`
}
