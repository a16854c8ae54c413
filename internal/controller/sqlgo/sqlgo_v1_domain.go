package sqlgo

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"

	v1 "github.com/Malowking/sqlgo/api/sqlgo/v1"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

func toDomainSummary(d *schema.DomainContext) *v1.DomainSummary {
	return &v1.DomainSummary{
		ID:              d.ID,
		DisplayName:     d.DisplayName,
		Description:     d.Description,
		Dialect:         d.Dialect,
		Tables:          d.TableNames(),
		SampleQuestions: d.SampleQuestions,
	}
}

// ListDomains 领域列表
func (c *ControllerV1) ListDomains(ctx context.Context, req *v1.ListDomainsReq) (res *v1.ListDomainsRes, err error) {
	comps, err := components()
	if err != nil {
		return nil, err
	}
	domains := comps.Selector.Registry().List()
	res = &v1.ListDomainsRes{List: make([]*v1.DomainSummary, 0, len(domains))}
	for _, d := range domains {
		res.List = append(res.List, toDomainSummary(d))
	}
	return res, nil
}

// GetDomain 领域详情
func (c *ControllerV1) GetDomain(ctx context.Context, req *v1.GetDomainReq) (res *v1.GetDomainRes, err error) {
	comps, err := components()
	if err != nil {
		return nil, err
	}
	d, err := comps.Selector.Select(req.Domain)
	if err != nil {
		return nil, err
	}
	return &v1.GetDomainRes{
		DomainSummary: toDomainSummary(d),
		Topics:        d.Scope.Topics,
		OffTopics:     d.Scope.OffTopics,
		Schema:        d.SchemaText(),
	}, nil
}

// DomainStats 执行领域预置的快速统计
func (c *ControllerV1) DomainStats(ctx context.Context, req *v1.DomainStatsReq) (res *v1.DomainStatsRes, err error) {
	comps, err := components()
	if err != nil {
		return nil, err
	}
	stats, err := comps.Pipeline.QuickStats(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	return &v1.DomainStatsRes{Domain: req.Domain, Stats: stats}, nil
}

// BindSession 为会话选择领域，后续查询可省略 domain
func (c *ControllerV1) BindSession(ctx context.Context, req *v1.BindSessionReq) (res *v1.BindSessionRes, err error) {
	if err = checkSessionID(req.SessionID); err != nil {
		return nil, err
	}
	comps, err := components()
	if err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	d, err := comps.Selector.Bind(ctx, sessionID, req.Domain)
	if err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "Session %s bound to domain %s", sessionID, d.ID)
	return &v1.BindSessionRes{SessionID: sessionID, Domain: d.ID}, nil
}
