package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"

	"github.com/Malowking/sqlgo/core/common"
	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/core/errors"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/executor"
	"github.com/Malowking/sqlgo/nl2sql/generator"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/Malowking/sqlgo/nl2sql/schema"
	"github.com/Malowking/sqlgo/nl2sql/scope"
	"github.com/Malowking/sqlgo/nl2sql/visual"
)

// ContextResolver 把请求绑定到唯一的领域上下文
type ContextResolver interface {
	Resolve(ctx context.Context, sessionID, domainID string) (*schema.DomainContext, error)
}

// ScopeValidator 越界判定
type ScopeValidator interface {
	Check(ctx context.Context, question string, d *schema.DomainContext) (scope.Verdict, error)
	Inspect(raw string, d *schema.DomainContext) (scope.Verdict, error)
}

// StatementGenerator 调用生成服务并抽取候选语句
type StatementGenerator interface {
	Generate(ctx context.Context, p prompt.Prompt) (*generator.GeneratedStatement, error)
}

// StatementSanitizer 执行前的语句校验
type StatementSanitizer interface {
	SanitizeFor(candidate, dialect string, tables parser.TableChecker) (*parser.SanitizedStatement, error)
}

// StatementExecutor 在领域数据源上执行语句
type StatementExecutor interface {
	Execute(ctx context.Context, stmt *parser.SanitizedStatement, d *schema.DomainContext) (*executor.ResultSet, error)
}

// InsightGenerator 结果集洞察
type InsightGenerator interface {
	Generate(ctx context.Context, question string, rs *executor.ResultSet) string
}

// ChartSelector 图表建议
type ChartSelector interface {
	Suggest(ctx context.Context, question string, rs *executor.ResultSet) []visual.ChartSuggestion
}

// QueryRecorder 记录每次运行的终态，失败不影响响应
type QueryRecorder interface {
	Record(ctx context.Context, resp *Response) error
}

// Components 流水线依赖
type Components struct {
	Contexts  ContextResolver
	Builder   *prompt.Builder
	Scope     ScopeValidator
	Generator StatementGenerator
	Sanitizer StatementSanitizer
	Executor  StatementExecutor
	Insight   InsightGenerator // 可为 nil
	Charts    ChartSelector    // 可为 nil
	Recorder  QueryRecorder    // 可为 nil
	ScopeMode string           // fused | separate
}

// Pipeline 问题到结果的编排器，也是唯一把错误翻译成响应的地方
type Pipeline struct {
	c Components
}

// NewPipeline 创建流水线
func NewPipeline(c Components) *Pipeline {
	if c.ScopeMode == "" {
		c.ScopeMode = config.ScopeModeFused
	}
	return &Pipeline{c: c}
}

// Question 单次请求
type Question struct {
	Text      string `json:"question"`
	DomainID  string `json:"domain,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// run 单次运行的状态
type run struct {
	id     string
	start  time.Time
	state  State
	last   time.Time
	trace  []Transition
	domain *schema.DomainContext
}

func (r *run) transition(ctx context.Context, to State) {
	now := time.Now()
	if !r.state.CanTransition(to) {
		// 状态机实现错误，不应出现
		g.Log().Errorf(ctx, "[pipeline] run=%s illegal transition %s -> %s", r.id, r.state, to)
	}
	r.trace = append(r.trace, Transition{
		From:      r.state,
		To:        to,
		ElapsedMs: now.Sub(r.last).Milliseconds(),
	})
	g.Log().Debugf(ctx, "[pipeline] run=%s %s -> %s (%v)", r.id, r.state, to, now.Sub(r.last))
	r.state = to
	r.last = now
}

// Run 执行一次完整的流水线，总是返回终态响应
func (p *Pipeline) Run(ctx context.Context, q Question) *Response {
	now := time.Now()
	r := &run{id: uuid.New().String(), start: now, last: now, state: StateIdle}
	resp := p.execute(ctx, r, q)
	resp.RunID = r.id
	resp.Question = q.Text
	resp.Trace = r.trace
	resp.DurationMs = time.Since(r.start).Milliseconds()
	if r.domain != nil {
		resp.Domain = r.domain.ID
	} else {
		resp.Domain = q.DomainID
	}

	if resp.Failure != nil {
		g.Log().Infof(ctx, "[pipeline] run=%s domain=%s failed kind=%s in %dms", r.id, resp.Domain, resp.Failure.Kind, resp.DurationMs)
	} else {
		g.Log().Infof(ctx, "[pipeline] run=%s domain=%s done rows=%d in %dms", r.id, resp.Domain, resp.Success.Result.RowCount, resp.DurationMs)
	}

	if p.c.Recorder != nil {
		recorded := *resp
		common.SafeGo(context.WithoutCancel(ctx), "record query "+r.id, func() {
			if err := p.c.Recorder.Record(context.WithoutCancel(ctx), &recorded); err != nil {
				g.Log().Warningf(ctx, "[pipeline] run=%s failed to record query: %v", r.id, err)
			}
		})
	}
	return resp
}

func (p *Pipeline) execute(ctx context.Context, r *run, q Question) *Response {
	question := strings.TrimSpace(q.Text)
	if question == "" {
		return p.fail(ctx, r, errors.New(errors.ErrInvalidParameter, "question is required"))
	}

	d, err := p.c.Contexts.Resolve(ctx, q.SessionID, q.DomainID)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	r.domain = d
	g.Log().Infof(ctx, "[pipeline] run=%s domain=%s question=%q", r.id, d.ID, question)

	// 独立判定模式：生成之前单独判定一次
	if p.c.ScopeMode == config.ScopeModeSeparate {
		r.transition(ctx, StateScopeChecking)
		if _, err := p.c.Scope.Check(ctx, question, d); err != nil {
			return p.fail(ctx, r, err)
		}
	}

	r.transition(ctx, StateGenerating)
	stmt, err := p.c.Generator.Generate(ctx, p.c.Builder.Build(question, d))
	if err != nil {
		if stmt != nil && stmt.OutOfScope {
			// 融合模式下由生成结果中的标记给出越界判定
			if _, scopeErr := p.c.Scope.Inspect(stmt.Raw, d); scopeErr != nil {
				return p.fail(ctx, r, scopeErr)
			}
		}
		return p.fail(ctx, r, err)
	}

	r.transition(ctx, StateSanitizing)
	sanitized, err := p.c.Sanitizer.SanitizeFor(stmt.Candidate, d.Dialect, d)
	if err != nil {
		g.Log().Warningf(ctx, "[pipeline] run=%s rejected statement: %v", r.id, err)
		return p.fail(ctx, r, err)
	}
	g.Log().Debugf(ctx, "[pipeline] run=%s sanitized sql=%s", r.id, sanitized.SQL)

	r.transition(ctx, StateExecuting)
	rs, err := p.c.Executor.Execute(ctx, sanitized, d)
	if err != nil {
		return p.fail(ctx, r, err)
	}

	r.transition(ctx, StatePostProcessing)
	success := &Success{Statement: sanitized.SQL, Result: rs}
	success.Insight, success.Charts = p.postProcess(ctx, r, question, rs)

	r.transition(ctx, StateDone)
	return &Response{State: StateDone, Success: success}
}

// postProcess 洞察与图表建议只消费结果，任何异常都不影响成功响应
func (p *Pipeline) postProcess(ctx context.Context, r *run, question string, rs *executor.ResultSet) (insight string, charts []visual.ChartSuggestion) {
	insight = nl2sqlCommon.InsightUnavailable
	charts = []visual.ChartSuggestion{}

	func() {
		defer common.RecoverPanic(ctx, "insight "+r.id)
		if p.c.Insight != nil {
			insight = p.c.Insight.Generate(ctx, question, rs)
		} else if rs.RowCount == 0 {
			insight = nl2sqlCommon.InsightNoData
		}
	}()

	func() {
		defer common.RecoverPanic(ctx, "charts "+r.id)
		if p.c.Charts != nil {
			if cs := p.c.Charts.Suggest(ctx, question, rs); cs != nil {
				charts = cs
			}
		}
	}()
	return insight, charts
}

// fail 进入唯一的吸收态 Failed，并把错误翻译为失败响应
func (p *Pipeline) fail(ctx context.Context, r *run, err error) *Response {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		appErr = errors.Wrap(errors.ErrInternalError, err, "internal error")
	}
	from := r.state
	r.transition(ctx, StateFailed)
	if appErr.Cause != nil {
		g.Log().Warningf(ctx, "[pipeline] run=%s %s in state %s: %s: %v", r.id, appErr.Kind(), from, appErr.Message, appErr.Cause)
	} else {
		g.Log().Warningf(ctx, "[pipeline] run=%s %s in state %s: %s", r.id, appErr.Kind(), from, appErr.Message)
	}
	return &Response{
		State: StateFailed,
		Failure: &Failure{
			Kind:     appErr.Kind(),
			Code:     int(appErr.Code),
			Message:  appErr.Message,
			FailedIn: from,
		},
	}
}

// String 简短描述，用于 CLI 输出
func (r *Response) String() string {
	if r.Failure != nil {
		return fmt.Sprintf("%s: %s", r.Failure.Kind, r.Failure.Message)
	}
	return fmt.Sprintf("%d rows: %s", r.Success.Result.RowCount, r.Success.Statement)
}
