package executor

import (
	"context"
	stdErrors "errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Malowking/sqlgo/core/common"
	"github.com/Malowking/sqlgo/core/errors"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/datasource"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

// TimeoutMessage 执行超时的提示
const TimeoutMessage = "The query took too long to run. Try narrowing the question, for example by adding a filter or a time range."

// pgQueryCanceled statement_timeout / 用户取消
const pgQueryCanceled = "57014"

// SourceResolver 按领域查找数据源
type SourceResolver interface {
	Get(domainID string) (datasource.DataSource, bool)
}

// ResultColumn 结果列
type ResultColumn struct {
	Name         string `json:"name"`
	DatabaseType string `json:"database_type,omitempty"`
	Kind         string `json:"kind"` // number | text | time | boolean
}

// ResultSet 有界结果集
type ResultSet struct {
	Columns   []ResultColumn             `json:"columns"`
	Rows      [][]interface{}            `json:"rows"`
	RowCount  int                        `json:"row_count"`
	Truncated bool                       `json:"truncated"`
	Statement *parser.SanitizedStatement `json:"statement"`
}

// ColumnIndex 按列名查找下标
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames 列名列表
func (r *ResultSet) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// QueryExecutor 在领域绑定的数据源上执行已校验语句
type QueryExecutor struct {
	sources SourceResolver
	timeout time.Duration

	mu      sync.RWMutex
	secrets map[string][]string
}

// NewQueryExecutor 创建执行器，timeout 为单条语句的最长执行时间
func NewQueryExecutor(sources SourceResolver, timeout time.Duration) *QueryExecutor {
	return &QueryExecutor{
		sources: sources,
		timeout: timeout,
		secrets: make(map[string][]string),
	}
}

// SetSecrets 登记领域连接串中的敏感值，驱动错误返回前会抹除
func (e *QueryExecutor) SetSecrets(domainID string, secrets ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.secrets[domainID] = append(e.secrets[domainID], secrets...)
}

// Execute 执行语句，最多读取 stmt.RowCap 行
func (e *QueryExecutor) Execute(ctx context.Context, stmt *parser.SanitizedStatement, d *schema.DomainContext) (*ResultSet, error) {
	if stmt == nil || stmt.SQL == "" {
		return nil, errors.New(errors.ErrExecution, "nothing to execute")
	}
	ds, ok := e.sources.Get(d.ID)
	if !ok {
		return nil, errors.Newf(errors.ErrExecution, "no data store is configured for domain %s", d.ID)
	}

	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := ds.ExecuteQuery(execCtx, stmt.SQL, stmt.RowCap)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(execCtx, err) {
			g.Log().Warningf(ctx, "Execution timed out after %v on domain %s", elapsed, d.ID)
			return nil, errors.Wrap(errors.ErrExecutionTimeout, err, TimeoutMessage)
		}
		msg := common.RedactSecrets(err.Error(), e.secretsFor(d.ID)...)
		g.Log().Warningf(ctx, "Execution failed on domain %s: %s", d.ID, msg)
		return nil, &errors.AppError{Code: errors.ErrExecution, Message: msg}
	}

	g.Log().Debugf(ctx, "Executed on domain %s in %v, rows=%d truncated=%v", d.ID, elapsed, len(res.Rows), res.Truncated)
	return newResultSet(res, stmt), nil
}

func (e *QueryExecutor) secretsFor(domainID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.secrets[domainID]
}

// isTimeout 区分超时与其它执行错误
func isTimeout(ctx context.Context, err error) bool {
	if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return true
	}
	return false
}

func newResultSet(res *datasource.QueryResult, stmt *parser.SanitizedStatement) *ResultSet {
	rs := &ResultSet{
		Columns:   make([]ResultColumn, len(res.Columns)),
		Rows:      res.Rows,
		RowCount:  len(res.Rows),
		Truncated: res.Truncated,
		Statement: stmt,
	}
	if rs.Rows == nil {
		rs.Rows = [][]interface{}{}
	}
	for i, c := range res.Columns {
		rs.Columns[i] = ResultColumn{
			Name:         c.Name,
			DatabaseType: c.DatabaseType,
			Kind:         columnKind(c.DatabaseType, rs.Rows, i),
		}
	}
	return rs
}

// columnKind 优先按数据库类型名判断，类型名缺失（如 sqlite 表达式列）时看首个非空值
func columnKind(dbType string, rows [][]interface{}, idx int) string {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
	case strings.Contains(t, "BOOL"):
		return nl2sqlCommon.SemanticTypeBoolean
	case strings.Contains(t, "INT"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"),
		strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"), strings.Contains(t, "REAL"),
		strings.Contains(t, "MONEY"):
		return nl2sqlCommon.SemanticTypeNumber
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return nl2sqlCommon.SemanticTypeTime
	default:
		return nl2sqlCommon.SemanticTypeText
	}

	for _, row := range rows {
		if idx >= len(row) || row[idx] == nil {
			continue
		}
		switch row[idx].(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return nl2sqlCommon.SemanticTypeNumber
		case bool:
			return nl2sqlCommon.SemanticTypeBoolean
		case time.Time:
			return nl2sqlCommon.SemanticTypeTime
		default:
			return nl2sqlCommon.SemanticTypeText
		}
	}
	return nl2sqlCommon.SemanticTypeText
}

// ToFloat 数值单元格转 float64
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
