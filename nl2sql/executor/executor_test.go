package executor

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/nl2sql/datasource"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

// blockingSource 一直阻塞到 ctx 结束
type blockingSource struct {
	datasource.DataSource
}

func (blockingSource) ExecuteQuery(ctx context.Context, _ string, _ int) (*datasource.QueryResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingSource 返回带凭据的驱动错误
type failingSource struct {
	datasource.DataSource
}

func (failingSource) ExecuteQuery(context.Context, string, int) (*datasource.QueryResult, error) {
	return nil, stdErrors.New(`dial postgres://reader:hunter22@db:5432/airlines: column "fare" does not exist`)
}

func sqliteManager(t *testing.T) *datasource.Manager {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE flights (flight_id INTEGER PRIMARY KEY, price REAL, departure_date DATE)`,
		`INSERT INTO flights VALUES (1, 4500.5, '2024-01-10'), (2, 3900, '2024-01-11'), (3, 5100, '2024-01-12')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	m := datasource.NewManager()
	m.Register("airlines", datasource.NewSQLDataSourceFromDB("sqlite", db))
	return m
}

func TestQueryExecutor_Execute(t *testing.T) {
	d := &schema.DomainContext{ID: "airlines"}
	exec := NewQueryExecutor(sqliteManager(t), time.Second)
	ctx := context.Background()

	t.Run("成功返回结果集", func(t *testing.T) {
		stmt := &parser.SanitizedStatement{SQL: "SELECT flight_id, price FROM flights ORDER BY flight_id LIMIT 100", RowCap: 100}
		rs, err := exec.Execute(ctx, stmt, d)
		require.NoError(t, err)
		assert.Equal(t, 3, rs.RowCount)
		assert.Equal(t, []string{"flight_id", "price"}, rs.ColumnNames())
		assert.Equal(t, "number", rs.Columns[1].Kind)
		assert.Same(t, stmt, rs.Statement)
	})

	t.Run("行数受RowCap约束", func(t *testing.T) {
		rs, err := exec.Execute(ctx, &parser.SanitizedStatement{SQL: "SELECT flight_id FROM flights", RowCap: 2}, d)
		require.NoError(t, err)
		assert.Equal(t, 2, rs.RowCount)
		assert.True(t, rs.Truncated)
	})

	t.Run("空结果不是错误", func(t *testing.T) {
		rs, err := exec.Execute(ctx, &parser.SanitizedStatement{SQL: "SELECT flight_id FROM flights WHERE price < 0 LIMIT 100", RowCap: 100}, d)
		require.NoError(t, err)
		assert.Equal(t, 0, rs.RowCount)
		assert.NotNil(t, rs.Rows)
	})

	t.Run("驱动错误映射为ExecutionError", func(t *testing.T) {
		_, err := exec.Execute(ctx, &parser.SanitizedStatement{SQL: "SELECT fare FROM flights LIMIT 100", RowCap: 100}, d)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrExecution))
	})

	t.Run("未配置数据源", func(t *testing.T) {
		_, err := exec.Execute(ctx, &parser.SanitizedStatement{SQL: "SELECT 1", RowCap: 1}, &schema.DomainContext{ID: "bikes"})
		assert.True(t, errors.HasCode(err, errors.ErrExecution))
	})
}

func TestQueryExecutor_Timeout(t *testing.T) {
	m := datasource.NewManager()
	m.Register("airlines", blockingSource{})
	exec := NewQueryExecutor(m, 50*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), &parser.SanitizedStatement{SQL: "SELECT 1", RowCap: 1}, &schema.DomainContext{ID: "airlines"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrExecutionTimeout))
	assert.False(t, errors.HasCode(err, errors.ErrExecution))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestQueryExecutor_RedactsSecrets(t *testing.T) {
	m := datasource.NewManager()
	m.Register("airlines", failingSource{})
	exec := NewQueryExecutor(m, time.Second)
	exec.SetSecrets("airlines", "hunter22")

	_, err := exec.Execute(context.Background(), &parser.SanitizedStatement{SQL: "SELECT fare FROM flights", RowCap: 1}, &schema.DomainContext{ID: "airlines"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter22")
	assert.Contains(t, err.Error(), `column "fare" does not exist`)
}

func TestColumnKind(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
		rows   [][]interface{}
		want   string
	}{
		{"整数类型", "INTEGER", nil, "number"},
		{"numeric", "NUMERIC", nil, "number"},
		{"时间类型", "TIMESTAMP", nil, "time"},
		{"布尔", "BOOL", nil, "boolean"},
		{"文本", "VARCHAR", nil, "text"},
		{"无类型按值推断", "", [][]interface{}{{nil}, {int64(3)}}, "number"},
		{"无类型无值", "", nil, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnKind(tt.dbType, tt.rows, 0))
		})
	}
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat("12.50")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = ToFloat("12abc")
	assert.False(t, ok)

	f, ok = ToFloat(int32(7))
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)
}
