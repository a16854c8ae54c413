package datasource

import (
	"context"
	"fmt"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malowking/sqlgo/core/config"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
)

// PgxDataSource 基于 pgxpool 的 PostgreSQL 数据源
type PgxDataSource struct {
	cfg  config.StoreConfig
	pool *pgxpool.Pool
}

// NewPgxDataSource 创建 PostgreSQL 数据源
func NewPgxDataSource(cfg config.StoreConfig) *PgxDataSource {
	return &PgxDataSource{cfg: cfg}
}

// Type 数据源类型
func (p *PgxDataSource) Type() string {
	return nl2sqlCommon.StoreTypePostgres
}

// Connect 创建连接池
func (p *PgxDataSource) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(p.cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create postgres connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	g.Log().Infof(ctx, "Connected to PostgreSQL at %s:%d, database: %s",
		poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, poolCfg.ConnConfig.Database)
	p.pool = pool
	return nil
}

// Close 关闭连接池
func (p *PgxDataSource) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// TestConnection 测试连接
func (p *PgxDataSource) TestConnection(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("postgres store not connected")
	}
	return p.pool.Ping(ctx)
}

// GetTables 获取 public schema 下的表名
func (p *PgxDataSource) GetTables(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ExecuteQuery 独占一个连接执行语句，成功或失败都会归还连接
func (p *PgxDataSource) ExecuteQuery(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("postgres store not connected")
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	typeMap := conn.Conn().TypeMap()
	fds := rows.FieldDescriptions()
	result := &QueryResult{
		Columns: make([]Column, len(fds)),
		Rows:    make([][]interface{}, 0),
	}
	for i, fd := range fds {
		typeName := fmt.Sprintf("oid:%d", fd.DataTypeOID)
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		result.Columns[i] = Column{Name: fd.Name, DatabaseType: typeName}
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalizePgValue(v)
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// normalizePgValue 将 pgx 特有类型转换为可 JSON 序列化的普通值
func normalizePgValue(v interface{}) interface{} {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		return string(val)
	default:
		return v
	}
}
