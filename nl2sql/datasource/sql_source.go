package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/config"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
)

// SQLDataSource 基于 database/sql 的数据源（sqlite / mysql / lib/pq）
type SQLDataSource struct {
	cfg config.StoreConfig
	db  *sql.DB
}

// NewSQLDataSource 创建 database/sql 数据源
func NewSQLDataSource(cfg config.StoreConfig) *SQLDataSource {
	return &SQLDataSource{cfg: cfg}
}

// NewSQLDataSourceFromDB 包装已打开的连接，用于测试和嵌入式库
func NewSQLDataSourceFromDB(storeType string, db *sql.DB) *SQLDataSource {
	return &SQLDataSource{cfg: config.StoreConfig{Type: storeType}, db: db}
}

// Type 数据源类型
func (s *SQLDataSource) Type() string {
	return s.cfg.Type
}

// getDriverName 获取注册的驱动名称
func (s *SQLDataSource) getDriverName() string {
	switch s.cfg.Type {
	case nl2sqlCommon.StoreTypePQ:
		return "postgres" // lib/pq 驱动注册的名称
	case nl2sqlCommon.StoreTypeSQLite:
		return "sqlite" // modernc.org/sqlite
	default:
		return s.cfg.Type
	}
}

// Connect 连接数据库
func (s *SQLDataSource) Connect(ctx context.Context) error {
	db, err := sql.Open(s.getDriverName(), s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", s.cfg.Type, err)
	}

	maxConns := s.cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	if s.cfg.Type == nl2sqlCommon.StoreTypeSQLite {
		// 内存库的每个连接都是独立的数据库
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns/2 + 1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s store: %w", s.cfg.Type, err)
	}

	g.Log().Infof(ctx, "Connected to %s store", s.cfg.Type)
	s.db = db
	return nil
}

// OpenWritable 打开用于建表和导入数据的连接，postgres 走 pgx 的 database/sql 驱动
func OpenWritable(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	var driver string
	switch cfg.Type {
	case nl2sqlCommon.StoreTypePostgres:
		driver = "pgx"
	case nl2sqlCommon.StoreTypePQ, nl2sqlCommon.StoreTypeSQLite, nl2sqlCommon.StoreTypeMySQL:
		driver = (&SQLDataSource{cfg: cfg}).getDriverName()
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}
	if cfg.Type == nl2sqlCommon.StoreTypeSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", cfg.Type, err)
	}
	return db, nil
}

// Close 关闭连接
func (s *SQLDataSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// TestConnection 测试连接
func (s *SQLDataSource) TestConnection(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%s store not connected", s.cfg.Type)
	}
	return s.db.PingContext(ctx)
}

// GetTables 获取所有表名
func (s *SQLDataSource) GetTables(ctx context.Context) ([]string, error) {
	var query string
	switch s.cfg.Type {
	case nl2sqlCommon.StoreTypeSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case nl2sqlCommon.StoreTypeMySQL:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	default:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	}

	rows, err := s.db.QueryContext(ctx, query)
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
func (s *SQLDataSource) ExecuteQuery(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%s store not connected", s.cfg.Type)
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{
		Columns: make([]Column, len(colTypes)),
		Rows:    make([][]interface{}, 0),
	}
	for i, ct := range colTypes {
		result.Columns[i] = Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(colTypes))
		valuePtrs := make([]interface{}, len(colTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		// 转换字节数组为字符串
		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
