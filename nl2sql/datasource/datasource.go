package datasource

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Malowking/sqlgo/core/config"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
)

// DataSource 领域数据源接口，每个领域对应一个物理库
type DataSource interface {
	// Connect 建立连接池
	Connect(ctx context.Context) error
	// Close 关闭连接池
	Close() error
	// TestConnection 测试连接
	TestConnection(ctx context.Context) error
	// GetTables 获取库中所有表名
	GetTables(ctx context.Context) ([]string, error)
	// ExecuteQuery 执行只读查询，最多读取 maxRows 行（<=0 表示不限制）
	ExecuteQuery(ctx context.Context, query string, maxRows int) (*QueryResult, error)
	// Type 数据源类型
	Type() string
}

// Column 结果列
type Column struct {
	Name         string `json:"name"`
	DatabaseType string `json:"database_type"`
}

// QueryResult 查询结果
type QueryResult struct {
	Columns   []Column
	Rows      [][]interface{}
	Truncated bool // 读满 maxRows 后仍有剩余行
}

// New 按配置创建数据源（未连接）
func New(cfg config.StoreConfig) (DataSource, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty dsn for %s store", cfg.Type)
	}
	switch cfg.Type {
	case nl2sqlCommon.StoreTypePostgres:
		return NewPgxDataSource(cfg), nil
	case nl2sqlCommon.StoreTypeSQLite, nl2sqlCommon.StoreTypeMySQL, nl2sqlCommon.StoreTypePQ:
		return NewSQLDataSource(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// Dialect 数据源类型对应的 SQL 方言
func Dialect(storeType string) string {
	switch storeType {
	case nl2sqlCommon.StoreTypeSQLite:
		return nl2sqlCommon.DialectSQLite
	case nl2sqlCommon.StoreTypeMySQL:
		return nl2sqlCommon.DialectMySQL
	default:
		return nl2sqlCommon.DialectPostgres
	}
}

// Secrets 返回配置中需要从错误消息里抹除的敏感值：完整 DSN 与其中的密码
func Secrets(cfg config.StoreConfig) []string {
	out := []string{cfg.DSN}
	switch cfg.Type {
	case nl2sqlCommon.StoreTypePostgres, nl2sqlCommon.StoreTypePQ:
		if pc, err := pgconn.ParseConfig(cfg.DSN); err == nil && pc.Password != "" {
			out = append(out, pc.Password)
		}
	case nl2sqlCommon.StoreTypeMySQL:
		if mc, err := mysql.ParseDSN(cfg.DSN); err == nil && mc.Passwd != "" {
			out = append(out, mc.Passwd)
		}
	}
	return out
}

// Manager 持有每个领域的数据源
type Manager struct {
	sources map[string]DataSource
}

// NewManager 创建数据源管理器
func NewManager() *Manager {
	return &Manager{sources: make(map[string]DataSource)}
}

// Register 注册已连接的数据源
func (m *Manager) Register(domainID string, ds DataSource) {
	m.sources[domainID] = ds
}

// Open 按配置为每个领域建立连接，任一失败则关闭已打开的连接
func Open(ctx context.Context, stores map[string]config.StoreConfig) (*Manager, error) {
	m := NewManager()
	for id, sc := range stores {
		ds, err := New(sc)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("domain %s: %w", id, err)
		}
		if err := ds.Connect(ctx); err != nil {
			m.Close()
			return nil, fmt.Errorf("domain %s: %w", id, err)
		}
		m.Register(id, ds)
	}
	return m, nil
}

// Get 获取领域数据源
func (m *Manager) Get(domainID string) (DataSource, bool) {
	ds, ok := m.sources[domainID]
	return ds, ok
}

// Close 关闭全部数据源
func (m *Manager) Close() {
	for _, ds := range m.sources {
		_ = ds.Close()
	}
}
