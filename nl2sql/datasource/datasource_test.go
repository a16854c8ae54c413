package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/sqlgo/core/config"
)

func openMemory(t *testing.T) *SQLDataSource {
	t.Helper()
	ds := NewSQLDataSource(config.StoreConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, ds.Connect(context.Background()))
	t.Cleanup(func() { _ = ds.Close() })

	_, err := ds.db.Exec(`CREATE TABLE cities (city_id INTEGER PRIMARY KEY, city_name TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = ds.db.Exec(`INSERT INTO cities (city_id, city_name) VALUES (1, 'Delhi'), (2, 'Mumbai'), (3, 'Chennai')`)
	require.NoError(t, err)
	return ds
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    string
		wantErr bool
	}{
		{"postgres走pgx", config.StoreConfig{Type: "postgres", DSN: "postgres://u@localhost/db"}, "postgres", false},
		{"sqlite", config.StoreConfig{Type: "sqlite", DSN: ":memory:"}, "sqlite", false},
		{"mysql", config.StoreConfig{Type: "mysql", DSN: "u:p@tcp(localhost:3306)/db"}, "mysql", false},
		{"pq驱动", config.StoreConfig{Type: "pq", DSN: "host=localhost dbname=db"}, "pq", false},
		{"空DSN", config.StoreConfig{Type: "sqlite"}, "", true},
		{"未知类型", config.StoreConfig{Type: "oracle", DSN: "x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ds.Type())
		})
	}
}

func TestSQLDataSource_ExecuteQuery(t *testing.T) {
	ds := openMemory(t)
	ctx := context.Background()

	t.Run("读取全部行", func(t *testing.T) {
		res, err := ds.ExecuteQuery(ctx, "SELECT city_id, city_name FROM cities ORDER BY city_id", 0)
		require.NoError(t, err)
		require.Len(t, res.Columns, 2)
		assert.Equal(t, "city_name", res.Columns[1].Name)
		assert.Len(t, res.Rows, 3)
		assert.Equal(t, "Delhi", res.Rows[0][1])
		assert.False(t, res.Truncated)
	})

	t.Run("超过maxRows截断", func(t *testing.T) {
		res, err := ds.ExecuteQuery(ctx, "SELECT city_name FROM cities", 2)
		require.NoError(t, err)
		assert.Len(t, res.Rows, 2)
		assert.True(t, res.Truncated)
	})

	t.Run("未知列返回驱动错误", func(t *testing.T) {
		_, err := ds.ExecuteQuery(ctx, "SELECT no_such_column FROM cities", 0)
		assert.Error(t, err)
	})

	t.Run("失败后连接可继续使用", func(t *testing.T) {
		res, err := ds.ExecuteQuery(ctx, "SELECT COUNT(*) FROM cities", 0)
		require.NoError(t, err)
		assert.EqualValues(t, 3, res.Rows[0][0])
	})
}

func TestSQLDataSource_GetTables(t *testing.T) {
	ds := openMemory(t)
	tables, err := ds.GetTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cities"}, tables)
}

func TestManager(t *testing.T) {
	m := NewManager()
	ds := openMemory(t)
	m.Register("airlines", ds)

	got, ok := m.Get("airlines")
	assert.True(t, ok)
	assert.Same(t, ds, got)

	_, ok = m.Get("bikes")
	assert.False(t, ok)
}

func TestSecrets(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
		want []string
	}{
		{
			name: "postgres url",
			cfg:  config.StoreConfig{Type: "postgres", DSN: "postgres://reader:hunter22@db:5432/airlines"},
			want: []string{"postgres://reader:hunter22@db:5432/airlines", "hunter22"},
		},
		{
			name: "postgres键值形式",
			cfg:  config.StoreConfig{Type: "pq", DSN: "host=db user=reader password=s3cret dbname=bikes"},
			want: []string{"host=db user=reader password=s3cret dbname=bikes", "s3cret"},
		},
		{
			name: "mysql",
			cfg:  config.StoreConfig{Type: "mysql", DSN: "reader:pa55@tcp(db:3306)/bikes"},
			want: []string{"reader:pa55@tcp(db:3306)/bikes", "pa55"},
		},
		{
			name: "sqlite无密码",
			cfg:  config.StoreConfig{Type: "sqlite", DSN: "file:airlines.db"},
			want: []string{"file:airlines.db"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Secrets(tt.cfg))
		})
	}
}

func TestOpenWritable(t *testing.T) {
	db, err := OpenWritable(context.Background(), config.StoreConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE t (x INTEGER)`)
	assert.NoError(t, err)

	_, err = OpenWritable(context.Background(), config.StoreConfig{Type: "oracle", DSN: "x"})
	assert.Error(t, err)
}
