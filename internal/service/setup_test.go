package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

const seedFlights = `index,airline,flight,source_city,departure_time,stops,arrival_time,destination_city,class,duration,days_left,price
0,SpiceJet,SG-8709,Delhi,Evening,zero,Night,Mumbai,Economy,2.17,1,5953
1,AirAsia,I5-764,Delhi,Morning,one,Evening,Bangalore,Economy,6.5,3,4100
`

func TestSetupDomains(t *testing.T) {
	ctx := context.Background()
	registry, err := schema.LoadRegistry(ctx, "")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airlines_flights_data.csv"), []byte(seedFlights), 0o644))
	dbPath := filepath.Join(dir, "airlines.db")
	stores := map[string]config.StoreConfig{
		"airlines": {Type: "sqlite", DSN: dbPath},
	}

	stats, err := SetupDomains(ctx, registry, stores, dir, []string{"airlines"})
	require.NoError(t, err)
	require.Contains(t, stats, "airlines")
	assert.Equal(t, 2, stats["airlines"].FactRows)
	assert.Equal(t, 3, stats["airlines"].Dimensions["cities"])

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM flights f JOIN cities c ON f.destination_city_id = c.city_id WHERE c.city_name = 'Bangalore'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSetupDomainsErrors(t *testing.T) {
	ctx := context.Background()
	registry, err := schema.LoadRegistry(ctx, "")
	require.NoError(t, err)
	dir := t.TempDir()

	tests := []struct {
		name    string
		stores  map[string]config.StoreConfig
		only    []string
		wantErr string
	}{
		{"未知领域", nil, []string{"weather"}, "unknown domain weather"},
		{"未配置数据源", map[string]config.StoreConfig{}, []string{"bikes"}, "no data store configured"},
		{"缺少源文件", map[string]config.StoreConfig{"bikes": {Type: "sqlite", DSN: filepath.Join(dir, "bikes.db")}}, []string{"bikes"}, "domain bikes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SetupDomains(ctx, registry, tt.stores, dir, tt.only)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
