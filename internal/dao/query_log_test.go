package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/sqlgo/nl2sql/executor"
	"github.com/Malowking/sqlgo/nl2sql/service"
)

func TestNewQueryLog(t *testing.T) {
	trace := []service.Transition{{From: service.StateIdle, To: service.StateGenerating}}

	tests := []struct {
		name       string
		resp       *service.Response
		wantStatus string
		wantKind   string
		wantRows   int
		wantSQL    string
	}{
		{
			name: "成功",
			resp: &service.Response{
				RunID: "run-1", Domain: "airlines", Question: "q", DurationMs: 42, Trace: trace,
				Success: &service.Success{Statement: "SELECT 1 LIMIT 100", Result: &executor.ResultSet{RowCount: 7}},
			},
			wantStatus: "success",
			wantRows:   7,
			wantSQL:    "SELECT 1 LIMIT 100",
		},
		{
			name: "越界",
			resp: &service.Response{
				RunID: "run-2", Domain: "airlines", Question: "q", Trace: trace,
				Failure: &service.Failure{Kind: "OutOfScope", Message: "not related"},
			},
			wantStatus: "failed",
			wantKind:   "OutOfScope",
		},
		{
			name: "超时",
			resp: &service.Response{
				RunID: "run-3", Domain: "bikes", Question: "q", Trace: trace,
				Failure: &service.Failure{Kind: "ExecutionTimeout", Message: "too long"},
			},
			wantStatus: "timeout",
			wantKind:   "ExecutionTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewQueryLog(tt.resp)
			require.NotNil(t, log)
			assert.Equal(t, tt.resp.RunID, log.ID)
			assert.Equal(t, tt.resp.Domain, log.DomainID)
			assert.Equal(t, tt.wantStatus, log.ExecutionStatus)
			assert.Equal(t, tt.wantKind, log.ErrorKind)
			assert.Equal(t, tt.wantRows, log.ResultRows)
			assert.Equal(t, tt.wantSQL, log.FinalSQL)
			assert.Contains(t, string(log.Trace), `"to":"Generating"`)
		})
	}
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *DBConfig
		want    string
		wantErr bool
	}{
		{"mysql", &DBConfig{Type: "mysql", Host: "h", Port: "3306", User: "u", Pass: "p", Name: "db"}, "mysql", false},
		{"gf的pgsql类型", &DBConfig{Type: "pgsql", Host: "h", Port: "5432", User: "u", Pass: "p", Name: "db"}, "postgres", false},
		{"不支持", &DBConfig{Type: "oracle"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialector(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}
