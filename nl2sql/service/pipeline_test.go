package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/core/model"
	"github.com/Malowking/sqlgo/nl2sql/datasource"
	"github.com/Malowking/sqlgo/nl2sql/executor"
	"github.com/Malowking/sqlgo/nl2sql/generator"
	"github.com/Malowking/sqlgo/nl2sql/insight"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/Malowking/sqlgo/nl2sql/schema"
	"github.com/Malowking/sqlgo/nl2sql/scope"
	"github.com/Malowking/sqlgo/nl2sql/visual"
)

const delhiToMumbai = "```sql\n" + `SELECT f.flight_number, a.airline_name, src.city_name AS source_city, dst.city_name AS destination_city, f.price
FROM flights f
JOIN airlines a ON f.airline_id = a.airline_id
JOIN cities src ON f.source_city_id = src.city_id
JOIN cities dst ON f.destination_city_id = dst.city_id
WHERE LOWER(src.city_name) = 'delhi' AND LOWER(dst.city_name) = 'mumbai'
ORDER BY f.price;` + "\n```"

var airlinesFixture = []string{
	`CREATE TABLE airlines (airline_id INTEGER PRIMARY KEY, airline_name TEXT, airline_code TEXT)`,
	`CREATE TABLE cities (city_id INTEGER PRIMARY KEY, city_name TEXT, country TEXT)`,
	`CREATE TABLE flights (flight_id INTEGER PRIMARY KEY, airline_id INTEGER, flight_number TEXT,
		source_city_id INTEGER, destination_city_id INTEGER, class_type TEXT, stops TEXT, price INTEGER)`,
	`INSERT INTO airlines VALUES (1, 'IndiGo', '6E'), (2, 'Vistara', 'UK')`,
	`INSERT INTO cities VALUES (1, 'Delhi', 'India'), (2, 'Mumbai', 'India'), (3, 'Chennai', 'India')`,
	`INSERT INTO flights VALUES
		(1, 1, '6E-2001', 1, 2, 'Economy', 'zero', 5953),
		(2, 2, 'UK-995', 1, 2, 'Business', 'zero', 42220),
		(3, 1, '6E-5310', 2, 3, 'Economy', 'one', 4100),
		(4, 2, 'UK-963', 1, 3, 'Economy', 'zero', 6300)`,
}

// scriptedCompleter 按顺序返回预设响应，记录调用次数
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []func(req model.CompletionRequest) (string, error)
	calls     int
}

func (s *scriptedCompleter) Complete(_ context.Context, req model.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		return "", stdErrors.New("no scripted response")
	}
	return s.responses[i](req)
}

func (s *scriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func reply(text string) func(model.CompletionRequest) (string, error) {
	return func(model.CompletionRequest) (string, error) { return text, nil }
}

// countingExecutor 统计到达执行阶段的语句
type countingExecutor struct {
	inner StatementExecutor
	calls atomic.Int32
}

func (c *countingExecutor) Execute(ctx context.Context, stmt *parser.SanitizedStatement, d *schema.DomainContext) (*executor.ResultSet, error) {
	c.calls.Add(1)
	return c.inner.Execute(ctx, stmt, d)
}

type recorderFunc func(ctx context.Context, resp *Response) error

func (f recorderFunc) Record(ctx context.Context, resp *Response) error { return f(ctx, resp) }

type fixture struct {
	pipeline  *Pipeline
	completer *scriptedCompleter
	exec      *countingExecutor
}

func newFixture(t *testing.T, mode string, responses ...func(model.CompletionRequest) (string, error)) *fixture {
	t.Helper()
	ctx := context.Background()

	registry, err := schema.LoadRegistry(ctx, "")
	require.NoError(t, err)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range airlinesFixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	sources := datasource.NewManager()
	sources.Register("airlines", datasource.NewSQLDataSourceFromDB("sqlite", db))

	completer := &scriptedCompleter{responses: responses}
	retry := &model.SingleModelRetryConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond, CallTimeout: time.Second}
	builder := prompt.NewBuilder(config.DefaultSentinel, 100)
	validator := scope.NewValidator(config.DefaultSentinel, config.SentinelMatchPrefix, builder, completer, retry)
	exec := &countingExecutor{inner: executor.NewQueryExecutor(sources, time.Second)}

	p := NewPipeline(Components{
		Contexts:  schema.NewSelector(registry, nil),
		Builder:   builder,
		Scope:     validator,
		Generator: generator.NewSQLGenerator(completer, validator, retry, 0, 1000),
		Sanitizer: parser.NewSQLValidator(100, 100),
		Executor:  exec,
		Insight:   insight.NewGenerator(nil, retry, false),
		Charts:    visual.NewSelector(nil, retry, false),
		ScopeMode: mode,
	})
	return &fixture{pipeline: p, completer: completer, exec: exec}
}

func states(trace []Transition) []State {
	out := make([]State, 0, len(trace)+1)
	for i, tr := range trace {
		if i == 0 {
			out = append(out, tr.From)
		}
		out = append(out, tr.To)
	}
	return out
}

func TestPipeline_FlightsBetweenCities(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused, reply(delhiToMumbai))

	resp := f.pipeline.Run(context.Background(), Question{Text: "show me flights from Delhi to Mumbai", DomainID: "airlines"})

	require.True(t, resp.OK(), "failure: %+v", resp.Failure)
	assert.Equal(t, StateDone, resp.State)
	assert.Equal(t, "airlines", resp.Domain)
	assert.NotEmpty(t, resp.RunID)

	stmt := resp.Success.Statement
	assert.Contains(t, stmt, "FROM flights")
	assert.Equal(t, 2, strings.Count(stmt, "JOIN cities"))
	assert.Contains(t, stmt, "'delhi'")
	assert.Contains(t, stmt, "'mumbai'")
	assert.True(t, strings.HasSuffix(stmt, "LIMIT 100"), stmt)
	assert.NotContains(t, stmt, "```")

	rs := resp.Success.Result
	assert.Equal(t, 2, rs.RowCount)
	assert.LessOrEqual(t, rs.RowCount, 100)
	assert.Equal(t, "6E-2001", rs.Rows[0][0])
	assert.Contains(t, resp.Success.Insight, "The query returned 2 rows.")
	assert.NotEmpty(t, resp.Success.Charts)

	assert.Equal(t, []State{StateIdle, StateGenerating, StateSanitizing, StateExecuting, StatePostProcessing, StateDone}, states(resp.Trace))
	assert.Equal(t, 1, f.completer.Calls())
}

func TestPipeline_OutOfScopeNeverReachesExecutor(t *testing.T) {
	t.Run("融合模式", func(t *testing.T) {
		f := newFixture(t, config.ScopeModeFused, reply("OUT_OF_SCOPE"))

		resp := f.pipeline.Run(context.Background(), Question{Text: "who is the president of India", DomainID: "airlines"})

		require.NotNil(t, resp.Failure)
		assert.Equal(t, "OutOfScope", resp.Failure.Kind)
		assert.Contains(t, resp.Failure.Message, "not related to Airlines data")
		assert.Contains(t, resp.Failure.Message, "ticket prices")
		assert.Nil(t, resp.Success)
		assert.Equal(t, int32(0), f.exec.calls.Load())
		assert.Equal(t, StateFailed, resp.State)
	})

	t.Run("独立判定模式不发起生成", func(t *testing.T) {
		f := newFixture(t, config.ScopeModeSeparate, reply("out_of_scope"), reply(delhiToMumbai))

		resp := f.pipeline.Run(context.Background(), Question{Text: "who is the president of India", DomainID: "airlines"})

		require.NotNil(t, resp.Failure)
		assert.Equal(t, "OutOfScope", resp.Failure.Kind)
		assert.Equal(t, StateScopeChecking, resp.Failure.FailedIn)
		assert.Equal(t, 1, f.completer.Calls())
		assert.Equal(t, int32(0), f.exec.calls.Load())
		assert.Equal(t, []State{StateIdle, StateScopeChecking, StateFailed}, states(resp.Trace))
	})

	t.Run("独立判定模式放行后生成", func(t *testing.T) {
		f := newFixture(t, config.ScopeModeSeparate, reply("IN_SCOPE"), reply(delhiToMumbai))

		resp := f.pipeline.Run(context.Background(), Question{Text: "show me flights from Delhi to Mumbai", DomainID: "airlines"})

		require.True(t, resp.OK(), "failure: %+v", resp.Failure)
		assert.Equal(t, 2, f.completer.Calls())
		assert.Equal(t, []State{StateIdle, StateScopeChecking, StateGenerating, StateSanitizing, StateExecuting, StatePostProcessing, StateDone}, states(resp.Trace))
	})
}

func TestPipeline_EmptyGenerationRetriedOnce(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused, reply(""), reply("   "), reply(delhiToMumbai))

	resp := f.pipeline.Run(context.Background(), Question{Text: "show me flights from Delhi to Mumbai", DomainID: "airlines"})

	require.NotNil(t, resp.Failure)
	assert.Equal(t, "GenerationUnavailable", resp.Failure.Kind)
	assert.Equal(t, StateGenerating, resp.Failure.FailedIn)
	assert.Equal(t, 2, f.completer.Calls())
	assert.Equal(t, int32(0), f.exec.calls.Load())
}

func TestPipeline_MultipleStatementsRejected(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused, reply("SELECT * FROM flights; SELECT * FROM airlines;"))

	resp := f.pipeline.Run(context.Background(), Question{Text: "show all flights and airlines", DomainID: "airlines"})

	require.NotNil(t, resp.Failure)
	assert.Equal(t, "UnsafeStatement", resp.Failure.Kind)
	assert.Equal(t, StateSanitizing, resp.Failure.FailedIn)
	assert.NotContains(t, resp.Failure.Message, "SELECT")
	assert.Equal(t, int32(0), f.exec.calls.Load())
}

func TestPipeline_Failures(t *testing.T) {
	tests := []struct {
		name     string
		question Question
		reply    string
		kind     string
		failedIn State
	}{
		{
			name:     "未知领域",
			question: Question{Text: "how many flights", DomainID: "weather"},
			kind:     "UnknownDomain",
			failedIn: StateIdle,
		},
		{
			name:     "空问题",
			question: Question{Text: "   ", DomainID: "airlines"},
			kind:     "InvalidParameter",
			failedIn: StateIdle,
		},
		{
			name:     "写操作被拒绝",
			question: Question{Text: "remove all flights", DomainID: "airlines"},
			reply:    "DELETE FROM flights",
			kind:     "UnsafeStatement",
			failedIn: StateSanitizing,
		},
		{
			name:     "引用其他领域的表",
			question: Question{Text: "list bikes", DomainID: "airlines"},
			reply:    "SELECT * FROM bikes",
			kind:     "UnsafeStatement",
			failedIn: StateSanitizing,
		},
		{
			name:     "执行错误",
			question: Question{Text: "show fares", DomainID: "airlines"},
			reply:    "SELECT fare FROM flights LIMIT 10",
			kind:     "ExecutionError",
			failedIn: StateExecuting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.ScopeModeFused, reply(tt.reply))
			resp := f.pipeline.Run(context.Background(), tt.question)

			require.NotNil(t, resp.Failure)
			assert.Nil(t, resp.Success)
			assert.Equal(t, tt.kind, resp.Failure.Kind)
			assert.Equal(t, tt.failedIn, resp.Failure.FailedIn)
			assert.Equal(t, StateFailed, resp.Trace[len(resp.Trace)-1].To)
		})
	}
}

func TestPipeline_EmptyResultIsSuccess(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused, reply("SELECT flight_number FROM flights WHERE price < 0"))

	resp := f.pipeline.Run(context.Background(), Question{Text: "flights cheaper than nothing", DomainID: "airlines"})

	require.True(t, resp.OK())
	assert.Equal(t, 0, resp.Success.Result.RowCount)
	assert.Equal(t, "No data found for the given query.", resp.Success.Insight)
	assert.Empty(t, resp.Success.Charts)
}

func TestPipeline_RecordsEveryRun(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused, reply("OUT_OF_SCOPE"))
	got := make(chan *Response, 1)
	f.pipeline.c.Recorder = recorderFunc(func(_ context.Context, resp *Response) error {
		got <- resp
		return nil
	})

	resp := f.pipeline.Run(context.Background(), Question{Text: "how to cook pasta", DomainID: "airlines"})

	select {
	case recorded := <-got:
		assert.Equal(t, resp.RunID, recorded.RunID)
		assert.Equal(t, "OutOfScope", recorded.Failure.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not recorded")
	}
}

func TestPipeline_QuickStats(t *testing.T) {
	f := newFixture(t, config.ScopeModeFused)

	stats, err := f.pipeline.QuickStats(context.Background(), "airlines")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "Total flights", stats[0].Label)
	assert.EqualValues(t, 4, stats[0].Value)
	assert.Empty(t, stats[0].Error)
	assert.EqualValues(t, 2, stats[2].Value)

	_, err = f.pipeline.QuickStats(context.Background(), "weather")
	assert.Error(t, err)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateIdle.CanTransition(StateGenerating))
	assert.True(t, StateIdle.CanTransition(StateScopeChecking))
	assert.True(t, StateExecuting.CanTransition(StateFailed))
	assert.False(t, StateSanitizing.CanTransition(StateGenerating))
	assert.False(t, StateDone.CanTransition(StateFailed))
	assert.False(t, StateFailed.CanTransition(StateIdle))
}
