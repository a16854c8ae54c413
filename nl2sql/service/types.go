package service

import (
	"github.com/Malowking/sqlgo/nl2sql/executor"
	"github.com/Malowking/sqlgo/nl2sql/visual"
)

// State 流水线状态
type State string

const (
	StateIdle           State = "Idle"
	StateScopeChecking  State = "ScopeChecking"
	StateGenerating     State = "Generating"
	StateSanitizing     State = "Sanitizing"
	StateExecuting      State = "Executing"
	StatePostProcessing State = "PostProcessing"
	StateDone           State = "Done"
	StateFailed         State = "Failed"
)

// 每个状态只前进，不回退；Failed 可由任何非终态进入
var nextStates = map[State][]State{
	StateIdle:           {StateScopeChecking, StateGenerating},
	StateScopeChecking:  {StateGenerating},
	StateGenerating:     {StateSanitizing},
	StateSanitizing:     {StateExecuting},
	StateExecuting:      {StatePostProcessing},
	StatePostProcessing: {StateDone},
}

// IsTerminal 是否为终态
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition 判断状态迁移是否合法
func (s State) CanTransition(to State) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, n := range nextStates[s] {
		if n == to {
			return true
		}
	}
	return false
}

// Transition 一次状态迁移，ElapsedMs 为离开的状态停留时长
type Transition struct {
	From      State `json:"from"`
	To        State `json:"to"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Success 成功结果
type Success struct {
	Statement string                   `json:"statement"`
	Result    *executor.ResultSet      `json:"result"`
	Insight   string                   `json:"insight"`
	Charts    []visual.ChartSuggestion `json:"chart_suggestions"`
}

// Failure 失败结果，Message 面向用户，不含被拒绝的语句和连接凭据
type Failure struct {
	Kind     string `json:"kind"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	FailedIn State  `json:"failed_in"`
}

// Response 流水线的唯一输出，Success 与 Failure 二选一
type Response struct {
	RunID      string       `json:"run_id"`
	Domain     string       `json:"domain"`
	Question   string       `json:"question"`
	State      State        `json:"state"`
	Success    *Success     `json:"success,omitempty"`
	Failure    *Failure     `json:"failure,omitempty"`
	Trace      []Transition `json:"trace"`
	DurationMs int64        `json:"duration_ms"`
}

// OK 是否成功
func (r *Response) OK() bool {
	return r.Failure == nil && r.Success != nil
}
