package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/core/model"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
)

// SentinelDetector 识别越界标记
type SentinelDetector interface {
	IsSentinel(raw string) bool
}

// GeneratedStatement 生成服务返回的原文与抽取出的候选语句
type GeneratedStatement struct {
	Raw        string `json:"raw"`
	Candidate  string `json:"candidate"`
	Valid      bool   `json:"valid"` // 是否找到了 SQL 形式的语句
	OutOfScope bool   `json:"out_of_scope"`
}

// SQLGenerator SQL生成器
type SQLGenerator struct {
	completer   model.Completer
	detector    SentinelDetector
	retry       *model.SingleModelRetryConfig
	temperature float32
	maxTokens   int
}

// NewSQLGenerator 创建SQL生成器，temperature <= 0 时使用默认值
func NewSQLGenerator(completer model.Completer, detector SentinelDetector, retry *model.SingleModelRetryConfig,
	temperature float32, maxTokens int) *SQLGenerator {
	if temperature <= 0 {
		temperature = nl2sqlCommon.TemperatureSQL
	}
	return &SQLGenerator{
		completer:   completer,
		detector:    detector,
		retry:       retry,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Generate 调用生成服务（失败或空响应时重试一次），抽取候选语句
// 输出为越界标记时返回 ErrOutOfScope，不再抽取
func (s *SQLGenerator) Generate(ctx context.Context, p prompt.Prompt) (*GeneratedStatement, error) {
	nonEmpty := model.CompleterFunc(func(ctx context.Context, req model.CompletionRequest) (string, error) {
		raw, err := s.completer.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(stripFences(raw)) == "" {
			return "", nil
		}
		return raw, nil
	})

	raw, err := model.CompleteWithRetry(ctx, nonEmpty, s.retry, model.CompletionRequest{
		System:      p.System,
		User:        p.User,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		g.Log().Warningf(ctx, "[generator] domain=%s generation unavailable: %v", p.DomainID, err)
		return nil, err
	}

	if s.detector != nil && s.detector.IsSentinel(raw) {
		g.Log().Infof(ctx, "[generator] domain=%s model reported question out of scope", p.DomainID)
		return &GeneratedStatement{Raw: raw, OutOfScope: true}, errors.New(errors.ErrOutOfScope, "question is out of scope")
	}

	stmt := Extract(raw)
	g.Log().Debugf(ctx, "[generator] domain=%s valid=%v candidate=%s", p.DomainID, stmt.Valid, stmt.Candidate)
	return stmt, nil
}

var (
	fencePattern = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*[ \t]*\n)?(.*?)```")
	// 任何语句动词都算作 SQL 的开始，这样前置的写操作不会被跳过
	statementStart = regexp.MustCompile(`(?i)\b(SELECT|WITH|INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|REPLACE|MERGE|GRANT|REVOKE)\b`)
	lineStart      = regexp.MustCompile(`(?im)^[ \t(]*(SELECT|WITH|INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|REPLACE|MERGE|GRANT|REVOKE)\b`)
	trailingTerms  = regexp.MustCompile(`(\s*;)+\s*$`)
)

// Extract 从模型原文中抽取候选语句：去掉代码块标记，识别 {"sql": ...} 响应，
// 从第一个 SQL 语句动词开始截取，并把末尾多余的分号合并为一个
func Extract(raw string) *GeneratedStatement {
	stmt := &GeneratedStatement{Raw: raw}
	text := strings.TrimSpace(stripFences(raw))

	if sql, ok := jsonSQL(text); ok {
		text = sql
	}

	loc := lineStart.FindStringSubmatchIndex(text)
	if loc != nil {
		text = strings.TrimSpace(text[loc[0]:])
	} else if loc = statementStart.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	}
	stmt.Valid = loc != nil

	if trailingTerms.MatchString(text) {
		text = trailingTerms.ReplaceAllString(text, ";")
	}
	stmt.Candidate = strings.TrimSpace(text)
	return stmt
}

// stripFences 取第一个代码块的内容；未闭合的代码块去掉开头的标记
func stripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], " \t;") {
			text = text[nl+1:]
		}
	}
	return strings.TrimSuffix(strings.TrimSpace(text), "```")
}

func jsonSQL(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") {
		return "", false
	}
	var parsed struct {
		SQL string `json:"sql"`
	}
	if err := sonic.UnmarshalString(text, &parsed); err != nil || strings.TrimSpace(parsed.SQL) == "" {
		return "", false
	}
	return parsed.SQL, true
}
