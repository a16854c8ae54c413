package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/core/errors"
	"github.com/Malowking/sqlgo/core/model"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/Malowking/sqlgo/nl2sql/schema"
	"github.com/gogf/gf/v2/frame/g"
)

// Verdict 越界判定结果
type Verdict struct {
	InScope bool
	Reason  string
}

// Validator 判断问题是否属于当前领域
type Validator struct {
	sentinel  string
	matchMode string
	builder   *prompt.Builder
	completer model.Completer
	retry     *model.SingleModelRetryConfig
	// temperature 独立判定调用的采样温度
	temperature float32
}

// NewValidator 创建判定器；completer 仅在独立判定模式下使用，可为 nil
func NewValidator(sentinel, matchMode string, builder *prompt.Builder, completer model.Completer, retry *model.SingleModelRetryConfig) *Validator {
	if strings.TrimSpace(sentinel) == "" {
		sentinel = config.DefaultSentinel
	}
	return &Validator{
		sentinel:  strings.TrimSpace(sentinel),
		matchMode: matchMode,
		builder:   builder,
		completer: completer,
		retry:     retry,

		temperature: nl2sqlCommon.TemperatureSQL,
	}
}

// WithTemperature 设置独立判定调用的温度，<= 0 时保持默认
func (v *Validator) WithTemperature(t float32) *Validator {
	if t > 0 {
		v.temperature = t
	}
	return v
}

// IsSentinel 判断模型原始输出是否为越界标记，大小写不敏感
// prefix 模式下以标记开头即视为越界；exact 模式下整段输出必须就是标记
func (v *Validator) IsSentinel(raw string) bool {
	text := strings.ToUpper(normalize(raw))
	marker := strings.ToUpper(v.sentinel)
	if v.matchMode == config.SentinelMatchExact {
		return strings.TrimRight(text, ".!") == marker
	}
	return strings.HasPrefix(text, marker)
}

// Inspect 融合模式下检查生成结果，越界时返回 ErrOutOfScope
func (v *Validator) Inspect(raw string, d *schema.DomainContext) (Verdict, error) {
	if v.IsSentinel(raw) {
		verdict := v.outOfScope(d)
		return verdict, errors.New(errors.ErrOutOfScope, verdict.Reason)
	}
	return Verdict{InScope: true}, nil
}

// Check 独立判定模式：在生成前单独调用一次文本生成服务
func (v *Validator) Check(ctx context.Context, question string, d *schema.DomainContext) (Verdict, error) {
	if v.completer == nil {
		return Verdict{}, errors.New(errors.ErrInternalError, "scope check requires a completer")
	}
	p := v.builder.BuildScopeCheck(question, d)
	raw, err := model.CompleteWithRetry(ctx, v.completer, v.retry, model.CompletionRequest{
		System:      p.System,
		User:        p.User,
		Temperature: v.temperature,
		MaxTokens:   16,
	})
	if err != nil {
		return Verdict{}, err
	}
	g.Log().Debugf(ctx, "[scope] domain=%s verdict=%q", d.ID, strings.TrimSpace(raw))
	return v.Inspect(raw, d)
}

func (v *Validator) outOfScope(d *schema.DomainContext) Verdict {
	return Verdict{
		InScope: false,
		Reason: fmt.Sprintf("This question is not related to %s data. Please ask questions only about: %s.",
			d.DisplayName, d.ScopeSummary()),
	}
}

// normalize 去掉首尾空白、代码块标记和引号
func normalize(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	return strings.Trim(text, "\"'` ")
}
