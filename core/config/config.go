package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
)

// 默认值
const (
	DefaultRowCap           = 100
	DefaultMaxRowCap        = 100
	DefaultExecutionTimeout = 15 * time.Second
	DefaultLLMTimeout       = 30 * time.Second
	DefaultRetryBackoff     = 500 * time.Millisecond
	DefaultSentinel         = "OUT_OF_SCOPE"
	DefaultSessionTTL       = 24 * time.Hour
)

// 越界判定模式
const (
	ScopeModeFused    = "fused"
	ScopeModeSeparate = "separate"

	SentinelMatchPrefix = "prefix"
	SentinelMatchExact  = "exact"
)

// ValidateConfiguration validates all required configuration items
func ValidateConfiguration(ctx context.Context) error {
	var missingConfigs []string
	var warnings []string

	provider := g.Cfg().MustGet(ctx, "llm.provider", "openai").String()
	switch provider {
	case "openai", "azure", "eino":
	default:
		missingConfigs = append(missingConfigs, fmt.Sprintf("llm.provider (unsupported value %q)", provider))
	}

	if g.Cfg().MustGet(ctx, "llm.apiKey", "").String() == "" {
		missingConfigs = append(missingConfigs, "llm.apiKey")
	}
	if g.Cfg().MustGet(ctx, "llm.model", "").String() == "" {
		missingConfigs = append(missingConfigs, "llm.model")
	}
	baseURL := g.Cfg().MustGet(ctx, "llm.baseURL", "").String()
	if provider == "azure" && baseURL == "" {
		missingConfigs = append(missingConfigs, "llm.baseURL (azure endpoint)")
	} else if baseURL == "" {
		warnings = append(warnings, "llm.baseURL is not set, using the provider default")
	}

	domains := g.Cfg().MustGet(ctx, "domains").Map()
	if len(domains) == 0 {
		missingConfigs = append(missingConfigs, "domains")
	}
	for id := range domains {
		if g.Cfg().MustGet(ctx, "domains."+id+".dsn", "").String() == "" {
			missingConfigs = append(missingConfigs, "domains."+id+".dsn")
		}
	}

	if g.Cfg().MustGet(ctx, "database.default.link", "").String() == "" &&
		g.Cfg().MustGet(ctx, "database.default.host", "").String() == "" {
		warnings = append(warnings, "database.default is not set, query log is disabled")
	}

	if len(warnings) > 0 {
		g.Log().Warningf(ctx, "Configuration warnings:\n- %s", strings.Join(warnings, "\n- "))
	}

	if len(missingConfigs) > 0 {
		return fmt.Errorf("missing required configuration items:\n- %s\n\nPlease check your config.yaml file and ensure all required settings are properly configured", strings.Join(missingConfigs, "\n- "))
	}

	g.Log().Info(ctx, "✓ All required configuration items are present")

	return nil
}

// LLMConfig 文本生成服务配置
type LLMConfig struct {
	Provider     string        `json:"provider"`
	APIKey       string        `json:"apiKey"`
	BaseURL      string        `json:"baseURL"`
	APIVersion   string        `json:"apiVersion"`
	Model        string        `json:"model"`
	Temperature  float32       `json:"temperature"`
	MaxTokens    int           `json:"maxTokens"`
	Timeout      time.Duration `json:"timeout"`
	RetryBackoff time.Duration `json:"retryBackoff"`
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	DefaultRowCap    int           // 未指定 LIMIT 时追加的行数上限
	MaxRowCap        int           // 允许的最大 LIMIT
	ExecutionTimeout time.Duration // 单条语句执行超时
	ScopeMode        string        // fused | separate
	Sentinel         string        // 越界标记
	SentinelMatch    string        // prefix | exact
	CatalogDir       string        // 额外的领域描述目录
	DataDir          string        // setup 命令读取初始化数据的目录
	SessionTTL       time.Duration // 会话领域绑定的有效期
	InsightEnabled   bool
	VisualUseLLM     bool
	LLM              LLMConfig
}

// Normalize 填充默认值并保证 DefaultRowCap <= MaxRowCap
func (c *PipelineConfig) Normalize() {
	if c.MaxRowCap <= 0 {
		c.MaxRowCap = DefaultMaxRowCap
	}
	if c.DefaultRowCap <= 0 {
		c.DefaultRowCap = DefaultRowCap
	}
	if c.DefaultRowCap > c.MaxRowCap {
		c.DefaultRowCap = c.MaxRowCap
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = DefaultExecutionTimeout
	}
	if c.ScopeMode != ScopeModeSeparate {
		c.ScopeMode = ScopeModeFused
	}
	if strings.TrimSpace(c.Sentinel) == "" {
		c.Sentinel = DefaultSentinel
	}
	if c.SentinelMatch != SentinelMatchExact {
		c.SentinelMatch = SentinelMatchPrefix
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.LLM.RetryBackoff <= 0 {
		c.LLM.RetryBackoff = DefaultRetryBackoff
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1000
	}
}

// LoadPipelineConfig 从 config.yaml 读取流水线配置
func LoadPipelineConfig(ctx context.Context) *PipelineConfig {
	cfg := &PipelineConfig{
		DefaultRowCap:    g.Cfg().MustGet(ctx, "nl2sql.defaultRowCap", DefaultRowCap).Int(),
		MaxRowCap:        g.Cfg().MustGet(ctx, "nl2sql.maxRowCap", DefaultMaxRowCap).Int(),
		ExecutionTimeout: g.Cfg().MustGet(ctx, "nl2sql.executionTimeout", "15s").Duration(),
		ScopeMode:        g.Cfg().MustGet(ctx, "nl2sql.scopeMode", ScopeModeFused).String(),
		Sentinel:         g.Cfg().MustGet(ctx, "nl2sql.sentinel", DefaultSentinel).String(),
		SentinelMatch:    g.Cfg().MustGet(ctx, "nl2sql.sentinelMatch", SentinelMatchPrefix).String(),
		CatalogDir:       g.Cfg().MustGet(ctx, "nl2sql.catalogDir", "").String(),
		DataDir:          g.Cfg().MustGet(ctx, "nl2sql.dataDir", "data").String(),
		SessionTTL:       g.Cfg().MustGet(ctx, "nl2sql.sessionTTL", "24h").Duration(),
		InsightEnabled:   g.Cfg().MustGet(ctx, "nl2sql.insight.enabled", true).Bool(),
		VisualUseLLM:     g.Cfg().MustGet(ctx, "nl2sql.visual.useLLM", false).Bool(),
		LLM: LLMConfig{
			Provider:     g.Cfg().MustGet(ctx, "llm.provider", "openai").String(),
			APIKey:       g.Cfg().MustGet(ctx, "llm.apiKey", "").String(),
			BaseURL:      g.Cfg().MustGet(ctx, "llm.baseURL", "").String(),
			APIVersion:   g.Cfg().MustGet(ctx, "llm.apiVersion", "").String(),
			Model:        g.Cfg().MustGet(ctx, "llm.model", "").String(),
			Temperature:  g.Cfg().MustGet(ctx, "llm.temperature", 0.1).Float32(),
			MaxTokens:    g.Cfg().MustGet(ctx, "llm.maxTokens", 1000).Int(),
			Timeout:      g.Cfg().MustGet(ctx, "llm.timeout", "30s").Duration(),
			RetryBackoff: g.Cfg().MustGet(ctx, "llm.retryBackoff", "500ms").Duration(),
		},
	}
	cfg.Normalize()
	return cfg
}

// StoreConfig 单个领域数据源配置
type StoreConfig struct {
	Type     string `json:"type"` // postgres | sqlite | mysql
	DSN      string `json:"dsn"`
	MaxConns int    `json:"maxConns"`
}

// LoadStoreConfigs 读取 domains.<id> 数据源配置
func LoadStoreConfigs(ctx context.Context) (map[string]StoreConfig, error) {
	out := make(map[string]StoreConfig)
	for id := range g.Cfg().MustGet(ctx, "domains").Map() {
		var sc StoreConfig
		if err := g.Cfg().MustGet(ctx, "domains."+id).Scan(&sc); err != nil {
			return nil, fmt.Errorf("invalid store config for domain %s: %w", id, err)
		}
		if sc.Type == "" {
			sc.Type = "postgres"
		}
		out[id] = sc
	}
	return out, nil
}
