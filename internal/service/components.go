package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/cache"
	"github.com/Malowking/sqlgo/core/client"
	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/core/file_export"
	"github.com/Malowking/sqlgo/core/model"
	"github.com/Malowking/sqlgo/internal/dao"
	"github.com/Malowking/sqlgo/nl2sql/datasource"
	"github.com/Malowking/sqlgo/nl2sql/executor"
	"github.com/Malowking/sqlgo/nl2sql/generator"
	"github.com/Malowking/sqlgo/nl2sql/insight"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/prompt"
	"github.com/Malowking/sqlgo/nl2sql/schema"
	"github.com/Malowking/sqlgo/nl2sql/scope"
	nl2sqlService "github.com/Malowking/sqlgo/nl2sql/service"
	"github.com/Malowking/sqlgo/nl2sql/visual"
)

// Components 进程级共享组件，启动时创建一次
type Components struct {
	Config   *config.PipelineConfig
	Pipeline *nl2sqlService.Pipeline
	Selector *schema.Selector
	Sources  *datasource.Manager
	Exporter *file_export.FileExporter
}

var shared *Components

// Get 获取共享组件，未初始化时返回 nil
func Get() *Components {
	return shared
}

// Init 按配置创建全部组件
func Init(ctx context.Context) (*Components, error) {
	cfg := config.LoadPipelineConfig(ctx)

	registry, err := schema.LoadRegistry(ctx, cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain catalog: %w", err)
	}

	var sessions schema.SessionStore
	if rdb := cache.GetRedisClient(); rdb != nil {
		sessions = schema.NewRedisSessionStore(rdb, cfg.SessionTTL)
	} else {
		sessions = schema.NewMemorySessionStore(cfg.SessionTTL)
	}
	selector := schema.NewSelector(registry, sessions)

	stores, err := config.LoadStoreConfigs(ctx)
	if err != nil {
		return nil, err
	}
	for id := range stores {
		if _, ok := registry.Get(id); !ok {
			g.Log().Warningf(ctx, "Store configured for unknown domain %s, ignored", id)
			delete(stores, id)
		}
	}
	sources, err := datasource.Open(ctx, stores)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain stores: %w", err)
	}
	verifyDeclaredTables(ctx, registry, sources)

	completer, err := newCompleter(ctx, cfg.LLM)
	if err != nil {
		sources.Close()
		return nil, err
	}
	retry := &model.SingleModelRetryConfig{
		MaxRetries:  1,
		RetryDelay:  cfg.LLM.RetryBackoff,
		CallTimeout: cfg.LLM.Timeout,
	}

	builder := prompt.NewBuilder(cfg.Sentinel, cfg.DefaultRowCap)
	validator := scope.NewValidator(cfg.Sentinel, cfg.SentinelMatch, builder, completer, retry).
		WithTemperature(cfg.LLM.Temperature)
	exec := executor.NewQueryExecutor(sources, cfg.ExecutionTimeout)
	for id, sc := range stores {
		exec.SetSecrets(id, datasource.Secrets(sc)...)
	}

	components := nl2sqlService.Components{
		Contexts:  selector,
		Builder:   builder,
		Scope:     validator,
		Generator: generator.NewSQLGenerator(completer, validator, retry, cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		Sanitizer: parser.NewSQLValidator(cfg.DefaultRowCap, cfg.MaxRowCap),
		Executor:  exec,
		Insight:   insight.NewGenerator(completer, retry, cfg.InsightEnabled),
		Charts:    visual.NewSelector(completer, retry, cfg.VisualUseLLM),
		ScopeMode: cfg.ScopeMode,
	}
	if dao.Enabled() {
		components.Recorder = dao.QueryLog
	}

	shared = &Components{
		Config:   cfg,
		Pipeline: nl2sqlService.NewPipeline(components),
		Selector: selector,
		Sources:  sources,
		Exporter: file_export.NewFileExporter(),
	}
	g.Log().Infof(ctx, "Pipeline ready: domains=%s scopeMode=%s rowCap=%d/%d timeout=%s",
		strings.Join(registry.IDs(), ","), cfg.ScopeMode, cfg.DefaultRowCap, cfg.MaxRowCap, cfg.ExecutionTimeout)
	return shared, nil
}

// Close 释放数据源连接
func (c *Components) Close() {
	if c != nil && c.Sources != nil {
		c.Sources.Close()
	}
}

// newCompleter 按 llm.provider 选择文本生成后端
func newCompleter(ctx context.Context, llm config.LLMConfig) (model.Completer, error) {
	switch llm.Provider {
	case "", "openai":
		return model.NewOpenAICompleter(client.NewOpenAIClient(llm.APIKey, llm.BaseURL), llm.Model), nil
	case "azure":
		return model.NewOpenAICompleter(client.NewAzureClient(llm.APIKey, llm.BaseURL, llm.APIVersion), llm.Model), nil
	case "eino":
		c, err := model.NewEinoCompleter(ctx, llm.APIKey, llm.BaseURL, llm.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llm.Provider)
	}
}

// verifyDeclaredTables 领域声明的表必须在数据源中存在，缺失时只告警
func verifyDeclaredTables(ctx context.Context, registry *schema.Registry, sources *datasource.Manager) {
	for _, d := range registry.List() {
		ds, ok := sources.Get(d.ID)
		if !ok {
			g.Log().Warningf(ctx, "Domain %s has no data store configured, its queries will fail", d.ID)
			continue
		}
		tables, err := ds.GetTables(ctx)
		if err != nil {
			g.Log().Warningf(ctx, "Failed to list tables for domain %s: %v", d.ID, err)
			continue
		}
		present := make(map[string]bool, len(tables))
		for _, t := range tables {
			present[strings.ToLower(t)] = true
		}
		var missing []string
		for _, name := range d.TableNames() {
			if !present[strings.ToLower(name)] {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			g.Log().Warningf(ctx, "Domain %s declares tables missing from its store: %s", d.ID, strings.Join(missing, ", "))
		}
	}
}
