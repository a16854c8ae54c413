package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/config"
	"github.com/Malowking/sqlgo/nl2sql/datasource"
	"github.com/Malowking/sqlgo/nl2sql/parser"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

// Setup 按配置重建领域表并导入初始化数据；only 为空时处理所有带初始化定义的领域
func Setup(ctx context.Context, only []string) (map[string]*parser.ImportStats, error) {
	cfg := config.LoadPipelineConfig(ctx)
	registry, err := schema.LoadRegistry(ctx, cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain catalog: %w", err)
	}
	stores, err := config.LoadStoreConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return SetupDomains(ctx, registry, stores, cfg.DataDir, only)
}

// SetupDomains 对每个领域：连接其数据源，按声明建表，再从 dataDir 下的源文件导入
func SetupDomains(ctx context.Context, registry *schema.Registry, stores map[string]config.StoreConfig,
	dataDir string, only []string) (map[string]*parser.ImportStats, error) {
	targets := registry.List()
	if len(only) > 0 {
		targets = targets[:0:0]
		for _, id := range only {
			d, ok := registry.Get(id)
			if !ok {
				return nil, fmt.Errorf("unknown domain %s", id)
			}
			targets = append(targets, d)
		}
	}

	fileParser := parser.NewFileParser()
	out := make(map[string]*parser.ImportStats, len(targets))
	for _, d := range targets {
		if d.Seed == nil {
			g.Log().Infof(ctx, "Domain %s has no seed definition, skipped", d.ID)
			continue
		}
		sc, ok := stores[d.ID]
		if !ok {
			return out, fmt.Errorf("domain %s has no data store configured", d.ID)
		}

		src, err := fileParser.ParseFile(ctx, filepath.Join(dataDir, d.Seed.File))
		if err != nil {
			return out, fmt.Errorf("domain %s: %w", d.ID, err)
		}
		stats, err := setupDomain(ctx, d, sc, src)
		if err != nil {
			return out, fmt.Errorf("domain %s: %w", d.ID, err)
		}
		out[d.ID] = stats
	}
	return out, nil
}

func setupDomain(ctx context.Context, d *schema.DomainContext, sc config.StoreConfig, src *parser.ParsedTable) (*parser.ImportStats, error) {
	db, err := datasource.OpenWritable(ctx, sc)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	dialect := datasource.Dialect(sc.Type)
	if dialect != d.Dialect {
		g.Log().Warningf(ctx, "Domain %s declares dialect %s but its store is %s", d.ID, d.Dialect, sc.Type)
	}
	importer := parser.NewTableImporter(db, dialect)
	if err := importer.CreateTables(ctx, d); err != nil {
		return nil, err
	}
	return importer.ImportDomain(ctx, d, src)
}
