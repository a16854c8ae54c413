package schema

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Malowking/sqlgo/core/common"
	"github.com/gogf/gf/v2/frame/g"
	"gopkg.in/yaml.v3"
)

//go:embed domains/*.yaml
var builtinDomains embed.FS

// Registry 领域上下文注册表，加载后只读，可被并发请求共享
type Registry struct {
	domains map[string]*DomainContext
	ids     []string
}

// NewRegistry 由已解析的领域构建注册表
func NewRegistry(domains ...*DomainContext) (*Registry, error) {
	r := &Registry{domains: make(map[string]*DomainContext, len(domains))}
	for _, d := range domains {
		if err := d.seal(); err != nil {
			return nil, err
		}
		if !common.ValidateIdentifier(d.ID) {
			return nil, fmt.Errorf("invalid domain id %q", d.ID)
		}
		r.domains[d.ID] = d
	}
	for id := range r.domains {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// LoadRegistry 加载内置领域；catalogDir 非空时同名文件覆盖内置定义
func LoadRegistry(ctx context.Context, catalogDir string) (*Registry, error) {
	byID := make(map[string]*DomainContext)

	builtin, err := loadFS(builtinDomains, "domains")
	if err != nil {
		return nil, fmt.Errorf("load builtin domains: %w", err)
	}
	for _, d := range builtin {
		byID[d.ID] = d
	}

	if catalogDir != "" {
		extra, err := loadFS(os.DirFS(catalogDir), ".")
		if err != nil {
			return nil, fmt.Errorf("load domains from %s: %w", catalogDir, err)
		}
		for _, d := range extra {
			if _, ok := byID[d.ID]; ok {
				g.Log().Infof(ctx, "Domain %s overridden from %s", d.ID, catalogDir)
			}
			byID[d.ID] = d
		}
	}

	domains := make([]*DomainContext, 0, len(byID))
	for _, d := range byID {
		domains = append(domains, d)
	}
	r, err := NewRegistry(domains...)
	if err != nil {
		return nil, err
	}
	g.Log().Infof(ctx, "Schema registry loaded: %s", strings.Join(r.IDs(), ", "))
	return r, nil
}

func loadFS(fsys fs.FS, dir string) ([]*DomainContext, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []*DomainContext
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		d, err := ParseDomain(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseDomain 解析单个领域的 YAML 描述
func ParseDomain(data []byte) (*DomainContext, error) {
	var d DomainContext
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Get 获取领域
func (r *Registry) Get(id string) (*DomainContext, bool) {
	d, ok := r.domains[id]
	return d, ok
}

// IDs 返回排序后的领域ID
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// List 按ID顺序返回所有领域
func (r *Registry) List() []*DomainContext {
	out := make([]*DomainContext, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.domains[id])
	}
	return out
}
