package schema

import (
	"fmt"
	"sort"
	"strings"

	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
)

var (
	knownSemantics = map[string]bool{
		"":                                true,
		nl2sqlCommon.SemanticTypeID:       true,
		nl2sqlCommon.SemanticTypeCurrency: true,
		nl2sqlCommon.SemanticTypeTime:     true,
		nl2sqlCommon.SemanticTypeCategory: true,
		nl2sqlCommon.SemanticTypeText:     true,
		nl2sqlCommon.SemanticTypeNumber:   true,
		nl2sqlCommon.SemanticTypeBoolean:  true,
	}
	knownRelations = map[string]bool{
		"":                             true,
		nl2sqlCommon.RelationManyToOne: true,
		nl2sqlCommon.RelationOneToMany: true,
		nl2sqlCommon.RelationOneToOne:  true,
	}
	knownDialects = map[string]bool{
		nl2sqlCommon.DialectPostgres: true,
		nl2sqlCommon.DialectSQLite:   true,
		nl2sqlCommon.DialectMySQL:    true,
	}
)

// Column 列定义
type Column struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`         // 物理类型，如 VARCHAR(100)
	Semantic    string `yaml:"semantic" json:"semantic"` // 语义类型，见 common.SemanticType*
	Description string `yaml:"description" json:"description,omitempty"`
	PrimaryKey  bool   `yaml:"primaryKey" json:"primaryKey,omitempty"`
	Default     string `yaml:"default" json:"-"` // 建表时的默认值表达式
}

// Table 表定义
type Table struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Columns     []Column `yaml:"columns" json:"columns"`
}

// Relation 外键关系，From/To 形如 table.column
type Relation struct {
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
	Type        string `yaml:"type" json:"type,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// JoinPath 以 JOIN 条件的形式描述关系
func (r Relation) JoinPath() string {
	toTable, _, _ := strings.Cut(r.To, ".")
	fromTable, _, _ := strings.Cut(r.From, ".")
	return fmt.Sprintf("%s JOIN %s ON %s = %s", fromTable, toTable, r.From, r.To)
}

// SampleValues 某列的典型取值，帮助模型写出正确的过滤条件
type SampleValues struct {
	Column string   `yaml:"column" json:"column"`
	Values []string `yaml:"values" json:"values"`
}

// Example 问题与期望语句的示例
type Example struct {
	Question string `yaml:"question" json:"question"`
	SQL      string `yaml:"sql" json:"sql"`
}

// QuickStat 领域概览指标
type QuickStat struct {
	Label string `yaml:"label" json:"label"`
	SQL   string `yaml:"sql" json:"sql"`
}

// Scope 领域的话题边界
type Scope struct {
	Topics    []string `yaml:"topics" json:"topics"`
	OffTopics []string `yaml:"offTopics" json:"offTopics,omitempty"`
}

// SeedDimension 从源文件去重得到的维表，Key 为自增主键，Column 保存取值
type SeedDimension struct {
	Table   string   `yaml:"table"`
	Key     string   `yaml:"key"`
	Column  string   `yaml:"column"`
	Sources []string `yaml:"sources"`
	Extract string   `yaml:"extract"`
}

// SeedColumn 事实表的一列如何从源文件取值。
// Lookup 非空时写入对应维表的主键；Contains 非空时写入源值是否包含该子串
type SeedColumn struct {
	Column   string `yaml:"column"`
	Source   string `yaml:"source"` // 为空时与 Column 同名
	Lookup   string `yaml:"lookup"`
	Extract  string `yaml:"extract"`
	Contains string `yaml:"contains"`
}

// SourceName 源文件中的列名
func (c SeedColumn) SourceName() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Column
}

// SeedFact 事实表
type SeedFact struct {
	Table   string       `yaml:"table"`
	Columns []SeedColumn `yaml:"columns"`
}

// Seed 初始化数据：一个 CSV/Excel 文件拆成若干维表和一张事实表
type Seed struct {
	File       string          `yaml:"file"`
	Dimensions []SeedDimension `yaml:"dimensions"`
	Fact       SeedFact        `yaml:"fact"`
}

// DomainContext 单个领域的只读元数据，进程启动时加载，之后不再修改
type DomainContext struct {
	ID              string         `yaml:"id" json:"id"`
	DisplayName     string         `yaml:"displayName" json:"displayName"`
	Description     string         `yaml:"description" json:"description"`
	Dialect         string         `yaml:"dialect" json:"dialect"`
	Scope           Scope          `yaml:"scope" json:"scope"`
	Tables          []Table        `yaml:"tables" json:"tables"`
	Relations       []Relation     `yaml:"relations" json:"relations"`
	SampleValues    []SampleValues `yaml:"sampleValues" json:"sampleValues,omitempty"`
	SampleQuestions []string       `yaml:"sampleQuestions" json:"sampleQuestions"`
	Examples        []Example      `yaml:"examples" json:"examples"`
	QuickStats      []QuickStat    `yaml:"quickStats" json:"quickStats,omitempty"`
	Seed            *Seed          `yaml:"seed" json:"-"`

	schemaText string
	tableSet   map[string]struct{}
}

// TableNames 返回所有表名（按声明顺序）
func (d *DomainContext) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Table 按名称查找表定义
func (d *DomainContext) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Column 按名称查找列定义
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// HasTable 判断表是否属于该领域（大小写不敏感）
func (d *DomainContext) HasTable(name string) bool {
	_, ok := d.tableSet[strings.ToLower(name)]
	return ok
}

// SchemaText 返回给模型的完整 schema 描述
func (d *DomainContext) SchemaText() string {
	return d.schemaText
}

// ScopeSummary 用于越界提示的话题列表
func (d *DomainContext) ScopeSummary() string {
	return strings.Join(d.Scope.Topics, ", ")
}

// seal 校验并预计算派生字段，之后对象只读
func (d *DomainContext) seal() error {
	if d.ID == "" {
		return fmt.Errorf("domain id is required")
	}
	if d.DisplayName == "" {
		d.DisplayName = d.ID
	}
	if d.Dialect == "" {
		d.Dialect = nl2sqlCommon.DialectPostgres
	}
	if !knownDialects[d.Dialect] {
		return fmt.Errorf("domain %s: unsupported dialect %s", d.ID, d.Dialect)
	}
	if len(d.Tables) == 0 {
		return fmt.Errorf("domain %s: at least one table is required", d.ID)
	}
	if len(d.Scope.Topics) == 0 {
		return fmt.Errorf("domain %s: scope topics are required", d.ID)
	}
	if len(d.SampleQuestions) == 0 {
		return fmt.Errorf("domain %s: sample questions are required", d.ID)
	}
	if len(d.Examples) < 2 {
		return fmt.Errorf("domain %s: at least two worked examples are required", d.ID)
	}

	d.tableSet = make(map[string]struct{}, len(d.Tables))
	columns := make(map[string]struct{})
	for _, t := range d.Tables {
		key := strings.ToLower(t.Name)
		if _, dup := d.tableSet[key]; dup {
			return fmt.Errorf("domain %s: duplicate table %s", d.ID, t.Name)
		}
		d.tableSet[key] = struct{}{}
		for _, c := range t.Columns {
			if !knownSemantics[c.Semantic] {
				return fmt.Errorf("domain %s: column %s.%s has unknown semantic type %s", d.ID, t.Name, c.Name, c.Semantic)
			}
			columns[key+"."+strings.ToLower(c.Name)] = struct{}{}
		}
	}
	for _, r := range d.Relations {
		if !knownRelations[r.Type] {
			return fmt.Errorf("domain %s: unknown relation type %s", d.ID, r.Type)
		}
		for _, ref := range []string{r.From, r.To} {
			if _, ok := columns[strings.ToLower(ref)]; !ok {
				return fmt.Errorf("domain %s: relation references unknown column %s", d.ID, ref)
			}
		}
	}

	if d.Seed != nil {
		if err := d.checkSeed(columns); err != nil {
			return fmt.Errorf("domain %s: seed: %w", d.ID, err)
		}
	}

	d.schemaText = renderSchema(d)
	return nil
}

func (d *DomainContext) checkSeed(columns map[string]struct{}) error {
	has := func(table, column string) bool {
		_, ok := columns[strings.ToLower(table+"."+column)]
		return ok
	}
	extractOK := func(e string) bool { return e == "" || e == nl2sqlCommon.SeedExtractFirstWord }

	if d.Seed.File == "" {
		return fmt.Errorf("file is required")
	}
	dims := make(map[string]bool, len(d.Seed.Dimensions))
	for _, dim := range d.Seed.Dimensions {
		if !has(dim.Table, dim.Key) || !has(dim.Table, dim.Column) {
			return fmt.Errorf("dimension %s references unknown columns %s/%s", dim.Table, dim.Key, dim.Column)
		}
		if len(dim.Sources) == 0 {
			return fmt.Errorf("dimension %s has no sources", dim.Table)
		}
		if !extractOK(dim.Extract) {
			return fmt.Errorf("dimension %s: unknown extract %s", dim.Table, dim.Extract)
		}
		dims[strings.ToLower(dim.Table)] = true
	}
	if d.Seed.Fact.Table == "" || len(d.Seed.Fact.Columns) == 0 {
		return fmt.Errorf("fact table and columns are required")
	}
	for _, c := range d.Seed.Fact.Columns {
		if !has(d.Seed.Fact.Table, c.Column) {
			return fmt.Errorf("fact column %s.%s is not declared", d.Seed.Fact.Table, c.Column)
		}
		if c.Lookup != "" && !dims[strings.ToLower(c.Lookup)] {
			return fmt.Errorf("fact column %s looks up undeclared dimension %s", c.Column, c.Lookup)
		}
		if !extractOK(c.Extract) {
			return fmt.Errorf("fact column %s: unknown extract %s", c.Column, c.Extract)
		}
	}
	return nil
}

func renderSchema(d *DomainContext) string {
	var sb strings.Builder
	sb.WriteString("Tables:\n")
	for i, t := range d.Tables {
		fmt.Fprintf(&sb, "%d. %s", i+1, t.Name)
		if t.Description != "" {
			fmt.Fprintf(&sb, " -- %s", t.Description)
		}
		sb.WriteString("\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&sb, "   - %s (%s", c.Name, c.Type)
			if c.PrimaryKey {
				sb.WriteString(", primary key")
			}
			if c.Semantic != "" {
				fmt.Fprintf(&sb, ", %s", c.Semantic)
			}
			sb.WriteString(")")
			if c.Description != "" {
				fmt.Fprintf(&sb, ": %s", c.Description)
			}
			sb.WriteString("\n")
		}
	}

	if len(d.Relations) > 0 {
		sb.WriteString("\nJoin paths:\n")
		for _, r := range d.Relations {
			fmt.Fprintf(&sb, "- %s", r.JoinPath())
			if r.Description != "" {
				fmt.Fprintf(&sb, " (%s)", r.Description)
			}
			sb.WriteString("\n")
		}
	}

	if len(d.SampleValues) > 0 {
		sb.WriteString("\nSample values:\n")
		values := append([]SampleValues(nil), d.SampleValues...)
		sort.SliceStable(values, func(i, j int) bool { return values[i].Column < values[j].Column })
		for _, sv := range values {
			fmt.Fprintf(&sb, "- %s: %s\n", sv.Column, strings.Join(sv.Values, ", "))
		}
	}
	return sb.String()
}
