package parser

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/sqlgo/core/common"
	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

const importBatchSize = 500

// ImportStats 导入结果
type ImportStats struct {
	Dimensions map[string]int `json:"dimensions"`
	FactTable  string         `json:"fact_table"`
	FactRows   int            `json:"fact_rows"`
}

// TableImporter 按领域声明建表并导入源数据
type TableImporter struct {
	db      *sql.DB
	dialect string
}

// NewTableImporter 创建表导入器，dialect 决定建表语法与占位符
func NewTableImporter(db *sql.DB, dialect string) *TableImporter {
	return &TableImporter{db: db, dialect: dialect}
}

// CreateTables 重建领域声明的全部表：先按声明逆序删除，再按声明顺序创建
func (t *TableImporter) CreateTables(ctx context.Context, d *schema.DomainContext) error {
	for _, table := range d.Tables {
		if !common.ValidateIdentifier(table.Name) {
			return fmt.Errorf("invalid table name %q", table.Name)
		}
		for _, c := range table.Columns {
			if !common.ValidateIdentifier(c.Name) {
				return fmt.Errorf("invalid column name %s.%q", table.Name, c.Name)
			}
		}
	}

	for i := len(d.Tables) - 1; i >= 0; i-- {
		if err := t.DropTable(ctx, d.Tables[i].Name); err != nil {
			return err
		}
	}
	for _, table := range d.Tables {
		createSQL := t.buildCreateTable(d, table)
		if _, err := t.db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
		g.Log().Infof(ctx, "Table created: %s.%s", d.ID, table.Name)
	}
	return nil
}

// DropTable 删除表（不存在时忽略）
func (t *TableImporter) DropTable(ctx context.Context, tableName string) error {
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)
	if t.dialect == nl2sqlCommon.DialectPostgres {
		dropSQL += " CASCADE"
	}
	if _, err := t.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}

func (t *TableImporter) buildCreateTable(d *schema.DomainContext, table schema.Table) string {
	refs := make(map[string]string)
	for _, r := range d.Relations {
		if r.Type != "" && r.Type != nl2sqlCommon.RelationManyToOne {
			continue
		}
		fromTable, fromCol, _ := strings.Cut(r.From, ".")
		if strings.EqualFold(fromTable, table.Name) {
			toTable, toCol, _ := strings.Cut(r.To, ".")
			refs[strings.ToLower(fromCol)] = fmt.Sprintf("%s(%s)", toTable, toCol)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", table.Name)
	for i, c := range table.Columns {
		fmt.Fprintf(&sb, "  %s %s", c.Name, t.columnDefinition(c))
		if ref, ok := refs[strings.ToLower(c.Name)]; ok {
			sb.WriteString(" REFERENCES " + ref)
		}
		if i < len(table.Columns)-1 {
			sb.WriteString(",\n")
		} else {
			sb.WriteString("\n")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// columnDefinition 自增主键按方言改写，其余类型原样使用
func (t *TableImporter) columnDefinition(c schema.Column) string {
	if baseType(c.Type) == "SERIAL" {
		switch t.dialect {
		case nl2sqlCommon.DialectSQLite:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		case nl2sqlCommon.DialectMySQL:
			return "INT AUTO_INCREMENT PRIMARY KEY"
		default:
			return "SERIAL PRIMARY KEY"
		}
	}
	def := c.Type
	if c.PrimaryKey {
		def += " PRIMARY KEY"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

// ImportDomain 先写入维表并读回主键，再逐行写入事实表
func (t *TableImporter) ImportDomain(ctx context.Context, d *schema.DomainContext, src *ParsedTable) (*ImportStats, error) {
	if d.Seed == nil {
		return nil, fmt.Errorf("domain %s has no seed definition", d.ID)
	}
	stats := &ImportStats{Dimensions: make(map[string]int), FactTable: d.Seed.Fact.Table}

	keys := make(map[string]map[string]int64, len(d.Seed.Dimensions))
	for _, dim := range d.Seed.Dimensions {
		values, err := distinctValues(src, dim)
		if err != nil {
			return nil, err
		}
		rows := make([][]interface{}, len(values))
		for i, v := range values {
			rows[i] = []interface{}{v}
		}
		if err := t.insertRows(ctx, dim.Table, []string{dim.Column}, rows); err != nil {
			return nil, err
		}
		ids, err := t.loadKeys(ctx, dim)
		if err != nil {
			return nil, err
		}
		keys[strings.ToLower(dim.Table)] = ids
		stats.Dimensions[dim.Table] = len(values)
	}

	fact, ok := d.Table(d.Seed.Fact.Table)
	if !ok {
		return nil, fmt.Errorf("fact table %s is not declared", d.Seed.Fact.Table)
	}
	type binding struct {
		col    schema.SeedColumn
		typ    string
		index  int
		exists bool
	}
	bindings := make([]binding, 0, len(d.Seed.Fact.Columns))
	columns := make([]string, 0, len(d.Seed.Fact.Columns))
	for _, c := range d.Seed.Fact.Columns {
		declared, _ := fact.Column(c.Column)
		idx, exists := src.Index(c.SourceName())
		if !exists {
			if c.Lookup != "" {
				return nil, fmt.Errorf("source column %s for %s.%s is missing", c.SourceName(), fact.Name, c.Column)
			}
			g.Log().Warningf(ctx, "Source column %s missing, %s.%s left empty", c.SourceName(), fact.Name, c.Column)
		}
		bindings = append(bindings, binding{col: c, typ: declared.Type, index: idx, exists: exists})
		columns = append(columns, c.Column)
	}

	rows := make([][]interface{}, 0, len(src.Rows))
	for _, srcRow := range src.Rows {
		row := make([]interface{}, len(bindings))
		for i, b := range bindings {
			raw := ""
			if b.exists {
				raw = srcRow[b.index]
			}
			switch {
			case b.col.Contains != "":
				row[i] = strings.Contains(raw, b.col.Contains)
			case b.col.Lookup != "":
				if id, ok := keys[strings.ToLower(b.col.Lookup)][extract(raw, b.col.Extract)]; ok {
					row[i] = id
				}
			default:
				row[i] = convertValue(raw, b.typ)
			}
		}
		rows = append(rows, row)
	}
	if err := t.insertRows(ctx, fact.Name, columns, rows); err != nil {
		return nil, err
	}
	stats.FactRows = len(rows)

	g.Log().Infof(ctx, "Domain %s imported: dimensions=%v %s=%d rows", d.ID, stats.Dimensions, fact.Name, stats.FactRows)
	return stats, nil
}

// distinctValues 收集维表取值，去重并排序
func distinctValues(src *ParsedTable, dim schema.SeedDimension) ([]string, error) {
	seen := make(map[string]struct{})
	for _, source := range dim.Sources {
		idx, ok := src.Index(source)
		if !ok {
			return nil, fmt.Errorf("source column %s for dimension %s is missing", source, dim.Table)
		}
		for _, row := range src.Rows {
			v := extract(row[idx], dim.Extract)
			if !isNullText(v) {
				seen[v] = struct{}{}
			}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func extract(raw, how string) string {
	raw = strings.TrimSpace(raw)
	if how == nl2sqlCommon.SeedExtractFirstWord {
		if fields := strings.Fields(raw); len(fields) > 0 {
			return fields[0]
		}
	}
	return raw
}

func (t *TableImporter) loadKeys(ctx context.Context, dim schema.SeedDimension) (map[string]int64, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s", dim.Key, dim.Column, dim.Table))
	if err != nil {
		return nil, fmt.Errorf("failed to read keys of %s: %w", dim.Table, err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// insertRows 分批写入，每批一条多值 INSERT
func (t *TableImporter) insertRows(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		g.Log().Warningf(ctx, "No rows to insert into %s", table)
		return nil
	}
	for i := 0; i < len(rows); i += importBatchSize {
		end := min(i+importBatchSize, len(rows))
		if err := t.insertBatch(ctx, table, columns, rows[i:end]); err != nil {
			return fmt.Errorf("failed to insert into %s at row %d: %w", table, i, err)
		}
		g.Log().Debugf(ctx, "Inserted rows %d-%d of %d into %s", i+1, end, len(rows), table)
	}
	return nil
}

func (t *TableImporter) insertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]interface{}, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, row[j])
			sb.WriteString(t.placeholder(len(args)))
		}
		sb.WriteString(")")
	}

	_, err := t.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (t *TableImporter) placeholder(n int) string {
	if t.dialect == nl2sqlCommon.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
