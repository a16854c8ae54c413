package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/xuri/excelize/v2"

	"github.com/Malowking/sqlgo/core/errors"
)

// FileParser CSV/Excel 源文件解析器
type FileParser struct{}

// NewFileParser 创建文件解析器
func NewFileParser() *FileParser {
	return &FileParser{}
}

// ParsedTable 解析后的源数据，表头已规范化，每行与表头等长
type ParsedTable struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Index 返回列在表头中的位置
func (t *ParsedTable) Index(header string) (int, bool) {
	for i, h := range t.Headers {
		if h == header {
			return i, true
		}
	}
	return -1, false
}

// ParseFile 解析CSV或Excel文件
func (p *FileParser) ParseFile(ctx context.Context, filePath string) (*ParsedTable, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".csv":
		return p.parseCSV(ctx, filePath)
	case ".xlsx", ".xls":
		return p.parseExcel(ctx, filePath)
	default:
		return nil, errors.Newf(errors.ErrFileReadFailed, "unsupported file type: %s", ext)
	}
}

func (p *FileParser) parseCSV(ctx context.Context, filePath string) (*ParsedTable, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, err, "failed to open CSV file")
	}
	defer file.Close()

	return p.ReadCSV(ctx, sanitizeTableName(filepath.Base(filePath)), file)
}

// ReadCSV 从 reader 读取 CSV，首行为表头
func (p *FileParser) ReadCSV(ctx context.Context, name string, r io.Reader) (*ParsedTable, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, err, "failed to read CSV headers")
	}

	var rows [][]string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			g.Log().Warningf(ctx, "Skip CSV line %d of %s: %v", line, name, err)
			continue
		}
		rows = append(rows, row)
	}

	t := newParsedTable(name, headers, rows)
	g.Log().Infof(ctx, "CSV parsed: %s (%d columns, %d rows)", name, len(t.Headers), len(t.Rows))
	return t, nil
}

func (p *FileParser) parseExcel(ctx context.Context, filePath string) (*ParsedTable, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, err, "failed to open Excel file")
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New(errors.ErrFileReadFailed, "no sheets found in Excel file")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, err, "failed to read Excel rows")
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrFileReadFailed, "Excel file is empty")
	}

	t := newParsedTable(sanitizeTableName(filepath.Base(filePath)), rows[0], rows[1:])
	g.Log().Infof(ctx, "Excel parsed: %s sheet %s (%d columns, %d rows)", t.Name, sheetName, len(t.Headers), len(t.Rows))
	return t, nil
}

// newParsedTable 规范化表头，把每行补齐或截断到表头长度
func newParsedTable(name string, headers []string, rows [][]string) *ParsedTable {
	t := &ParsedTable{Name: name, Headers: make([]string, len(headers)), Rows: make([][]string, 0, len(rows))}
	for i, h := range headers {
		t.Headers[i] = sanitizeColumnName(h)
		if t.Headers[i] == "" {
			t.Headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	for _, row := range rows {
		fixed := make([]string, len(headers))
		copy(fixed, row)
		t.Rows = append(t.Rows, fixed)
	}
	return t
}

func isNullText(val string) bool {
	switch val {
	case "", "NULL", "null", "NaN", "nan", "N/A":
		return true
	}
	return false
}

// baseType 去掉长度与精度，如 DECIMAL(5,2) -> DECIMAL
func baseType(columnType string) string {
	t := strings.ToUpper(strings.TrimSpace(columnType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// convertValue 按声明的列类型转换源值，无法转换的数值写 NULL
func convertValue(val string, columnType string) interface{} {
	val = strings.TrimSpace(val)
	if isNullText(val) {
		return nil
	}

	switch baseType(columnType) {
	case "INTEGER", "INT", "BIGINT", "SMALLINT":
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
		// 表格软件导出的整数常带 .0
		if f, err := strconv.ParseFloat(val, 64); err == nil && f == math.Trunc(f) {
			return int64(f)
		}
		return nil
	case "DECIMAL", "NUMERIC", "FLOAT", "REAL", "DOUBLE", "DOUBLE PRECISION":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		return f
	case "BOOLEAN", "BOOL":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil
		}
		return b
	default:
		return val
	}
}

// sanitizeColumnName 清理列名，确保符合数据库命名规范
func sanitizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	var builder strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			builder.WriteRune(r)
		} else if r == ' ' || r == '-' {
			builder.WriteRune('_')
		}
	}
	result := builder.String()

	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}
	result = strings.ToLower(result)

	if utf8.RuneCountInString(result) > 63 {
		result = string([]rune(result)[:63])
	}
	return result
}

// sanitizeTableName 由文件名生成名称
func sanitizeTableName(fileName string) string {
	name := sanitizeColumnName(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	if name == "" {
		return "source"
	}
	return name
}
