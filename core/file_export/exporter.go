package file_export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/xuri/excelize/v2"
)

// ExportFormat 导出文件格式
type ExportFormat string

const (
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "xlsx"
	FormatJSON  ExportFormat = "json"
)

// ContentType 返回格式对应的 MIME 类型
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// ExportRequest 导出请求，Rows 与 Columns 按位置对应
type ExportRequest struct {
	Format   ExportFormat
	Filename string // 不含扩展名
	Title    string // Excel 首行标题（可选）
	Columns  []string
	Rows     [][]interface{}
}

// ExportResult 导出结果
type ExportResult struct {
	Filename    string
	ContentType string
	Content     []byte
	RowCount    int
}

// FileExporter 将调用方保留的结果集转换为文件内容
type FileExporter struct{}

// NewFileExporter 创建文件导出器
func NewFileExporter() *FileExporter {
	return &FileExporter{}
}

// Export 导出数据
func (e *FileExporter) Export(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid export request: %w", err)
	}

	var (
		buf bytes.Buffer
		err error
	)
	switch req.Format {
	case FormatCSV:
		err = exportCSV(&buf, req)
	case FormatExcel:
		err = exportExcel(&buf, req)
	case FormatJSON:
		err = exportJSON(&buf, req)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", req.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	filename := req.Filename
	if filename == "" {
		filename = "result"
	}
	result := &ExportResult{
		Filename:    filename + "." + string(req.Format),
		ContentType: req.Format.ContentType(),
		Content:     buf.Bytes(),
		RowCount:    len(req.Rows),
	}
	g.Log().Infof(ctx, "Export completed: %s, size: %d bytes, rows: %d", result.Filename, len(result.Content), result.RowCount)
	return result, nil
}

func validateRequest(req *ExportRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if len(req.Columns) == 0 {
		return fmt.Errorf("columns cannot be empty")
	}
	for i, row := range req.Rows {
		if len(row) != len(req.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(req.Columns))
		}
	}
	if strings.ContainsAny(req.Filename, `/\`) {
		return fmt.Errorf("filename must not contain path separators")
	}
	return nil
}

func formatCell(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// exportCSV 写入 UTF-8 BOM 以兼容 Excel
func exportCSV(buf *bytes.Buffer, req *ExportRequest) error {
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	writer := csv.NewWriter(buf)

	if err := writer.Write(req.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(req.Columns))
	for _, row := range req.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportExcel(buf *bytes.Buffer, req *ExportRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	rowIndex := 1
	if req.Title != "" {
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowIndex), req.Title)
		titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowIndex), fmt.Sprintf("A%d", rowIndex), titleStyle)
		rowIndex++
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	for i, col := range req.Columns {
		cell := fmt.Sprintf("%s%d", columnIndexToName(i), rowIndex)
		_ = f.SetCellValue(sheetName, cell, col)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	rowIndex++

	for _, row := range req.Rows {
		for i, v := range row {
			if err := f.SetCellValue(sheetName, fmt.Sprintf("%s%d", columnIndexToName(i), rowIndex), v); err != nil {
				return fmt.Errorf("failed to set cell: %w", err)
			}
		}
		rowIndex++
	}

	for i := range req.Columns {
		colName := columnIndexToName(i)
		_ = f.SetColWidth(sheetName, colName, colName, 15)
	}

	return f.Write(buf)
}

func exportJSON(buf *bytes.Buffer, req *ExportRequest) error {
	records := make([]map[string]interface{}, 0, len(req.Rows))
	for _, row := range req.Rows {
		rec := make(map[string]interface{}, len(row))
		for i, v := range row {
			rec[req.Columns[i]] = v
		}
		records = append(records, rec)
	}
	data, err := sonic.ConfigStd.MarshalIndent(map[string]interface{}{
		"columns": req.Columns,
		"data":    records,
		"count":   len(records),
	}, "", "  ")
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// columnIndexToName 0 -> A, 25 -> Z, 26 -> AA
func columnIndexToName(index int) string {
	name := ""
	for index >= 0 {
		name = string(rune('A'+index%26)) + name
		index = index/26 - 1
	}
	return name
}
