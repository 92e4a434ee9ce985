package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// 支持的文件格式
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// IngestionConfig 数据摄取配置
type IngestionConfig struct {
	// DefaultCharset CSV 未指定编码时使用，空值表示 UTF-8
	DefaultCharset string `json:"default_charset"`
}

// IngestionStats 摄取统计
type IngestionStats struct {
	FilesLoaded   int64            `json:"files_loaded"`
	FilesFailed   int64            `json:"files_failed"`
	RowsLoaded    int64            `json:"rows_loaded"`
	LastIngestion time.Time        `json:"last_ingestion"`
	Formats       map[string]int64 `json:"formats"`
}

// DataIngester 把上传的文件解析成 Table
type DataIngester struct {
	config IngestionConfig
	logger *zap.Logger

	stats     IngestionStats
	statsLock sync.RWMutex
}

// NewDataIngester 创建数据摄取器
func NewDataIngester(config IngestionConfig, logger *zap.Logger) *DataIngester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataIngester{
		config: config,
		logger: logger,
		stats: IngestionStats{
			Formats: make(map[string]int64),
		},
	}
}

// DetectFormat 根据文件扩展名判断格式
func DetectFormat(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", &FormatError{Name: name, Err: errors.New("unsupported file type, expected .xlsx or .csv")}
	}
}

// Load 按扩展名解析文件。charset 只对 CSV 生效。
func (di *DataIngester) Load(name string, r io.Reader, charset string) (*Table, error) {
	format, err := DetectFormat(name)
	if err != nil {
		di.recordFailure()
		return nil, err
	}

	var table *Table
	switch format {
	case FormatXLSX:
		table, err = LoadXLSX(r)
	default:
		if charset == "" {
			charset = di.config.DefaultCharset
		}
		table, err = LoadCSV(r, charset)
	}
	if err != nil {
		di.recordFailure()
		di.logger.Warn("dataset parse failed", zap.String("file", name), zap.Error(err))
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			return nil, err
		}
		return nil, &FormatError{Name: name, Err: err}
	}

	di.statsLock.Lock()
	di.stats.FilesLoaded++
	di.stats.RowsLoaded += int64(len(table.Rows))
	di.stats.Formats[format]++
	di.stats.LastIngestion = time.Now()
	di.statsLock.Unlock()

	rows, cols := table.Shape()
	di.logger.Info("dataset loaded",
		zap.String("file", name),
		zap.String("format", format),
		zap.Int("rows", rows),
		zap.Int("cols", cols))
	return table, nil
}

func (di *DataIngester) recordFailure() {
	di.statsLock.Lock()
	di.stats.FilesFailed++
	di.statsLock.Unlock()
}

// GetStats 获取统计信息
func (di *DataIngester) GetStats() IngestionStats {
	di.statsLock.RLock()
	defer di.statsLock.RUnlock()

	stats := di.stats
	stats.Formats = make(map[string]int64, len(di.stats.Formats))
	for k, v := range di.stats.Formats {
		stats.Formats[k] = v
	}
	return stats
}

// LoadXLSX 读取第一个工作表，首行为表头。读取原始值，忽略单元格的数字格式。
func LoadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return tableFromRecords(rows, true)
}

// LoadCSV 读取 CSV。charset 为空时按 UTF-8 解码并识别 BOM，否则使用 WHATWG 编码名。
func LoadCSV(r io.Reader, charset string) (*Table, error) {
	var decoder transform.Transformer = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
		}
		decoder = unicode.BOMOverride(enc.NewDecoder())
	}

	reader := csv.NewReader(transform.NewReader(r, decoder))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return tableFromRecords(records, false)
}

// tableFromRecords 首行为表头，短行补空，全空行在 skipBlank 时跳过
func tableFromRecords(records [][]string, skipBlank bool) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	header := records[0]
	table := &Table{
		Columns: append([]string(nil), header...),
		Rows:    make([][]string, 0, len(records)-1),
	}
	for i, rec := range records[1:] {
		if skipBlank && isBlank(rec) {
			continue
		}
		if len(rec) > len(header) {
			if !isBlank(rec[len(header):]) {
				return nil, fmt.Errorf("row %d has %d cells but the header has %d", i+2, len(rec), len(header))
			}
			rec = rec[:len(header)]
		}
		row := make([]string, len(header))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// EncodeXLSX 把表格写成单工作表的 xlsx
func EncodeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	write := func(rowNum int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := write(1, t.Columns); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if err := write(i+2, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
