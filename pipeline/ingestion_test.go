package pipeline

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func TestLoadCSV(t *testing.T) {
	input := "\ufeffindustrial_risk,class\n0.5,bankruptcy\n1,non-bankruptcy\n"
	table, err := LoadCSV(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{"industrial_risk", "class"}) {
		t.Fatalf("BOM not stripped from header: %q", table.Columns)
	}
	if rows, cols := table.Shape(); rows != 2 || cols != 2 {
		t.Fatalf("shape = %dx%d, want 2x2", rows, cols)
	}
}

func TestLoadCSVCharset(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("name,class\ncafé,bankruptcy\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	table, err := LoadCSV(strings.NewReader(encoded), "windows-1252")
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if table.Rows[0][0] != "café" {
		t.Fatalf("decoded cell = %q", table.Rows[0][0])
	}

	if _, err := LoadCSV(strings.NewReader(encoded), "no-such-charset"); err == nil {
		t.Fatalf("expected error for unknown charset")
	}
}

func TestLoadXLSXRoundTrip(t *testing.T) {
	want := bankruptcyTable(30, 5)
	payload, err := EncodeXLSX(want)
	if err != nil {
		t.Fatalf("EncodeXLSX() error = %v", err)
	}

	got, err := LoadXLSX(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("LoadXLSX() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got.Rows[:2], want.Rows[:2])
	}
}

func TestLoadXLSXIgnoresNumberFormat(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"industrial_risk", "class"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := f.SetCellValue(sheet, "A2", 0.5); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	if err := f.SetCellValue(sheet, "B2", "bankruptcy"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		t.Fatalf("NewStyle() error = %v", err)
	}
	if err := f.SetCellStyle(sheet, "A2", "A2", percent); err != nil {
		t.Fatalf("SetCellStyle() error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	table, err := LoadXLSX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("LoadXLSX() error = %v", err)
	}
	if got := table.Rows[0][0]; got != "0.5" {
		t.Fatalf("percent formatted cell = %q, want raw value 0.5", got)
	}
}

func TestRaggedRowsArePadded(t *testing.T) {
	table, err := tableFromRecords([][]string{{"a", "b", "c"}, {"1"}, {}, {"2", "3", "4", ""}}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"1", "", ""}, {"2", "3", "4"}}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Fatalf("rows = %q, want %q", table.Rows, want)
	}

	if _, err := tableFromRecords([][]string{{"a"}, {"1", "extra"}}, false); err == nil {
		t.Fatalf("expected error for a row wider than the header")
	}
}

func TestDataIngesterLoad(t *testing.T) {
	di := NewDataIngester(IngestionConfig{}, nil)

	if _, err := di.Load("data.csv", strings.NewReader("a,b\n1,2\n"), ""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err := di.Load("data.json", strings.NewReader("{}"), "")
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	_, err = di.Load("broken.xlsx", strings.NewReader("not a zip"), "")
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError for a corrupt workbook, got %v", err)
	}

	stats := di.GetStats()
	if stats.FilesLoaded != 1 || stats.FilesFailed != 2 || stats.RowsLoaded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Formats[FormatCSV] != 1 {
		t.Fatalf("unexpected format counts: %v", stats.Formats)
	}
}
