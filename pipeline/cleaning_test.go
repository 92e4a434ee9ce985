package pipeline

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		missing []string
	}{
		{
			name:    "all required columns",
			columns: RequiredColumns,
		},
		{
			name:    "extra columns tolerated",
			columns: append([]string{"company_id"}, RequiredColumns...),
		},
		{
			name:    "missing class",
			columns: RequiredColumns[:6],
			missing: []string{"class"},
		},
		{
			name:    "unrelated dataset",
			columns: []string{"name", "score"},
			missing: RequiredColumns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&Table{Columns: tt.columns})
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if !reflect.DeepEqual(schemaErr.Missing, tt.missing) {
				t.Errorf("missing = %v, want %v", schemaErr.Missing, tt.missing)
			}
		})
	}
}

func TestValidateAcceptsEmptyTable(t *testing.T) {
	if err := Validate(&Table{Columns: RequiredColumns}); err != nil {
		t.Fatalf("schema-matching empty table should pass: %v", err)
	}
}

func TestDropDuplicates(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows: [][]string{
			{"1", "x"},
			{"2", "y"},
			{"1.0", "x"},
			{"2", "y"},
			{"3", "x"},
		},
	}

	cleaned, removed := DropDuplicates(table)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	want := [][]string{{"1", "x"}, {"2", "y"}, {"3", "x"}}
	if !reflect.DeepEqual(cleaned.Rows, want) {
		t.Fatalf("rows = %v, want %v", cleaned.Rows, want)
	}
	if len(table.Rows) != 5 {
		t.Fatalf("input table was modified")
	}

	again, removedAgain := DropDuplicates(cleaned)
	if removedAgain != 0 || !reflect.DeepEqual(again.Rows, cleaned.Rows) {
		t.Fatalf("DropDuplicates is not idempotent")
	}
}

func TestDataCleanerStats(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	table := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"1"}, {"2"}}}

	cleaner.Clean(table)
	cleaner.Clean(table)

	stats := cleaner.GetStats()
	if stats.TotalProcessed != 6 || stats.Passed != 4 || stats.Rejected != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Issues["duplicate_detection"] != 2 {
		t.Fatalf("expected 2 duplicate issues, got %v", stats.Issues)
	}
}
