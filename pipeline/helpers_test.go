package pipeline

import (
	"math/rand"
	"strconv"
)

// bankruptcyTable builds n distinct rows over the {0, 0.5, 1} risk grid.
func bankruptcyTable(n int, seed int64) *Table {
	levels := []float64{0, 0.5, 1}
	order := rand.New(rand.NewSource(seed)).Perm(729)

	t := &Table{Columns: append([]string(nil), RequiredColumns...)}
	for _, code := range order[:n] {
		row := make([]string, 0, 7)
		sum := 0.0
		for j := 0; j < 6; j++ {
			v := levels[code%3]
			code /= 3
			if j >= 2 && j <= 4 {
				sum += v
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		label := "non-bankruptcy"
		if sum < 1.5 {
			label = "bankruptcy"
		}
		t.Rows = append(t.Rows, append(row, label))
	}
	return t
}
