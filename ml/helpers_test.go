package ml

import (
	"math/rand"
	"strconv"
)

var testHeader = []string{
	"industrial_risk", "management_risk", "financial_flexibility",
	"credibility", "competitiveness", "operating_risk", "class",
}

// bankruptcyRows builds n distinct rows over the {0, 0.5, 1} risk grid. A
// company is bankrupt when flexibility, credibility and competitiveness are
// low together.
func bankruptcyRows(n int, seed int64) [][]string {
	levels := []float64{0, 0.5, 1}
	combos := 1
	for range 6 {
		combos *= len(levels)
	}
	order := rand.New(rand.NewSource(seed)).Perm(combos)

	rows := make([][]string, 0, n)
	for _, code := range order[:n] {
		values := make([]float64, 6)
		c := code
		for j := range values {
			values[j] = levels[c%3]
			c /= 3
		}
		label := "non-bankruptcy"
		if values[2]+values[3]+values[4] < 1.5 {
			label = "bankruptcy"
		}
		row := make([]string, 0, 7)
		for _, v := range values {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		rows = append(rows, append(row, label))
	}
	return rows
}
