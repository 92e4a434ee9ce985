package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// Split holds disjoint row indices covering the whole dataset.
type Split struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// TrainTestSplit shuffles n row indices with a seeded source and assigns the
// first ceil(testRatio*n) of them to the test set. The same seed always yields
// the same partition.
func TrainTestSplit(n int, testRatio float64, seed int64) (Split, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio)
	}
	nTest := int(math.Ceil(testRatio * float64(n)))
	if n < 2 || nTest >= n {
		return Split{}, fmt.Errorf("cannot split %d rows with test ratio %v", n, testRatio)
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)
	return Split{
		Train: indices[nTest:],
		Test:  indices[:nTest],
	}, nil
}

// Take selects rows of X and y by index.
func Take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}
