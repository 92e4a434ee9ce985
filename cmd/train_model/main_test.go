package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValues(t *testing.T) {
	values, err := parseValues("1, 0.5,0,1,1 ,0")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 0, 1, 1, 0}, values)

	_, err = parseValues("1,high")
	assert.Error(t, err)
}
