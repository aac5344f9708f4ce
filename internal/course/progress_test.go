package course

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeight_Value(t *testing.T) {
	tests := []struct {
		name string
		w    Weight
		want float64
	}{
		{"positive", 2.5, 2.5},
		{"zero counts as one", 0, 1},
		{"negative counts as one", -3, 1},
		{"nan counts as one", Weight(math.NaN()), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.Value())
		})
	}
}

func TestScore_NegativeWeightStaysInRange(t *testing.T) {
	score := Score([]Interaction{
		{ID: "a", Weight: -2, Result: ResultCorrect},
		{ID: "b", Weight: 1, Result: ResultIncorrect},
	})
	assert.Equal(t, 50, score)
}
