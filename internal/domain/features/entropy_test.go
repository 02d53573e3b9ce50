package features

import (
	"math"
	"testing"

	"github.com/okian/beatfeat/internal/domain/model"
)

func TestAccumulatorEntropy(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want float64
	}{
		{name: "empty", keys: nil, want: 0},
		{name: "single key", keys: []string{"a", "a", "a", "a"}, want: 0},
		{name: "two equal keys", keys: []string{"a", "b"}, want: 1},
		{name: "uniform over four", keys: []string{"a", "b", "c", "d", "a", "b", "c", "d"}, want: 2},
		{name: "uniform over three", keys: []string{"x", "y", "z"}, want: math.Log2(3)},
		{name: "skewed", keys: []string{"a", "a", "a", "b"}, want: -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator[string](len(tt.keys))
			for _, k := range tt.keys {
				acc.Add(k)
			}
			if got := acc.Entropy(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Entropy() = %v, want %v", got, tt.want)
			}
			if acc.Total() != len(tt.keys) {
				t.Errorf("Total() = %d, want %d", acc.Total(), len(tt.keys))
			}
		})
	}
}

func TestNoteEntropiesKeys(t *testing.T) {
	// Four notes share one pattern but sit in four different cells.
	notes := []model.Note{
		{LineIndex: 0, LineLayer: 0, Type: model.NoteRed, CutDirection: model.CutUp},
		{LineIndex: 1, LineLayer: 0, Type: model.NoteRed, CutDirection: model.CutUp},
		{LineIndex: 0, LineLayer: 1, Type: model.NoteRed, CutDirection: model.CutUp},
		{LineIndex: 1, LineLayer: 1, Type: model.NoteRed, CutDirection: model.CutUp},
	}

	full, pattern, position := noteEntropies(notes)
	if math.Abs(full-2) > 1e-12 {
		t.Errorf("full entropy = %v, want 2", full)
	}
	if pattern != 0 {
		t.Errorf("pattern entropy = %v, want 0", pattern)
	}
	if math.Abs(position-2) > 1e-12 {
		t.Errorf("position entropy = %v, want 2", position)
	}

	full, pattern, position = noteEntropies(nil)
	if full != 0 || pattern != 0 || position != 0 {
		t.Errorf("empty difficulty should have zero entropies, got %v %v %v", full, pattern, position)
	}
}
