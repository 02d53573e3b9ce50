package input_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/beatfeat/internal/adapters/input"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	items, err := input.Decode(strings.NewReader(`[
		{"download": "https://example.com/a.zip", "difficulty": "Hard", "rating": 4.5},
		{"download": " maps/b.zip ", "difficulty": "Medium", "rating": 0}
	]`))
	require.NoError(t, err)
	require.Equal(t, []model.RatedItem{
		{Reference: "https://example.com/a.zip", DifficultyLabel: "Hard", Rating: 4.5},
		{Reference: "maps/b.zip", DifficultyLabel: "Medium", Rating: 0},
	}, items)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"not an array":     `{"download": "a"}`,
		"missing download": `[{"difficulty": "Hard", "rating": 1}]`,
		"empty download":   `[{"download": "  ", "difficulty": "Hard", "rating": 1}]`,
		"missing rating":   `[{"download": "a", "difficulty": "Hard"}]`,
		"missing label":    `[{"download": "a", "rating": 1}]`,
		"unknown field":    `[{"download": "a", "difficulty": "Hard", "rating": 1, "x": 2}]`,
		"string rating":    `[{"download": "a", "difficulty": "Hard", "rating": "high"}]`,
		"trailing data":    `[] []`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := input.Decode(strings.NewReader(body))
			require.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestDecodeNamesIndex(t *testing.T) {
	_, err := input.Decode(strings.NewReader(`[
		{"download": "a", "difficulty": "Hard", "rating": 1},
		{"download": "", "difficulty": "Hard", "rating": 1}
	]`))
	require.ErrorContains(t, err, "item 1")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	items, err := input.Load(path)
	require.NoError(t, err)
	require.Empty(t, items)

	_, err = input.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, model.ErrInvalidInput)
}
