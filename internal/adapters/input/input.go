// Package input loads the list of rated items a run works on.
package input

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/okian/beatfeat/internal/domain/model"
)

// Load reads the JSON item list at path.
func Load(path string) ([]model.RatedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode parses a JSON array of {download, difficulty, rating} objects.
// Difficulty labels are not checked here; an unknown label fails only its
// own item at dispatch.
func Decode(r io.Reader) ([]model.RatedItem, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var raw []struct {
		Download   *string  `json:"download"`
		Difficulty *string  `json:"difficulty"`
		Rating     *float64 `json:"rating"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode item list: %w", model.ErrInvalidInput, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after item list", model.ErrInvalidInput)
	}

	items := make([]model.RatedItem, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.Download == nil || strings.TrimSpace(*r.Download) == "":
			return nil, fmt.Errorf("%w: item %d: missing download", model.ErrInvalidInput, i)
		case r.Difficulty == nil:
			return nil, fmt.Errorf("%w: item %d: missing difficulty", model.ErrInvalidInput, i)
		case r.Rating == nil:
			return nil, fmt.Errorf("%w: item %d: missing rating", model.ErrInvalidInput, i)
		case math.IsNaN(*r.Rating) || math.IsInf(*r.Rating, 0):
			return nil, fmt.Errorf("%w: item %d: rating is not finite", model.ErrInvalidInput, i)
		}
		items = append(items, model.RatedItem{
			Reference:       strings.TrimSpace(*r.Download),
			DifficultyLabel: *r.Difficulty,
			Rating:          *r.Rating,
		})
	}
	return items, nil
}
