// Package features computes per-item feature rows from parsed map documents.
//
// Extraction is a pure function of its inputs: no I/O and no shared state,
// so it is safe to call from any number of workers concurrently.
package features

import (
	"fmt"

	"github.com/okian/beatfeat/internal/domain/model"
)

// Config enumerates the optional feature groups.
type Config struct {
	// EntropyFeatures adds dots_per_note and the three entropy columns.
	EntropyFeatures bool
	// OneHotTier adds one indicator column per difficulty tier.
	OneHotTier bool
}

// fullKey keys the full entropy distribution.
type fullKey struct {
	kind      model.NoteType
	direction model.CutDirection
	lane      int
	layer     int
}

// patternKey keys the distribution without position.
type patternKey struct {
	kind      model.NoteType
	direction model.CutDirection
}

// positionKey keys the positional distribution.
type positionKey struct {
	lane  int
	layer int
}

// Extract computes the feature row for the Standard difficulty at tier.
// It fails with model.ErrMissingCharacteristic or model.ErrMissingDifficulty
// when the document has no such content.
func Extract(doc *model.Document, tier model.Tier, rating float64, cfg Config) (model.FeatureRow, error) {
	diff, err := doc.Difficulty(model.CharacteristicStandard, tier)
	if err != nil {
		return model.FeatureRow{}, fmt.Errorf("extract %s: %w", tier, err)
	}

	row := model.FeatureRow{
		Rating:        rating,
		Tier:          tier,
		Length:        doc.Length,
		BPM:           doc.BPM,
		NoteJumpSpeed: diff.NoteJumpSpeed,
		ObstacleCount: len(diff.Obstacles),
	}

	for _, n := range diff.Notes {
		if n.IsBomb() {
			row.BombCount++
			continue
		}
		row.NoteCount++
		if n.CutDirection == model.CutAny {
			row.DotCount++
		}
	}

	// IEEE-754 division: zero notes gives NaN (0/0) or Inf, passed through as is.
	row.NotesPerSecond = float64(row.NoteCount) / doc.Length
	row.DotsPerNote = float64(row.DotCount) / float64(row.NoteCount)

	if cfg.EntropyFeatures {
		row.Entropy, row.EntropyNoDispersion, row.EntropyDispersion = noteEntropies(diff.Notes)
	}

	return row, nil
}

// noteEntropies returns the full, pattern-only and position-only entropies.
// Bombs are part of every distribution and of its denominator.
func noteEntropies(notes []model.Note) (full, pattern, position float64) {
	fa := NewAccumulator[fullKey](len(notes))
	pa := NewAccumulator[patternKey](len(notes))
	qa := NewAccumulator[positionKey](len(notes))

	for _, n := range notes {
		fa.Add(fullKey{kind: n.Type, direction: n.CutDirection, lane: n.LineIndex, layer: n.LineLayer})
		pa.Add(patternKey{kind: n.Type, direction: n.CutDirection})
		qa.Add(positionKey{lane: n.LineIndex, layer: n.LineLayer})
	}

	return fa.Entropy(), pa.Entropy(), qa.Entropy()
}
