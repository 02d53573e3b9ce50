package features

import (
	"github.com/okian/beatfeat/internal/domain/model"
)

// ColumnKind is the storage type of a column.
type ColumnKind int

// Column kinds.
const (
	Real ColumnKind = iota
	Integer
)

// Column is one named output field.
type Column struct {
	Name  string
	Kind  ColumnKind
	value func(model.FeatureRow) any
}

// Schema is the fixed, ordered column set of one run.
type Schema struct {
	columns []Column
}

func realColumn(name string, f func(model.FeatureRow) float64) Column {
	return Column{Name: name, Kind: Real, value: func(r model.FeatureRow) any { return f(r) }}
}

func intColumn(name string, f func(model.FeatureRow) int) Column {
	return Column{Name: name, Kind: Integer, value: func(r model.FeatureRow) any { return f(r) }}
}

func tierFlag(name string, t model.Tier) Column {
	return intColumn(name, func(r model.FeatureRow) int {
		if r.Tier == t {
			return 1
		}
		return 0
	})
}

// NewSchema builds the column set for cfg. The order is fixed for a given
// configuration and independent of how rows are produced.
func NewSchema(cfg Config) Schema {
	cols := []Column{
		realColumn("rating", func(r model.FeatureRow) float64 { return r.Rating }),
	}
	if cfg.OneHotTier {
		cols = append(cols,
			tierFlag("is_easy", model.TierEasy),
			tierFlag("is_normal", model.TierNormal),
			tierFlag("is_hard", model.TierHard),
			tierFlag("is_expert", model.TierExpert),
			tierFlag("is_expert_plus", model.TierExpertPlus),
		)
	}
	cols = append(cols,
		realColumn("length", func(r model.FeatureRow) float64 { return r.Length }),
		realColumn("bpm", func(r model.FeatureRow) float64 { return r.BPM }),
		realColumn("note_jump_speed", func(r model.FeatureRow) float64 { return r.NoteJumpSpeed }),
		intColumn("note_count", func(r model.FeatureRow) int { return r.NoteCount }),
		intColumn("bomb_count", func(r model.FeatureRow) int { return r.BombCount }),
		realColumn("notes_per_second", func(r model.FeatureRow) float64 { return r.NotesPerSecond }),
	)
	if cfg.EntropyFeatures {
		cols = append(cols, realColumn("dots_per_note", func(r model.FeatureRow) float64 { return r.DotsPerNote }))
	}
	cols = append(cols, intColumn("obstacle_count", func(r model.FeatureRow) int { return r.ObstacleCount }))
	if cfg.EntropyFeatures {
		cols = append(cols,
			realColumn("entropy", func(r model.FeatureRow) float64 { return r.Entropy }),
			realColumn("entropy_no_dispersion", func(r model.FeatureRow) float64 { return r.EntropyNoDispersion }),
			realColumn("entropy_dispersion", func(r model.FeatureRow) float64 { return r.EntropyDispersion }),
		)
	}
	return Schema{columns: cols}
}

// Columns returns a copy of the ordered columns.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the ordered column names.
func (s Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Values returns the row's values in column order. Real columns yield
// float64 and Integer columns yield int.
func (s Schema) Values(r model.FeatureRow) []any {
	vals := make([]any, len(s.columns))
	for i, c := range s.columns {
		vals[i] = c.value(r)
	}
	return vals
}
