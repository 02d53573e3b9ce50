package model

// FeatureRow is the computed output for one item. Every field is always
// computed; which ones are emitted is decided by the output schema.
type FeatureRow struct {
	Rating        float64
	Tier          Tier
	Length        float64
	BPM           float64
	NoteJumpSpeed float64

	NoteCount      int // bombs excluded
	BombCount      int
	DotCount       int
	ObstacleCount  int
	NotesPerSecond float64
	DotsPerNote    float64 // NaN when NoteCount is zero

	Entropy             float64
	EntropyNoDispersion float64
	EntropyDispersion   float64
}

// Outcome is the terminal result of one item, handed from a worker to the
// result sink. Exactly one of Row and Err is meaningful.
type Outcome struct {
	Index int
	Item  RatedItem
	Row   FeatureRow
	Err   *ItemError
}

// Failed reports whether the item produced no row.
func (o Outcome) Failed() bool { return o.Err != nil }
