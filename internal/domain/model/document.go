package model

// Characteristic is the play-style category a difficulty set belongs to.
type Characteristic string

// Characteristics found in map archives. Only Standard is analyzed.
const (
	CharacteristicStandard  Characteristic = "Standard"
	CharacteristicOneSaber  Characteristic = "OneSaber"
	CharacteristicNoArrows  Characteristic = "NoArrows"
	CharacteristicLightshow Characteristic = "Lightshow"
	CharacteristicDegree90  Characteristic = "90Degree"
	CharacteristicDegree360 Characteristic = "360Degree"
	CharacteristicLawless   Characteristic = "Lawless"
)

// NoteType distinguishes the two saber colors from bombs.
type NoteType int

// Note types as encoded in difficulty files.
const (
	NoteRed  NoteType = 0
	NoteBlue NoteType = 1
	NoteBomb NoteType = 3
)

// CutDirection is the swing direction a note demands.
type CutDirection int

// Cut directions as encoded in difficulty files. CutAny is the dot note.
const (
	CutUp CutDirection = iota
	CutDown
	CutLeft
	CutRight
	CutUpLeft
	CutUpRight
	CutDownLeft
	CutDownRight
	CutAny
)

// Note is a single note or bomb.
type Note struct {
	Beat         float64
	LineIndex    int // horizontal lane, 0..3 left to right
	LineLayer    int // vertical layer, 0..2 bottom to top
	Type         NoteType
	CutDirection CutDirection
}

// IsBomb reports whether the note is a bomb.
func (n Note) IsBomb() bool { return n.Type == NoteBomb }

// IsDot reports whether the note is a non-bomb omni-directional note.
func (n Note) IsDot() bool { return !n.IsBomb() && n.CutDirection == CutAny }

// Obstacle is a wall.
type Obstacle struct {
	Beat      float64
	Duration  float64
	LineIndex int
	Width     int
}

// Difficulty holds the playable content of one (characteristic, tier) pair.
type Difficulty struct {
	NoteJumpSpeed float64
	Notes         []Note
	Obstacles     []Obstacle
}

// Document is a parsed map archive. Instances are owned by the task that
// fetched them and are never shared between items.
type Document struct {
	Length       float64 // seconds
	BPM          float64
	Difficulties map[Characteristic]map[Tier]*Difficulty
}

// Difficulty resolves the content for a characteristic and tier.
func (d *Document) Difficulty(c Characteristic, t Tier) (*Difficulty, error) {
	set, ok := d.Difficulties[c]
	if !ok {
		return nil, ErrMissingCharacteristic
	}
	diff, ok := set[t]
	if !ok || diff == nil {
		return nil, ErrMissingDifficulty
	}
	return diff, nil
}
