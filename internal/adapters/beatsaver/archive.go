package beatsaver

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/okian/beatfeat/internal/domain/model"
)

const infoFile = "info.dat"

type infoDat struct {
	BPM  float64 `json:"_beatsPerMinute"`
	Sets []struct {
		Characteristic string `json:"_beatmapCharacteristicName"`
		Beatmaps       []struct {
			Difficulty    string  `json:"_difficulty"`
			Filename      string  `json:"_beatmapFilename"`
			NoteJumpSpeed float64 `json:"_noteJumpMovementSpeed"`
		} `json:"_difficultyBeatmaps"`
	} `json:"_difficultyBeatmapSets"`
}

// difficultyDat accepts both the v2 (underscored) and v3 schemas.
type difficultyDat struct {
	V2Notes []struct {
		Time         float64 `json:"_time"`
		LineIndex    int     `json:"_lineIndex"`
		LineLayer    int     `json:"_lineLayer"`
		Type         int     `json:"_type"`
		CutDirection int     `json:"_cutDirection"`
	} `json:"_notes"`
	V2Obstacles []struct {
		Time      float64 `json:"_time"`
		Duration  float64 `json:"_duration"`
		LineIndex int     `json:"_lineIndex"`
		Width     int     `json:"_width"`
	} `json:"_obstacles"`

	ColorNotes []struct {
		Beat      float64 `json:"b"`
		X         int     `json:"x"`
		Y         int     `json:"y"`
		Color     int     `json:"c"`
		Direction int     `json:"d"`
	} `json:"colorNotes"`
	BombNotes []struct {
		Beat float64 `json:"b"`
		X    int     `json:"x"`
		Y    int     `json:"y"`
	} `json:"bombNotes"`
	Obstacles []struct {
		Beat     float64 `json:"b"`
		Duration float64 `json:"d"`
		X        int     `json:"x"`
		Width    int     `json:"w"`
	} `json:"obstacles"`
}

func (d *difficultyDat) toModel(njs float64) *model.Difficulty {
	out := &model.Difficulty{
		NoteJumpSpeed: njs,
		Notes:         make([]model.Note, 0, len(d.V2Notes)+len(d.ColorNotes)+len(d.BombNotes)),
		Obstacles:     make([]model.Obstacle, 0, len(d.V2Obstacles)+len(d.Obstacles)),
	}
	for _, n := range d.V2Notes {
		out.Notes = append(out.Notes, model.Note{
			Beat: n.Time, LineIndex: n.LineIndex, LineLayer: n.LineLayer,
			Type: model.NoteType(n.Type), CutDirection: model.CutDirection(n.CutDirection),
		})
	}
	for _, n := range d.ColorNotes {
		out.Notes = append(out.Notes, model.Note{
			Beat: n.Beat, LineIndex: n.X, LineLayer: n.Y,
			Type: model.NoteType(n.Color), CutDirection: model.CutDirection(n.Direction),
		})
	}
	// v3 bombs carry no direction; they use the dot marker like v2 bombs do.
	for _, n := range d.BombNotes {
		out.Notes = append(out.Notes, model.Note{
			Beat: n.Beat, LineIndex: n.X, LineLayer: n.Y,
			Type: model.NoteBomb, CutDirection: model.CutAny,
		})
	}
	for _, o := range d.V2Obstacles {
		out.Obstacles = append(out.Obstacles, model.Obstacle{Beat: o.Time, Duration: o.Duration, LineIndex: o.LineIndex, Width: o.Width})
	}
	for _, o := range d.Obstacles {
		out.Obstacles = append(out.Obstacles, model.Obstacle{Beat: o.Beat, Duration: o.Duration, LineIndex: o.X, Width: o.Width})
	}
	return out
}

// lastBeat returns the latest beat touched by a note or an obstacle's end.
func lastBeat(d *model.Difficulty) float64 {
	var last float64
	for _, n := range d.Notes {
		last = max(last, n.Beat)
	}
	for _, o := range d.Obstacles {
		last = max(last, o.Beat+o.Duration)
	}
	return last
}

// ParseArchive decodes a zipped map. Difficulties with labels outside the
// five known tiers are ignored. Length is derived from the latest beat over
// every difficulty.
func ParseArchive(data []byte) (*model.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[strings.ToLower(path.Base(f.Name))] = f
	}

	var info infoDat
	if err := decodeEntry(files, infoFile, &info); err != nil {
		return nil, err
	}
	if info.BPM <= 0 {
		return nil, fmt.Errorf("%s: beats per minute must be positive, got %v", infoFile, info.BPM)
	}

	doc := &model.Document{
		BPM:          info.BPM,
		Difficulties: make(map[model.Characteristic]map[model.Tier]*model.Difficulty, len(info.Sets)),
	}
	var last float64
	for _, set := range info.Sets {
		c := model.Characteristic(set.Characteristic)
		tiers := make(map[model.Tier]*model.Difficulty, len(set.Beatmaps))
		for _, bm := range set.Beatmaps {
			tier, err := model.ParseTier(bm.Difficulty)
			if err != nil {
				continue
			}
			var dat difficultyDat
			if err := decodeEntry(files, bm.Filename, &dat); err != nil {
				return nil, fmt.Errorf("%s %s: %w", c, tier, err)
			}
			diff := dat.toModel(bm.NoteJumpSpeed)
			last = max(last, lastBeat(diff))
			tiers[tier] = diff
		}
		doc.Difficulties[c] = tiers
	}
	doc.Length = last * 60 / info.BPM
	return doc, nil
}

func decodeEntry(files map[string]*zip.File, name string, v any) error {
	f, ok := files[strings.ToLower(path.Base(name))]
	if !ok {
		return fmt.Errorf("archive entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	// Some editors write a UTF-8 byte order mark.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
