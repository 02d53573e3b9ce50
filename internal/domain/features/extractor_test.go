package features_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// hardDocument builds a 60s, 120bpm map with 10 notes (2 dots), 1 bomb and
// 3 obstacles on Standard/Hard.
func hardDocument() *model.Document {
	notes := make([]model.Note, 0, 11)
	for i := 0; i < 10; i++ {
		dir := model.CutDown
		if i < 2 {
			dir = model.CutAny
		}
		notes = append(notes, model.Note{
			Beat:         float64(i),
			LineIndex:    i % 4,
			LineLayer:    i % 3,
			Type:         model.NoteType(i % 2),
			CutDirection: dir,
		})
	}
	notes = append(notes, model.Note{Beat: 11, LineIndex: 1, LineLayer: 1, Type: model.NoteBomb, CutDirection: model.CutAny})

	return &model.Document{
		Length: 60,
		BPM:    120,
		Difficulties: map[model.Characteristic]map[model.Tier]*model.Difficulty{
			model.CharacteristicStandard: {
				model.TierHard: {
					NoteJumpSpeed: 16,
					Notes:         notes,
					Obstacles:     make([]model.Obstacle, 3),
				},
			},
		},
	}
}

func TestExtract(t *testing.T) {
	Convey("Given a Hard difficulty with 10 notes, 2 dots, 1 bomb and 3 obstacles", t, func() {
		doc := hardDocument()

		Convey("When extracting with every feature group", func() {
			row, err := features.Extract(doc, model.TierHard, 4.5, features.Config{EntropyFeatures: true, OneHotTier: true})

			Convey("Then the base features match", func() {
				So(err, ShouldBeNil)
				So(row.Rating, ShouldEqual, 4.5)
				So(row.NoteCount, ShouldEqual, 10)
				So(row.BombCount, ShouldEqual, 1)
				So(row.DotCount, ShouldEqual, 2)
				So(row.ObstacleCount, ShouldEqual, 3)
				So(row.Length, ShouldEqual, 60)
				So(row.BPM, ShouldEqual, 120)
				So(row.NoteJumpSpeed, ShouldEqual, 16)
				So(row.NotesPerSecond, ShouldAlmostEqual, 10.0/60.0, 1e-12)
				So(row.DotsPerNote, ShouldAlmostEqual, 0.2, 1e-12)
				So(row.Tier, ShouldEqual, model.TierHard)
			})

			Convey("And notes plus bombs cover every note in the difficulty", func() {
				So(row.NoteCount+row.BombCount, ShouldEqual, len(doc.Difficulties[model.CharacteristicStandard][model.TierHard].Notes))
			})

			Convey("And entropies are positive and bounded by log2 of the note count", func() {
				bound := math.Log2(11)
				So(row.Entropy, ShouldBeGreaterThan, 0)
				So(row.Entropy, ShouldBeLessThanOrEqualTo, bound+1e-12)
				So(row.EntropyNoDispersion, ShouldBeGreaterThan, 0)
				So(row.EntropyDispersion, ShouldBeGreaterThan, 0)
				So(row.Entropy, ShouldBeGreaterThanOrEqualTo, row.EntropyNoDispersion)
				So(row.Entropy, ShouldBeGreaterThanOrEqualTo, row.EntropyDispersion)
			})
		})

		Convey("When entropy features are disabled", func() {
			row, err := features.Extract(doc, model.TierHard, 4.5, features.Config{})

			Convey("Then entropy fields stay zero", func() {
				So(err, ShouldBeNil)
				So(row.Entropy, ShouldEqual, 0)
				So(row.EntropyNoDispersion, ShouldEqual, 0)
				So(row.EntropyDispersion, ShouldEqual, 0)
			})
		})

		Convey("When the requested tier is absent", func() {
			_, err := features.Extract(doc, model.TierExpertPlus, 1, features.Config{})

			Convey("Then a missing difficulty error is returned", func() {
				So(errors.Is(err, model.ErrMissingDifficulty), ShouldBeTrue)
			})
		})

		Convey("When the Standard characteristic is absent", func() {
			doc.Difficulties = map[model.Characteristic]map[model.Tier]*model.Difficulty{
				model.CharacteristicOneSaber: doc.Difficulties[model.CharacteristicStandard],
			}
			_, err := features.Extract(doc, model.TierHard, 1, features.Config{})

			Convey("Then a missing characteristic error is returned", func() {
				So(errors.Is(err, model.ErrMissingCharacteristic), ShouldBeTrue)
			})
		})
	})

	Convey("Given a difficulty that only contains bombs", t, func() {
		doc := &model.Document{
			Length: 30,
			BPM:    100,
			Difficulties: map[model.Characteristic]map[model.Tier]*model.Difficulty{
				model.CharacteristicStandard: {
					model.TierEasy: {Notes: []model.Note{
						{Type: model.NoteBomb, LineIndex: 0, LineLayer: 0},
						{Type: model.NoteBomb, LineIndex: 3, LineLayer: 2},
					}},
				},
			},
		}

		Convey("When extracting", func() {
			row, err := features.Extract(doc, model.TierEasy, 2, features.Config{EntropyFeatures: true})

			Convey("Then dots per note is NaN and no error is raised", func() {
				So(err, ShouldBeNil)
				So(row.NoteCount, ShouldEqual, 0)
				So(row.BombCount, ShouldEqual, 2)
				So(math.IsNaN(row.DotsPerNote), ShouldBeTrue)
				So(row.NotesPerSecond, ShouldEqual, 0)
			})

			Convey("And bombs still count towards the entropy denominator", func() {
				So(row.EntropyDispersion, ShouldAlmostEqual, 1.0, 1e-12)
				So(row.EntropyNoDispersion, ShouldEqual, 0)
			})
		})
	})
}

func TestSchema(t *testing.T) {
	Convey("Given the four feature configurations", t, func() {
		Convey("When no optional group is enabled", func() {
			s := features.NewSchema(features.Config{})

			Convey("Then only the base columns are emitted", func() {
				So(s.Names(), ShouldResemble, []string{
					"rating", "length", "bpm", "note_jump_speed", "note_count",
					"bomb_count", "notes_per_second", "obstacle_count",
				})
			})
		})

		Convey("When every group is enabled", func() {
			s := features.NewSchema(features.Config{EntropyFeatures: true, OneHotTier: true})

			Convey("Then optional columns are placed in their fixed slots", func() {
				So(s.Names(), ShouldResemble, []string{
					"rating", "is_easy", "is_normal", "is_hard", "is_expert", "is_expert_plus",
					"length", "bpm", "note_jump_speed", "note_count", "bomb_count",
					"notes_per_second", "dots_per_note", "obstacle_count",
					"entropy", "entropy_no_dispersion", "entropy_dispersion",
				})
			})

			Convey("And exactly one tier indicator is set", func() {
				row, err := features.Extract(hardDocument(), model.TierHard, 4.5, features.Config{EntropyFeatures: true, OneHotTier: true})
				So(err, ShouldBeNil)
				vals := s.Values(row)
				So(vals[1:6], ShouldResemble, []any{0, 0, 1, 0, 0})
				So(vals[0], ShouldEqual, 4.5)
				So(vals[9], ShouldEqual, 10)
				So(len(vals), ShouldEqual, len(s.Columns()))
			})
		})

		Convey("When only one-hot tiers are enabled", func() {
			s := features.NewSchema(features.Config{OneHotTier: true})
			So(len(s.Names()), ShouldEqual, 13)
		})

		Convey("When only entropy features are enabled", func() {
			s := features.NewSchema(features.Config{EntropyFeatures: true})
			So(len(s.Names()), ShouldEqual, 12)
			So(s.Columns()[0].Kind, ShouldEqual, features.Real)
			So(s.Columns()[4].Kind, ShouldEqual, features.Integer)
		})
	})
}
