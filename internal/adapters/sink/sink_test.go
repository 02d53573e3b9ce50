package sink_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/beatfeat/internal/adapters/sink"
	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
	logging "github.com/okian/beatfeat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// memWriter records rows in memory. failAt makes the n-th row write fail.
type memWriter struct {
	mu      sync.Mutex
	header  []string
	rows    [][]any
	pending int
	flushes int
	failAt  int
}

func (w *memWriter) WriteHeader(cols []features.Column) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range cols {
		w.header = append(w.header, c.Name)
	}
	return nil
}

func (w *memWriter) WriteRow(values []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && len(w.rows)+1 == w.failAt {
		return errors.New("disk full")
	}
	w.rows = append(w.rows, values)
	w.pending++
	return nil
}

func (w *memWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = 0
	w.flushes++
	return nil
}

func (w *memWriter) Close() error { return nil }

func (w *memWriter) snapshot() (rows, pending, flushes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows), w.pending, w.flushes
}

func outcome(i int) model.Outcome {
	return model.Outcome{
		Index: i,
		Item:  model.RatedItem{Reference: fmt.Sprintf("map-%d", i), DifficultyLabel: "Hard", Rating: float64(i)},
		Row:   model.FeatureRow{Rating: float64(i), Tier: model.TierHard, NoteCount: i},
	}
}

func failed(i int) model.Outcome {
	o := outcome(i)
	o.Err = model.NewItemError(i, o.Item, fmt.Errorf("label %q: %w", "Brutal", model.ErrInvalidDifficulty))
	return o
}

func TestSinks(t *testing.T) {
	_ = logging.Init()
	schema := features.NewSchema(features.Config{})

	for _, kind := range []string{sink.KindDirect, sink.KindCollect} {
		Convey("Given a "+kind+" sink", t, func() {
			ctx := context.Background()
			w := &memWriter{}
			s, err := sink.New(kind, w, schema, sink.WithBuffer(4))
			So(err, ShouldBeNil)

			Convey("Deliver before Open is refused", func() {
				So(s.Deliver(ctx, outcome(0)), ShouldEqual, sink.ErrNotOpen)
			})

			Convey("When every expected outcome is delivered concurrently", func() {
				const n = 50
				So(s.Open(ctx, n, nil), ShouldBeNil)
				So(w.header, ShouldResemble, schema.Names())

				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						o := outcome(i)
						if i%10 == 0 {
							o = failed(i)
						}
						_ = s.Deliver(ctx, o)
					}(i)
				}
				wg.Wait()

				summary, err := s.Close(ctx)
				So(err, ShouldBeNil)

				Convey("Then each row is written once and flushed", func() {
					rows, pending, flushes := w.snapshot()
					So(rows, ShouldEqual, n-5)
					So(pending, ShouldEqual, 0)
					So(flushes, ShouldBeGreaterThanOrEqualTo, 1)
					So(summary.Expected, ShouldEqual, n)
					So(summary.Received, ShouldEqual, n)
					So(summary.Written, ShouldEqual, n-5)
				})

				Convey("Then failures are reported in input order", func() {
					So(summary.Failures, ShouldHaveLength, 5)
					for i, f := range summary.Failures {
						So(f.Index, ShouldEqual, i*10)
						So(f.Kind, ShouldEqual, model.KindInvalidDifficulty)
					}
				})

				Convey("Then later deliveries are refused", func() {
					So(s.Deliver(ctx, outcome(1)), ShouldEqual, sink.ErrClosed)
				})
			})

			Convey("When the same item is delivered twice", func() {
				So(s.Open(ctx, 2, nil), ShouldBeNil)
				So(s.Deliver(ctx, outcome(7)), ShouldBeNil)
				So(s.Deliver(ctx, outcome(7)), ShouldBeNil)
				summary, err := s.Close(ctx)
				So(err, ShouldBeNil)

				Convey("Then only one row is written", func() {
					rows, _, _ := w.snapshot()
					So(rows, ShouldEqual, 1)
					So(summary.Written, ShouldEqual, 1)
				})
			})

			Convey("When closed before all outcomes arrived", func() {
				So(s.Open(ctx, 10, nil), ShouldBeNil)
				for i := 0; i < 3; i++ {
					So(s.Deliver(ctx, outcome(i)), ShouldBeNil)
				}
				summary, err := s.Close(ctx)
				So(err, ShouldBeNil)

				Convey("Then the rows delivered so far are flushed", func() {
					rows, pending, _ := w.snapshot()
					So(rows, ShouldEqual, 3)
					So(pending, ShouldEqual, 0)
					So(summary.Received, ShouldEqual, 3)
					So(summary.Expected, ShouldEqual, 10)
				})
			})

			Convey("When a row write fails", func() {
				w.failAt = 2
				var (
					fatalMu sync.Mutex
					fatal   []error
				)
				onFatal := func(err error) {
					fatalMu.Lock()
					fatal = append(fatal, err)
					fatalMu.Unlock()
				}
				So(s.Open(ctx, 4, onFatal), ShouldBeNil)
				for i := 0; i < 4; i++ {
					_ = s.Deliver(ctx, outcome(i))
				}
				summary, err := s.Close(ctx)

				Convey("Then the run is told once and nothing is written after", func() {
					So(err, ShouldNotBeNil)
					fatalMu.Lock()
					So(fatal, ShouldHaveLength, 1)
					fatalMu.Unlock()
					rows, _, _ := w.snapshot()
					So(rows, ShouldEqual, 1)
					So(summary.Written, ShouldEqual, 1)
				})
			})
		})
	}
}

func TestDirectFlushesWhenComplete(t *testing.T) {
	_ = logging.Init()
	Convey("Given a direct sink expecting two outcomes", t, func() {
		ctx := context.Background()
		w := &memWriter{}
		s := sink.NewDirect(w, features.NewSchema(features.Config{}))
		So(s.Open(ctx, 2, nil), ShouldBeNil)

		Convey("When both are delivered", func() {
			So(s.Deliver(ctx, outcome(0)), ShouldBeNil)
			So(s.Deliver(ctx, outcome(1)), ShouldBeNil)

			Convey("Then the coordinator flushes without Close", func() {
				So(func() bool {
					deadline := time.Now().Add(time.Second)
					for time.Now().Before(deadline) {
						if _, pending, flushes := w.snapshot(); pending == 0 && flushes == 1 {
							return true
						}
						time.Sleep(5 * time.Millisecond)
					}
					return false
				}(), ShouldBeTrue)

				_, err := s.Close(ctx)
				So(err, ShouldBeNil)
				_, _, flushes := w.snapshot()
				So(flushes, ShouldEqual, 1)
			})
		})
	})
}

func TestUnknownKind(t *testing.T) {
	Convey("Given an unknown discipline", t, func() {
		_, err := sink.New("fanout", &memWriter{}, features.NewSchema(features.Config{}))
		So(errors.Is(err, sink.ErrUnknownKind), ShouldBeTrue)
	})
}
