package dedupe_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/beatfeat/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []struct {
		name string
		opts []dedupe.Option
	}{
		{name: "bounded", opts: []dedupe.Option{dedupe.WithCapacity(100)}},
		{name: "unbounded", opts: nil},
	} {
		Convey("Given a new "+mode.name+" deduper", t, func() {
			d := dedupe.NewInMemoryDeduper(mode.opts...)

			Convey("Then it starts empty", func() {
				So(d.Size(), ShouldEqual, 0)
			})

			Convey("When recording a new id", func() {
				seen := d.SeenAndRecord(ctx, 7)

				Convey("Then it should return false and record the id", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})

				Convey("And recording it again reports it as seen", func() {
					So(d.SeenAndRecord(ctx, 7), ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})

				Convey("And unrecording allows it again", func() {
					d.Unrecord(ctx, 7)
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, 7), ShouldBeFalse)
				})
			})

			Convey("When ids fall outside the bitset", func() {
				So(d.SeenAndRecord(ctx, 1000), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, -1), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, 1000), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("When unrecording an unknown id", func() {
				d.Unrecord(ctx, 55)
				So(d.Size(), ShouldEqual, 0)
			})

			Convey("When many goroutines race on the same ids", func() {
				var fresh atomic.Int64
				var wg sync.WaitGroup
				for g := 0; g < 16; g++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for id := 0; id < 100; id++ {
							if !d.SeenAndRecord(ctx, id) {
								fresh.Add(1)
							}
						}
					}()
				}
				wg.Wait()

				Convey("Then every id is recorded exactly once", func() {
					So(fresh.Load(), ShouldEqual, 100)
					So(d.Size(), ShouldEqual, 100)
				})
			})
		})
	}
}
