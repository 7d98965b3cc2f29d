package driver

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/LeJamon/goEventQ/internal/event"
	"github.com/LeJamon/goEventQ/internal/pq"
)

func BenchmarkRun(b *testing.B) {
	events := randomEvents(5, 200_000, 2_000, 100)
	maxTime := event.MaxTime(events)
	windows, err := event.Partition(events, maxTime, 500)
	if err != nil {
		b.Fatal(err)
	}

	for _, kind := range pq.Kinds() {
		b.Run(string(kind), func(b *testing.B) {
			d, err := Build(Config{
				Queue:  pq.Options{Kind: kind, BucketWidth: 2e-3},
				Bulk:   true,
				Logger: zerolog.Nop(),
			}, maxTime)
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.Run(windows); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
