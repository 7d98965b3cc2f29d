package pq

import (
	"math"
	"math/rand"
	"sort"
)

// val is a bare key used as a queue item in tests.
type val float64

func (v val) Key() float64 { return float64(v) }

func randomKeys(seed int64, n int, maxKey float64) []val {
	rng := rand.New(rand.NewSource(seed))
	out := make([]val, n)
	for i := range out {
		out[i] = val(rng.Float64() * maxKey)
	}
	return out
}

func sortedCopy(in []val) []val {
	out := append([]val(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func bucketOf(v val, width float64) int {
	return int(math.Floor(float64(v) / width))
}

// drain pops q until it reports empty.
func drain[T Item](q Queue[T]) ([]T, error) {
	var out []T
	for {
		item, ok, err := q.Pop()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}
