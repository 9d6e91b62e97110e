package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeWorkersChunks(t *testing.T) {
	var mu sync.Mutex
	var ranges [][2]int
	ParallelizeWorkers(10, 3, func(start, end int) {
		mu.Lock()
		ranges = append(ranges, [2]int{start, end})
		mu.Unlock()
	})
	assert.Len(t, ranges, 3)

	total := 0
	for _, r := range ranges {
		total += r[1] - r[0]
	}
	assert.Equal(t, 10, total)
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, 1, calls)

	ParallelizeWithThreshold(0, 10, func(start, end int) { t.Fatal("should not be called") })
}
