package ingestion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounters_ConcurrentIncrementsAreNotLost(t *testing.T) {
	counters := NewCounters()

	const (
		goroutines = 20
		increments = 500
	)

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < increments; j++ {
				counters.IncReceived()
				counters.IncUniqueProcessed()
				counters.IncDuplicateDropped()
				counters.AddLatency(time.Millisecond)
			}
		}()
	}

	wg.Wait()

	want := int64(goroutines * increments)
	assert.Equal(t, want, counters.Received())
	assert.Equal(t, want, counters.UniqueProcessed())
	assert.Equal(t, want, counters.DuplicateDropped())
	assert.Equal(t, time.Duration(want)*time.Millisecond, counters.TotalLatency())
}

func TestCounters_ZeroValue(t *testing.T) {
	counters := NewCounters()

	assert.Zero(t, counters.Received())
	assert.Zero(t, counters.UniqueProcessed())
	assert.Zero(t, counters.DuplicateDropped())
	assert.Zero(t, counters.TotalLatency())
}
