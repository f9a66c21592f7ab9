package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	tests := []struct {
		name  string
		clock *DeterministicClock
		first int64
	}{
		{"zero", NewDeterministicClock(), 1},
		{"offset", NewDeterministicClockAt(100), 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.clock
			assert.Equal(t, tt.first, c.Next())
			assert.Equal(t, tt.first+1, c.Next())
			assert.Equal(t, tt.first+1, c.Current())
			assert.Equal(t, int64(2), c.Issued())

			c.Reset()
			assert.Equal(t, int64(0), c.Issued())
			assert.Equal(t, tt.first, c.Next(), "reset replays the same sequence")
		})
	}
}

func TestDeterministicClock_Concurrent(t *testing.T) {
	c := NewDeterministicClock()
	const goroutines, calls = 20, 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*calls), c.Current())
	assert.Equal(t, int64(goroutines*calls), c.Issued())
}
