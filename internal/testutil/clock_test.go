package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStepClock_StartsAtStart(t *testing.T) {
	clock := NewStepClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Peek())
	assert.Equal(t, epoch, clock.Now())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(epoch, 250*time.Millisecond)

	start := clock.Now()
	end := clock.Now()

	assert.Equal(t, 250*time.Millisecond, end.Sub(start))
	assert.Equal(t, epoch.Add(500*time.Millisecond), clock.Peek())
}

func TestStepClock_ConcurrentAccess(t *testing.T) {
	clock := NewStepClock(epoch, time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				clock.Now()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(1000*time.Millisecond), clock.Peek())
}
