package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLane_SameKeyRunsSequentiallyInOrder(t *testing.T) {
	lane := New()
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lane.Run("s1", func() {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()
		time.Sleep(time.Millisecond) // keep submission order deterministic
	}
	wg.Wait()

	require.Len(t, order, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSessionLane_SameKeyNeverRunsConcurrently(t *testing.T) {
	lane := New()
	var inFlight int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lane.Run("shared", func() {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestSessionLane_DifferentKeysRunConcurrently(t *testing.T) {
	lane := New()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup

	for _, key := range []string{"a", "b"} {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			lane.Run(key, func() {
				started <- struct{}{}
				<-release
			})
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for both distinct-key lanes to start concurrently")
		}
	}
	close(release)
	wg.Wait()
}

func TestSessionLane_PanicInTaskDoesNotWedgeLane(t *testing.T) {
	lane := New()

	require.NotPanics(t, func() {
		lane.Run("s1", func() { panic("boom") })
	})

	ran := false
	lane.Run("s1", func() { ran = true })
	assert.True(t, ran)
}
