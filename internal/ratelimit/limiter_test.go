package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledWhenRateNonPositive(t *testing.T) {
	l := New(0)
	start := time.Now()
	l.Apply()
	l.Apply()
	require.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestAppliesSleepWhenOverRate(t *testing.T) {
	l := New(2)
	var slept []time.Duration
	var mu sync.Mutex
	l.sleepFunc = func(d time.Duration) {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
	}
	l.randFunc = func() float64 { return 0 } // deterministic jitter for the test
	fixedNow := time.Now()
	l.nowFunc = func() time.Time { return fixedNow }

	l.Apply()
	l.Apply()
	l.Apply() // third call within the same instant exceeds rate=2

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, slept)
}

func TestConcurrentCallsDoNotRace(t *testing.T) {
	l := New(5)
	l.sleepFunc = func(time.Duration) {} // keep the test fast
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Apply()
		}()
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.timestamps, 20)
	require.GreaterOrEqual(t, l.waiters, 0)
}
