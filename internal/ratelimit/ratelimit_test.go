package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		key      string
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			key:      "test",
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			key:      "test",
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow(tt.key) {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)

	if !rl.Allow("alice") {
		t.Error("first request for alice should pass")
	}
	if rl.Allow("alice") {
		t.Error("second request for alice should be limited")
	}
	if !rl.Allow("bob") {
		t.Error("bob should have his own bucket")
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Drain the burst token, then Wait should succeed once the bucket refills.
	if !rl.Allow("test") {
		t.Fatal("burst token should be available")
	}
	if err := rl.Wait(ctx, "test"); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestKeyedRateLimiter_WaitCanceled(t *testing.T) {
	rl := New(0.001, 1)
	rl.Allow("test") // drain

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "test"); err == nil {
		t.Error("Wait() should fail when context expires before a token is available")
	}
}

func TestKeyedRateLimiter_ConcurrentSameKey(t *testing.T) {
	rl := New(1, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	passed := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if passed != 1 {
		t.Errorf("exactly one concurrent request should pass, got %d", passed)
	}
}
