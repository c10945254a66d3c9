package parallel

import (
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllWork(t *testing.T) {
	pool := Start(4)
	var count int64
	for i := 0; i < 50; i++ {
		pool.Do(func() {
			atomic.AddInt64(&count, 1)
		})
	}
	pool.Wait(true)
	if count != 50 {
		t.Fatalf("expected 50 completions, got %d", count)
	}
}

func TestPoolInlineWhenSingleWorker(t *testing.T) {
	pool := Start(1)
	ran := false
	pool.Do(func() { ran = true })
	if !ran {
		t.Fatalf("expected inline execution to run synchronously")
	}
}
