package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func count(t *testing.T, n int, cfg Config) int64 {
	t.Helper()
	var counter int64
	err := ForErr(n, func(_ int) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return counter
}

func TestForErr(t *testing.T) {
	if got := count(t, 1000, DefaultConfig()); got != 1000 {
		t.Errorf("Expected 1000, got %d", got)
	}
}

func TestForErr_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}

	hits := make([]int32, 500)
	err := ForErr(len(hits), func(i int) error {
		atomic.AddInt32(&hits[i], 1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d visited %d times", i, h)
		}
	}
}

func TestForErr_Sequential(t *testing.T) {
	if got := count(t, 100, Config{Enabled: false}); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
}

func TestForErr_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()
	n := cfg.MinChunkSize - 1
	if got := count(t, n, cfg); got != int64(n) {
		t.Errorf("Expected %d, got %d", n, got)
	}
}

func TestForErr_ReturnsError(t *testing.T) {
	boom := errors.New("boom")
	for _, cfg := range []Config{Sequential(), {Enabled: true, NumWorkers: 4, MinChunkSize: 1}} {
		err := ForErr(64, func(i int) error {
			if i == 17 {
				return boom
			}
			return nil
		}, cfg)
		if !errors.Is(err, boom) {
			t.Errorf("cfg %+v: expected boom, got %v", cfg, err)
		}
	}
}

func TestForErr_SequentialStopsAtFirstError(t *testing.T) {
	var calls int
	err := ForErr(10, func(i int) error {
		calls++
		if i == 3 {
			return errors.New("stop")
		}
		return nil
	}, Sequential())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}
}

func TestForErr_Zero(t *testing.T) {
	if err := ForErr(0, func(int) error { return errors.New("unreachable") }, DefaultConfig()); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func BenchmarkForErr(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000
	work := func(sum *int64) func(int) error {
		return func(i int) error {
			atomic.AddInt64(sum, int64(i))
			return nil
		}
	}

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = ForErr(n, work(&sum), cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = ForErr(n, work(&sum), cfgSeq)
		}
	})
}
