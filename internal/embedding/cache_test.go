package embedding

import (
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestEmbeddingCache_GetRefreshesRecency(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts b, the least recently used
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after being read")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestEmbeddingCache_ZeroCapacity(t *testing.T) {
	c := NewEmbeddingCache(0)
	c.Set("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("zero-capacity cache should keep nothing")
	}
}

func TestEmbeddingCache_Concurrent(t *testing.T) {
	c := NewEmbeddingCache(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := CacheKey("m", 4, string(rune('a'+(i+j)%26)))
				c.Set(key, []float32{float32(j)})
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len=%d exceeds capacity", c.Len())
	}
}

func TestCacheKey(t *testing.T) {
	if CacheKey("m1", 4, "hello") == CacheKey("m2", 4, "hello") {
		t.Error("keys should differ by model")
	}
	if CacheKey("m", 4, "hello") == CacheKey("m", 8, "hello") {
		t.Error("keys should differ by dimensions")
	}
	if CacheKey("m", 4, "ab") != CacheKey("m", 4, "ab") {
		t.Error("keys should be deterministic")
	}
	if len(CacheKey("m", 4, "x")) != 64 {
		t.Errorf("expected hex sha256 key, got %q", CacheKey("m", 4, "x"))
	}
}
