package webbt

import (
	"sync"
	"testing"
)

func TestCachePutGetRemove(t *testing.T) {
	cache := newPeripheralCache()
	p := newMockPeripheral("dev-1", "One", nil)

	if _, ok := cache.get("dev-1"); ok {
		t.Fatal("empty cache should miss")
	}
	cache.put(p)
	got, ok := cache.get("dev-1")
	if !ok || got.ID() != "dev-1" {
		t.Fatalf("get after put = (%v, %v)", got, ok)
	}
	if !cache.remove("dev-1") {
		t.Error("remove of present entry should report true")
	}
	if cache.remove("dev-1") {
		t.Error("second remove should report false")
	}
}

func TestCacheListSorted(t *testing.T) {
	cache := newPeripheralCache()
	cache.put(newMockPeripheral("b", "B", nil))
	cache.put(newMockPeripheral("a", "A", nil))
	cache.put(newMockPeripheral("c", "C", nil))

	list := cache.list()
	if len(list) != 3 {
		t.Fatalf("list() returned %d entries, want 3", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].ID() != want {
			t.Errorf("list()[%d].ID() = %q, want %q", i, list[i].ID(), want)
		}
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := newPeripheralCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.put(newMockPeripheral("shared", "S", nil))
				cache.get("shared")
				cache.list()
			}
		}()
	}
	wg.Wait()
	if _, ok := cache.get("shared"); !ok {
		t.Error("entry should survive concurrent writers")
	}
}
