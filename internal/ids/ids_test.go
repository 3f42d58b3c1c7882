package ids

import (
	"sync"
	"testing"
)

func TestNext_UniqueAcrossGoroutines(t *testing.T) {
	const workers, per = 8, 2000
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, k := range local {
				if _, dup := seen[k]; dup {
					t.Errorf("duplicate key %q", k)
				}
				seen[k] = struct{}{}
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("want %d keys, got %d", workers*per, len(seen))
	}
}

func TestGenerators_DoNotOverlap(t *testing.T) {
	a, b := New(), New()
	if a.prefix == b.prefix {
		t.Skip("random prefixes collided")
	}
	if a.Next() == b.Next() {
		t.Fatalf("independent generators produced the same key")
	}
}
