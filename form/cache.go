package form

import (
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/reoring/formskema/fieldpath"
)

// maxVerdictsPerPath bounds the fingerprints remembered for one path.
const maxVerdictsPerPath = 64

// verdict is the schema outcome for one (path, fingerprint). errs is keyed
// by absolute dot path and is nil when the value passed.
type verdict struct {
	errs map[string]FieldError
}

// validationCache remembers partial-validation verdicts. It has its own lock
// because lookups happen outside Form.mu while a run is computing.
type validationCache struct {
	mu      sync.Mutex
	entries map[string]map[string]verdict
	hits    int
	misses  int
}

func newValidationCache() *validationCache {
	return &validationCache{entries: map[string]map[string]verdict{}}
}

// fingerprint encodes v canonically. Map keys are sorted by the encoder, so
// equal values always produce equal fingerprints. Values that cannot be
// encoded are not cached.
func fingerprint(v any) (string, bool) {
	b, err := gojson.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (c *validationCache) get(path, fp string) (verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[path][fp]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *validationCache) put(path, fp string, v verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.entries[path]
	if m == nil || len(m) >= maxVerdictsPerPath {
		m = map[string]verdict{}
		c.entries[path] = m
	}
	m[fp] = v
}

// invalidate drops the entries of every path related to path: the path
// itself, its ancestors (their value contains it) and its descendants.
func (c *validationCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.entries {
		if fieldpath.Related(p, path) {
			delete(c.entries, p)
		}
	}
}

func (c *validationCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *validationCache) stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
