package form

import (
	"sync"
	"time"
)

// debouncer coalesces calls per key. Every caller scheduled before the timer
// fires receives the result of the single run, which uses the most recently
// scheduled function.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	wg      *sync.WaitGroup
	pending map[string]*debounceCall
}

type debounceCall struct {
	gen     uint64
	timer   *time.Timer
	run     func() bool
	waiters []chan bool
}

func newDebouncer(delay time.Duration, wg *sync.WaitGroup) *debouncer {
	return &debouncer{delay: delay, wg: wg, pending: map[string]*debounceCall{}}
}

func (d *debouncer) schedule(key string, run func() bool) <-chan bool {
	ch := make(chan bool, 1)
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.pending[key]
	if c == nil {
		c = &debounceCall{}
		d.pending[key] = c
	} else if c.timer.Stop() {
		d.wg.Done()
	}
	c.gen++
	c.run = run
	c.waiters = append(c.waiters, ch)
	gen := c.gen
	d.wg.Add(1)
	c.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.fire(key, c, gen)
	})
	return ch
}

func (d *debouncer) fire(key string, c *debounceCall, gen uint64) {
	d.mu.Lock()
	if d.pending[key] != c || c.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	run, waiters := c.run, c.waiters
	d.mu.Unlock()

	ok := run()
	for _, w := range waiters {
		w <- ok
	}
}

// delayed is an error waiting to become visible at path. path follows the
// element when a field array reorders.
type delayed struct {
	timer *time.Timer
	path  string
	err   FieldError
}

func (f *Form) delayErrorLocked(path string, e FieldError) {
	if p, ok := f.fc.pending[path]; ok && p.err.equal(e) {
		return
	}
	f.cancelDelayedLocked(path)
	d := &delayed{path: path, err: e}
	f.fc.pending[path] = d
	f.wg.Add(1)
	d.timer = time.AfterFunc(f.fc.delayError, func() {
		defer f.wg.Done()
		f.mu.Lock()
		at := d.path
		if f.fc.pending[at] != d {
			f.mu.Unlock()
			return
		}
		delete(f.fc.pending, at)
		if cur, has := f.fc.errors[at]; has && cur.Persistent {
			f.mu.Unlock()
			return
		}
		f.fc.errors[at] = d.err
		f.fc.invalidateErrors()
		f.mu.Unlock()
		f.emit(Event{Kind: EventErrors, Path: at})
	})
}

func (f *Form) cancelDelayedLocked(path string) {
	d, ok := f.fc.pending[path]
	if !ok {
		return
	}
	delete(f.fc.pending, path)
	if d.timer.Stop() {
		f.wg.Done()
	}
}

// goAsync runs fn on a goroutine tracked by Wait.
func (f *Form) goAsync(fn func()) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
}
