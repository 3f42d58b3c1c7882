package form

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/i18n"
	"github.com/reoring/formskema/internal/clone"
	"github.com/reoring/formskema/internal/ids"
)

// Batch passed to Append, Prepend or Insert inserts each element as its own
// item.
type Batch []any

// ArrayRules constrain a field array. Zero lengths mean no limit.
type ArrayRules struct {
	MinLength int
	MaxLength int
	// Validate runs on the whole array when the array path is validated.
	Validate func(ctx context.Context, values []any) (string, error)
}

func (r ArrayRules) validators() []namedValidator {
	var out []namedValidator
	if r.MinLength > 0 {
		lo := r.MinLength
		out = append(out, namedValidator{name: TypeMinLength, fn: func(_ context.Context, v any) (string, error) {
			if s, _ := v.([]any); len(s) < lo {
				return i18n.T("too_short", map[string]string{"min": strconv.Itoa(lo)}), nil
			}
			return "", nil
		}})
	}
	if r.MaxLength > 0 {
		hi := r.MaxLength
		out = append(out, namedValidator{name: TypeMaxLength, fn: func(_ context.Context, v any) (string, error) {
			if s, _ := v.([]any); len(s) > hi {
				return i18n.T("too_long", map[string]string{"max": strconv.Itoa(hi)}), nil
			}
			return "", nil
		}})
	}
	if r.Validate != nil {
		fn := r.Validate
		out = append(out, namedValidator{name: TypeValidate, fn: func(ctx context.Context, v any) (string, error) {
			s, _ := v.([]any)
			return fn(ctx, s)
		}})
	}
	return out
}

// Item identifies one element of a field array. Its key never changes while
// the element stays in the array, whatever its position.
type Item struct {
	Key string
}

// FieldArray manages the array at one path. Each element has a stable key,
// and an index cache maps keys to positions; every operation updates the
// cache incrementally, except Replace which discards all identities.
//
// Mutating operations return false and leave the form untouched when they
// are rejected by a length rule, an index is out of range, or the input is
// unusable.
type FieldArray struct {
	f     *Form
	path  string
	items []Item
	index map[string]int
	rules ArrayRules
	keys  *ids.Generator
	// live is false for the no-op array returned for unusable paths.
	live bool
}

// Fields returns the field array at path, creating it on first use. Rules
// given on a later call replace the previous ones. When path holds a value
// that is not an array, a warning is logged and an inert array is returned.
func (f *Form) Fields(path string, rules ...ArrayRules) *FieldArray {
	if !f.checkPath("Fields", path) {
		return &FieldArray{f: f, path: path, index: map[string]int{}}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.fc.arrays[path]; ok {
		if len(rules) > 0 {
			a.rules = rules[0]
		}
		return a
	}
	raw, found := fieldpath.Get(f.fc.values, path)
	if _, isSlice := raw.([]any); found && raw != nil && !isSlice {
		f.log.Warn("fields called on a non-array value", "path", path)
		return &FieldArray{f: f, path: path, index: map[string]int{}}
	}
	a := &FieldArray{f: f, path: path, keys: ids.New(), live: true}
	if len(rules) > 0 {
		a.rules = rules[0]
	}
	a.rebuildLocked()
	f.fc.arrays[path] = a
	return a
}

func (a *FieldArray) sliceLocked() []any {
	raw, _ := fieldpath.Get(a.f.fc.values, a.path)
	s, _ := raw.([]any)
	return s
}

// rebuildLocked assigns fresh keys to every element.
func (a *FieldArray) rebuildLocked() {
	n := len(a.sliceLocked())
	a.items = make([]Item, n)
	a.index = make(map[string]int, n)
	for i := range a.items {
		k := a.keys.Next()
		a.items[i] = Item{Key: k}
		a.index[k] = i
	}
}

// reconcileLocked follows length changes made through SetValue below the
// array path, keeping the keys of surviving positions.
func (a *FieldArray) reconcileLocked() {
	n := len(a.sliceLocked())
	for len(a.items) > n {
		last := a.items[len(a.items)-1]
		delete(a.index, last.Key)
		a.items = a.items[:len(a.items)-1]
	}
	for len(a.items) < n {
		k := a.keys.Next()
		a.index[k] = len(a.items)
		a.items = append(a.items, Item{Key: k})
	}
}

// ArrayOption configures a single field-array operation.
type ArrayOption func(*arrayOpts)

type arrayOpts struct {
	focus      bool
	focusIndex int
	focusName  string
	noDirty    bool
	noValidate bool
}

// WithFocus requests focus on the first inserted element.
func WithFocus() ArrayOption { return func(o *arrayOpts) { o.focus = true } }

// FocusIndex requests focus on the i-th element of an inserted batch.
func FocusIndex(i int) ArrayOption {
	return func(o *arrayOpts) { o.focus, o.focusIndex = true, i }
}

// FocusName requests focus on a sub-field of the focused element.
func FocusName(name string) ArrayOption {
	return func(o *arrayOpts) { o.focus, o.focusName = true, name }
}

// WithoutDirty leaves the array's dirty flag alone.
func WithoutDirty() ArrayOption { return func(o *arrayOpts) { o.noDirty = true } }

// WithoutValidation skips the validation the operation would trigger.
func WithoutValidation() ArrayOption { return func(o *arrayOpts) { o.noValidate = true } }

func collect(opts []ArrayOption) arrayOpts {
	var o arrayOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// expand turns an insert argument into the values to insert.
func expand(v any) ([]any, bool) {
	if b, ok := v.(Batch); ok {
		if len(b) == 0 {
			return nil, false
		}
		out := make([]any, len(b))
		for i, x := range b {
			out[i] = clone.Value(x)
		}
		return out, true
	}
	return []any{clone.Value(v)}, true
}

// fitsMax reports whether growing to n elements respects MaxLength. An
// array that is already short of MinLength may still grow.
func (a *FieldArray) fitsMax(n int) bool {
	return a.rules.MaxLength <= 0 || n <= a.rules.MaxLength
}

// fitsMin reports whether shrinking to n elements respects MinLength. An
// array that is already above MaxLength may still shrink.
func (a *FieldArray) fitsMin(n int) bool {
	return a.rules.MinLength <= 0 || n >= a.rules.MinLength
}

// change is an accepted operation: the new slice, the position to focus
// (-1 for none) and the item/cache update to apply once the slice is stored.
// reindex maps an old element position to its new one, false when the
// element is gone; nil means positions did not change.
type change struct {
	next    []any
	focus   int
	commit  func()
	reindex func(old int) (int, bool)
}

// mutate runs op under the form lock. op returns false to reject the call
// without side effects.
func (a *FieldArray) mutate(name string, opts []ArrayOption, op func(cur []any) (change, bool)) bool {
	if a == nil || !a.live {
		return false
	}
	o := collect(opts)
	f := a.f
	f.mu.Lock()
	c, ok := op(a.sliceLocked())
	if !ok {
		f.mu.Unlock()
		f.log.Debug("array operation rejected", "op", name, "path", a.path)
		return false
	}
	if err := fieldpath.Set(f.fc.values, a.path, c.next); err != nil {
		f.mu.Unlock()
		f.log.Warn("array operation failed", "op", name, "path", a.path, "error", err)
		return false
	}
	if c.commit != nil {
		c.commit()
	}
	moved := false
	if c.reindex != nil {
		moved = f.reindexLocked(a.path, c.reindex)
		// runs started before the reorder address old positions
		f.fc.latest[a.path] = f.fc.nextID()
	}
	f.fc.cache.invalidate(a.path)
	for ap, nested := range f.fc.arrays {
		if ap != a.path && fieldpath.Within(ap, a.path) {
			nested.rebuildLocked()
		}
	}
	if !o.noDirty {
		f.fc.setDirty(a.path, true)
	}
	validate := !o.noValidate && f.shouldValidateLocked(a.path, sourceArray)
	f.mu.Unlock()

	f.emit(Event{Kind: EventArray, Path: a.path})
	if moved {
		f.emit(Event{Kind: EventErrors, Path: a.path})
	}
	if validate {
		f.log.Debug("validating after array operation", "op", name, "path", a.path)
		f.validateAsync(a.path, sourceArray)
	}
	if o.focus && c.focus >= 0 && f.focus != nil {
		target := fieldpath.Join(a.path, strconv.Itoa(c.focus+o.focusIndex), o.focusName)
		f.goAsync(func() { f.focus(target) })
	}
	return true
}

// insertAt places v at position at, shifting the cached index of every
// later item.
func (a *FieldArray) insertAt(cur []any, at int, v any) (change, bool) {
	vals, ok := expand(v)
	if !ok || at < 0 || at > len(cur) || !a.fitsMax(len(cur)+len(vals)) {
		return change{}, false
	}
	next := slices.Insert(slices.Clone(cur), at, vals...)
	n := len(vals)
	return change{next: next, focus: at, reindex: func(old int) (int, bool) {
		if old >= at {
			return old + n, true
		}
		return old, true
	}, commit: func() {
		fresh := make([]Item, len(vals))
		for i := range fresh {
			fresh[i] = Item{Key: a.keys.Next()}
		}
		a.items = slices.Insert(a.items, at, fresh...)
		for i := at + len(vals); i < len(a.items); i++ {
			a.index[a.items[i].Key] = i
		}
		for i, it := range fresh {
			a.index[it.Key] = at + i
		}
	}}, true
}

// Append adds v, or each element of a Batch, at the end.
func (a *FieldArray) Append(v any, opts ...ArrayOption) bool {
	return a.mutate("append", opts, func(cur []any) (change, bool) {
		return a.insertAt(cur, len(cur), v)
	})
}

// Prepend adds v, or each element of a Batch, at the start.
func (a *FieldArray) Prepend(v any, opts ...ArrayOption) bool {
	return a.mutate("prepend", opts, func(cur []any) (change, bool) {
		return a.insertAt(cur, 0, v)
	})
}

// Insert adds v, or each element of a Batch, before position i. i may equal
// Len to append.
func (a *FieldArray) Insert(i int, v any, opts ...ArrayOption) bool {
	return a.mutate("insert", opts, func(cur []any) (change, bool) {
		return a.insertAt(cur, i, v)
	})
}

// Remove deletes the element at i.
func (a *FieldArray) Remove(i int, opts ...ArrayOption) bool {
	return a.mutate("remove", opts, func(cur []any) (change, bool) {
		if i < 0 || i >= len(cur) || !a.fitsMin(len(cur)-1) {
			return change{}, false
		}
		return change{next: slices.Delete(slices.Clone(cur), i, i+1), focus: -1, reindex: func(old int) (int, bool) {
			switch {
			case old == i:
				return 0, false
			case old > i:
				return old - 1, true
			}
			return old, true
		}, commit: func() {
			delete(a.index, a.items[i].Key)
			a.items = slices.Delete(a.items, i, i+1)
			for j := i; j < len(a.items); j++ {
				a.index[a.items[j].Key] = j
			}
		}}, true
	})
}

// RemoveAll deletes every element.
func (a *FieldArray) RemoveAll(opts ...ArrayOption) bool {
	return a.mutate("removeAll", opts, func([]any) (change, bool) {
		if !a.fitsMin(0) {
			return change{}, false
		}
		return change{next: []any{}, focus: -1, reindex: dropAll, commit: func() {
			a.items = a.items[:0]
			clear(a.index)
		}}, true
	})
}

// RemoveMany deletes the elements at the given indices. Duplicates are
// ignored; any index out of range rejects the whole call.
func (a *FieldArray) RemoveMany(indices []int, opts ...ArrayOption) bool {
	return a.mutate("removeMany", opts, func(cur []any) (change, bool) {
		if len(indices) == 0 {
			return change{}, false
		}
		drop := slices.Clone(indices)
		slices.Sort(drop)
		drop = slices.Compact(drop)
		if drop[0] < 0 || drop[len(drop)-1] >= len(cur) || !a.fitsMin(len(cur)-len(drop)) {
			return change{}, false
		}
		next := make([]any, 0, len(cur)-len(drop))
		items := make([]Item, 0, len(cur)-len(drop))
		var gone []string
		d := 0
		for i := range cur {
			if d < len(drop) && drop[d] == i {
				gone = append(gone, a.items[i].Key)
				d++
				continue
			}
			next = append(next, cur[i])
			items = append(items, a.items[i])
		}
		return change{next: next, focus: -1, reindex: func(old int) (int, bool) {
			before, found := slices.BinarySearch(drop, old)
			if found {
				return 0, false
			}
			return old - before, true
		}, commit: func() {
			for _, k := range gone {
				delete(a.index, k)
			}
			a.items = items
			for j := drop[0]; j < len(a.items); j++ {
				a.index[a.items[j].Key] = j
			}
		}}, true
	})
}

// Update replaces the element at i in place. The item keeps its key.
func (a *FieldArray) Update(i int, v any, opts ...ArrayOption) bool {
	return a.mutate("update", opts, func(cur []any) (change, bool) {
		if _, batch := v.(Batch); batch || i < 0 || i >= len(cur) {
			return change{}, false
		}
		next := slices.Clone(cur)
		next[i] = clone.Value(v)
		return change{next: next, focus: i}, true
	})
}

// Swap exchanges the elements at i and j together with their keys.
func (a *FieldArray) Swap(i, j int, opts ...ArrayOption) bool {
	return a.mutate("swap", opts, func(cur []any) (change, bool) {
		if i < 0 || j < 0 || i >= len(cur) || j >= len(cur) {
			return change{}, false
		}
		next := slices.Clone(cur)
		next[i], next[j] = next[j], next[i]
		return change{next: next, focus: -1, reindex: func(old int) (int, bool) {
			switch old {
			case i:
				return j, true
			case j:
				return i, true
			}
			return old, true
		}, commit: func() {
			a.items[i], a.items[j] = a.items[j], a.items[i]
			a.index[a.items[i].Key] = i
			a.index[a.items[j].Key] = j
		}}, true
	})
}

// Move relocates the element at from to position to, clamped to the array
// bounds. Only the items between the two positions get new indices.
func (a *FieldArray) Move(from, to int, opts ...ArrayOption) bool {
	return a.mutate("move", opts, func(cur []any) (change, bool) {
		if from < 0 || from >= len(cur) {
			return change{}, false
		}
		to := max(0, min(to, len(cur)-1))
		next := slices.Clone(cur)
		v := next[from]
		next = slices.Insert(slices.Delete(next, from, from+1), to, v)
		return change{next: next, focus: -1, reindex: func(old int) (int, bool) {
			switch {
			case old == from:
				return to, true
			case from < to && old > from && old <= to:
				return old - 1, true
			case from > to && old >= to && old < from:
				return old + 1, true
			}
			return old, true
		}, commit: func() {
			it := a.items[from]
			a.items = slices.Insert(slices.Delete(a.items, from, from+1), to, it)
			for k := min(from, to); k <= max(from, to); k++ {
				a.index[a.items[k].Key] = k
			}
		}}, true
	})
}

// Replace swaps in a new list of values. Every element gets a new key.
func (a *FieldArray) Replace(values []any, opts ...ArrayOption) bool {
	return a.mutate("replace", opts, func(cur []any) (change, bool) {
		if len(values) > len(cur) && !a.fitsMax(len(values)) {
			return change{}, false
		}
		if len(values) < len(cur) && !a.fitsMin(len(values)) {
			return change{}, false
		}
		next := make([]any, len(values))
		for i, v := range values {
			next[i] = clone.Value(v)
		}
		return change{next: next, focus: -1, reindex: dropAll, commit: func() {
			a.items = make([]Item, len(next))
			a.index = make(map[string]int, len(next))
			for i := range next {
				k := a.keys.Next()
				a.items[i] = Item{Key: k}
				a.index[k] = i
			}
		}}, true
	})
}

func dropAll(int) (int, bool) { return 0, false }

// reindexLocked moves the errors, pending errors and dirty/touched flags
// recorded under base.<i> to the element's new position, dropping those of
// removed elements. It reports whether visible errors changed.
func (f *Form) reindexLocked(base string, fn func(int) (int, bool)) bool {
	fc := f.fc
	changed := reindexMap(fc.errors, base, fn, nil, nil)
	if changed {
		fc.invalidateErrors()
	}
	reindexMap(fc.pending, base, fn,
		func(k string, d *delayed) { d.path = k },
		func(_ string, d *delayed) {
			if d.timer.Stop() {
				f.wg.Done()
			}
		})
	reindexMap(fc.dirty, base, fn, nil, func(string, bool) { fc.dirtyCount-- })
	reindexMap(fc.touched, base, fn, nil, func(string, bool) { fc.touchedCount-- })
	return changed
}

// reindexMap rewrites the keys of m that address an element of the array at
// base. moved sees every relocated entry under its new key; dropped sees
// entries of removed elements.
func reindexMap[V any](m map[string]V, base string, fn func(int) (int, bool), moved func(string, V), dropped func(string, V)) bool {
	prefix := base + "."
	next := map[string]V{}
	changed := false
	for k, v := range m {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		seg, tail, _ := strings.Cut(k[len(prefix):], ".")
		if !fieldpath.IsIndex(seg) {
			continue
		}
		old, err := strconv.Atoi(seg)
		if err != nil {
			continue
		}
		i, keep := fn(old)
		if keep && i == old {
			continue
		}
		delete(m, k)
		changed = true
		if !keep {
			if dropped != nil {
				dropped(k, v)
			}
			continue
		}
		nk := fieldpath.Join(base, strconv.Itoa(i), tail)
		if moved != nil {
			moved(nk, v)
		}
		next[nk] = v
	}
	maps.Copy(m, next)
	return changed
}

// Path returns the array's path.
func (a *FieldArray) Path() string { return a.path }

// Items returns the items in order.
func (a *FieldArray) Items() []Item {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	return slices.Clone(a.items)
}

// Index returns the current position of item, or -1 when it is no longer
// in the array.
func (a *FieldArray) Index(item Item) int {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if i, ok := a.index[item.Key]; ok {
		return i
	}
	return -1
}

// Len returns the number of elements.
func (a *FieldArray) Len() int {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	return len(a.items)
}

// Key returns the key at position i, or "" when i is out of range.
func (a *FieldArray) Key(i int) string {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if i < 0 || i >= len(a.items) {
		return ""
	}
	return a.items[i].Key
}

// Values returns a copy of the array's elements.
func (a *FieldArray) Values() []any {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	out, _ := clone.Value(a.sliceLocked()).([]any)
	return out
}
