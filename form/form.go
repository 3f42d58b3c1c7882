// Package form is a form-state manager driven by a formskema schema.
//
// A Form tracks values, dirty and touched flags, and validation errors for a
// nested record. Values are addressed with dot paths ("user.addresses.0.city",
// see package fieldpath). Single fields are validated with their own
// sub-schema when no cross-field refinement can observe them; otherwise the
// whole schema runs and its errors are distributed in one batch.
//
// All methods are safe for concurrent use. Automatic validation triggered by
// SetValue, Field events and field-array operations runs in the background;
// Wait blocks until it has settled.
package form

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/analysis"
	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/internal/clone"
)

// Form is one form instance. Create it with New.
type Form struct {
	schema   formskema.Schema
	analyzer *analysis.Analyzer
	log      *slog.Logger
	focus    func(string)

	mu sync.Mutex
	fc *formContext

	wg       sync.WaitGroup
	debounce *debouncer

	subMu   sync.Mutex
	subs    map[uint64]func(Event)
	nextSub uint64
}

// New creates a form for schema. Default values are deep-copied, so later
// changes to opts.DefaultValues do not affect the form.
func New(schema formskema.Schema, opts Options) (*Form, error) {
	if schema == nil {
		return nil, fmt.Errorf("form: new: %w", formskema.ErrNilSchema)
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	f := &Form{
		schema:   schema,
		analyzer: analysis.New(),
		log:      o.Logger.With("component", "form"),
		focus:    o.Focus,
		fc:       newFormContext(o),
		subs:     map[uint64]func(Event){},
	}
	f.debounce = newDebouncer(o.ValidationDebounce, &f.wg)
	return f, nil
}

// MustNew is New that panics on error.
func MustNew(schema formskema.Schema, opts Options) *Form {
	f, err := New(schema, opts)
	if err != nil {
		panic(err)
	}
	return f
}

// Schema returns the schema the form validates against.
func (f *Form) Schema() formskema.Schema { return f.schema }

// Wait blocks until background validations, debounce timers, delayed errors
// and focus requests have finished.
func (f *Form) Wait() { f.wg.Wait() }

func (f *Form) checkPath(op, path string) bool {
	if err := fieldpath.Validate(path); err != nil {
		f.log.Warn("ignoring invalid path", "op", op, "path", path, "error", err)
		return false
	}
	return true
}

// GetValue returns a copy of the value at path, or nil when it is absent.
func (f *Form) GetValue(path string) any {
	if !f.checkPath("GetValue", path) {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, _ := fieldpath.Get(f.fc.values, path)
	return clone.Value(v)
}

// GetValues returns a copy of all values.
func (f *Form) GetValues() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone.Map(f.fc.values)
}

// SetValueOptions controls the side effects of SetValue.
type SetValueOptions struct {
	// ShouldValidate validates the path (and its deps) regardless of Mode.
	ShouldValidate bool
	// ShouldDirty recomputes the dirty flag against the default value.
	ShouldDirty bool
	ShouldTouch bool
}

// SetValue stores a copy of v at path.
func (f *Form) SetValue(path string, v any, opts ...SetValueOptions) {
	var o SetValueOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if !f.checkPath("SetValue", path) {
		return
	}
	f.mu.Lock()
	if !f.setValueLocked("SetValue", path, v) {
		f.mu.Unlock()
		return
	}
	if o.ShouldDirty {
		f.fc.setDirty(path, !f.equalsDefaultLocked(path))
	}
	if o.ShouldTouch {
		f.fc.setTouched(path, true)
	}
	deps := slices.Clone(f.fc.fields[path].Deps)
	f.mu.Unlock()
	f.emit(Event{Kind: EventValue, Path: path})
	if o.ShouldValidate {
		f.validateAsync(path, sourceTrigger)
		for _, d := range deps {
			f.validateAsync(d, sourceTrigger)
		}
	}
}

// setValueLocked writes v at path and keeps caches and arrays consistent.
func (f *Form) setValueLocked(op, path string, v any) bool {
	if err := fieldpath.Set(f.fc.values, path, clone.Value(v)); err != nil {
		f.log.Warn("set value failed", "op", op, "path", path, "error", err)
		return false
	}
	f.fc.cache.invalidate(path)
	for ap, a := range f.fc.arrays {
		switch {
		case fieldpath.Within(ap, path):
			a.rebuildLocked()
		case fieldpath.Within(path, ap):
			a.reconcileLocked()
		}
	}
	return true
}

var equalOpts = cmp.Options{cmpopts.EquateEmpty()}

func (f *Form) equalsDefaultLocked(path string) bool {
	cur, _ := fieldpath.Get(f.fc.values, path)
	def, _ := fieldpath.Get(f.fc.defaults, path)
	return valuesEqual(cur, def)
}

// valuesEqual compares decoded values; nil and empty containers are equal.
func valuesEqual(a, b any) (eq bool) {
	defer func() {
		// cmp panics on values it cannot compare (unexported struct fields).
		if recover() != nil {
			eq = false
		}
	}()
	return cmp.Equal(a, b, equalOpts)
}

// Reset restores the form. With no argument the current defaults are
// restored; otherwise values becomes the new defaults. Every error is
// removed, including persistent and external ones, and in-flight
// validations are discarded when they resolve.
func (f *Form) Reset(values ...map[string]any) {
	f.mu.Lock()
	if len(values) > 0 {
		f.fc.defaults = clone.Map(values[0])
	}
	f.fc.values = clone.Map(f.fc.defaults)
	clear(f.fc.dirty)
	clear(f.fc.touched)
	f.fc.dirtyCount, f.fc.touchedCount = 0, 0
	for k := range f.fc.pending {
		f.cancelDelayedLocked(k)
	}
	clear(f.fc.errors)
	clear(f.fc.external)
	f.fc.invalidateErrors()
	f.fc.submitCount = 0
	f.fc.isSubmitted, f.fc.isSubmitting, f.fc.isSubmitSuccessful = false, false, false
	f.fc.wholeForm = f.fc.nextID()
	clear(f.fc.latest)
	f.fc.cache.reset()
	for _, a := range f.fc.arrays {
		a.rebuildLocked()
	}
	f.mu.Unlock()
	f.emit(Event{Kind: EventReset})
}

// ResetField restores path to its default value and clears its dirty,
// touched and error state, persistent errors included.
func (f *Form) ResetField(path string) {
	if !f.checkPath("ResetField", path) {
		return
	}
	f.mu.Lock()
	def, ok := fieldpath.Get(f.fc.defaults, path)
	if ok {
		f.setValueLocked("ResetField", path, def)
	} else if fieldpath.Unset(f.fc.values, path) {
		f.fc.cache.invalidate(path)
		for ap, a := range f.fc.arrays {
			if fieldpath.Related(ap, path) {
				a.rebuildLocked()
			}
		}
	}
	f.fc.dropStatus(path)
	for k := range f.fc.errors {
		if fieldpath.Within(k, path) {
			delete(f.fc.errors, k)
		}
	}
	for k := range f.fc.pending {
		if fieldpath.Within(k, path) {
			f.cancelDelayedLocked(k)
		}
	}
	f.fc.latest[path] = f.fc.nextID()
	f.fc.invalidateErrors()
	f.mu.Unlock()
	f.emit(Event{Kind: EventValue, Path: path}, Event{Kind: EventErrors, Path: path})
}

// HandleSubmit validates the whole form and calls onValid with a copy of
// the values, or onInvalid with the errors. It returns the error of
// onValid, or ErrInvalid when validation failed.
func (f *Form) HandleSubmit(ctx context.Context, onValid func(context.Context, map[string]any) error, onInvalid func(context.Context, map[string]FieldError)) error {
	f.mu.Lock()
	f.fc.isSubmitting = true
	f.fc.isSubmitSuccessful = false
	f.mu.Unlock()
	f.emit(Event{Kind: EventState})

	ok := f.validate(ctx, nil, sourceSubmit)
	f.mu.Lock()
	for _, e := range f.fc.errors {
		if e.Persistent {
			ok = false
			break
		}
	}
	f.mu.Unlock()

	var err error
	if ok {
		if onValid != nil {
			err = onValid(ctx, f.GetValues())
		}
	} else {
		if onInvalid != nil {
			onInvalid(ctx, f.Errors())
		}
		err = ErrInvalid
	}

	f.mu.Lock()
	f.fc.isSubmitting = false
	f.fc.isSubmitted = true
	f.fc.submitCount++
	f.fc.isSubmitSuccessful = err == nil
	f.mu.Unlock()
	f.emit(Event{Kind: EventSubmit})
	return err
}
