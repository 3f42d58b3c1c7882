package form

import (
	"context"
	"maps"
	"slices"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/internal/clone"
)

// Validator checks one value after the schema accepted it. A non-empty
// message fails the field with that message; a non-nil error fails it with
// a generic message, or with the first issue when the error is
// formskema.Issues.
type Validator func(ctx context.Context, value any) (string, error)

// RegisterOptions configures a registered field.
type RegisterOptions struct {
	Validate Validator
	// Validators run in name order after Validate. With CriteriaAll every
	// failure is recorded under its name in FieldError.Types.
	Validators map[string]Validator
	// Deps lists fields to re-validate whenever this one is validated after
	// a change.
	Deps []string
}

// Field is the handle a binding layer wires to an input.
type Field struct {
	f    *Form
	name string
}

// Register records opts for path and returns its handle. Registering the
// same path again replaces the options. An invalid path yields a handle
// whose methods do nothing.
func (f *Form) Register(path string, opts RegisterOptions) *Field {
	if !f.checkPath("Register", path) {
		return &Field{}
	}
	opts.Validators = maps.Clone(opts.Validators)
	deps := make([]string, 0, len(opts.Deps))
	for _, d := range opts.Deps {
		if err := fieldpath.Validate(d); err != nil {
			f.log.Warn("ignoring invalid dep", "path", path, "dep", d, "error", err)
			continue
		}
		deps = append(deps, d)
	}
	opts.Deps = deps
	f.mu.Lock()
	f.fc.fields[path] = opts
	f.mu.Unlock()
	return &Field{f: f, name: path}
}

// Name returns the registered path.
func (fl *Field) Name() string { return fl.name }

// Value returns a copy of the field's current value.
func (fl *Field) Value() any {
	if fl.f == nil {
		return nil
	}
	return fl.f.GetValue(fl.name)
}

// OnChange records a value entered by the user: it stores v, recomputes the
// dirty flag and validates according to the form's mode.
func (fl *Field) OnChange(v any) {
	f := fl.f
	if f == nil {
		return
	}
	f.mu.Lock()
	if !f.setValueLocked("OnChange", fl.name, v) {
		f.mu.Unlock()
		return
	}
	f.fc.setDirty(fl.name, !f.equalsDefaultLocked(fl.name))
	validate := f.shouldValidateLocked(fl.name, sourceChange)
	deps := slices.Clone(f.fc.fields[fl.name].Deps)
	f.mu.Unlock()
	f.emit(Event{Kind: EventValue, Path: fl.name})
	if validate {
		f.validateAsync(fl.name, sourceChange)
		for _, d := range deps {
			f.validateAsync(d, sourceChange)
		}
	}
}

// OnBlur marks the field touched and validates according to the form's mode.
func (fl *Field) OnBlur() {
	f := fl.f
	if f == nil {
		return
	}
	f.mu.Lock()
	f.fc.setTouched(fl.name, true)
	validate := f.shouldValidateLocked(fl.name, sourceBlur)
	f.mu.Unlock()
	f.emit(Event{Kind: EventState, Path: fl.name})
	if validate {
		f.validateAsync(fl.name, sourceBlur)
	}
}

// Unregister drops the field's options together with its dirty, touched
// and non-persistent error state. The value is kept.
func (fl *Field) Unregister() {
	f := fl.f
	if f == nil {
		return
	}
	f.mu.Lock()
	delete(f.fc.fields, fl.name)
	f.fc.dropStatus(fl.name)
	for k, e := range f.fc.errors {
		if fieldpath.Within(k, fl.name) && !e.Persistent {
			delete(f.fc.errors, k)
		}
	}
	f.fc.invalidateErrors()
	f.mu.Unlock()
	f.emit(Event{Kind: EventErrors, Path: fl.name})
}

// registeredWithinLocked returns the options of every field at or below path,
// with their current values.
func (f *Form) registeredWithinLocked(path string, values map[string]any) []fieldCheck {
	var out []fieldCheck
	for p, o := range f.fc.fields {
		if path != "" && !fieldpath.Within(p, path) {
			continue
		}
		if o.Validate == nil && len(o.Validators) == 0 {
			continue
		}
		v, _ := fieldpath.Get(values, p)
		out = append(out, fieldCheck{path: p, value: clone.Value(v), opts: o})
	}
	return out
}

type fieldCheck struct {
	path  string
	value any
	opts  RegisterOptions
}
