package form

import (
	"errors"
	"maps"
	"sort"
	"strings"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
)

var (
	// ErrInvalidOptions is wrapped by New for unusable configuration.
	ErrInvalidOptions = errors.New("form: invalid options")
	// ErrInvalid is returned by HandleSubmit when validation fails.
	ErrInvalid = errors.New("form: validation failed")
)

// RootKey is the reserved error slot for failures that belong to no single
// field: object-level refinements on the root and unexpected schema or
// validator failures.
const RootKey = "root"

// Error types produced by the form itself. Schema failures use the schema's
// issue code as the type.
const (
	TypeException = "exception"
	TypeValidate  = "validate"
	TypeMinLength = "minLength"
	TypeMaxLength = "maxLength"
)

// FieldError is the error attached to one path.
type FieldError struct {
	Type    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
	// Types holds every failure by type when CriteriaMode is CriteriaAll.
	Types map[string]string `json:"types,omitempty" yaml:"types,omitempty"`
	// Persistent errors survive validation and are removed only by
	// SetError, ClearErrors, ResetField or Reset.
	Persistent bool `json:"persistent,omitempty" yaml:"persistent,omitempty"`
}

func (e FieldError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Type
}

func (e FieldError) equal(o FieldError) bool {
	return e.Type == o.Type && e.Message == o.Message && e.Persistent == o.Persistent && maps.Equal(e.Types, o.Types)
}

// issueErrors folds schema issues into per-path errors. base is the dot path
// the issue pointers are relative to.
func issueErrors(base string, iss formskema.Issues, all bool) map[string]FieldError {
	out := make(map[string]FieldError, len(iss))
	for _, it := range iss {
		p := fieldpath.Join(base, fieldpath.FromPointer(it.Path))
		if p == "" {
			p = RootKey
		}
		e, seen := out[p]
		if !seen {
			e = FieldError{Type: it.Code, Message: it.Message}
		}
		if all {
			if e.Types == nil {
				e.Types = map[string]string{}
			}
			if _, dup := e.Types[it.Code]; !dup {
				e.Types[it.Code] = it.Message
			}
		}
		out[p] = e
	}
	return out
}

func exceptionError(err error) FieldError {
	return FieldError{Type: TypeException, Message: err.Error()}
}

// setErrorLocked stores a validation-produced error for path, honouring
// persistence and, unless immediate, DelayError. e == nil clears.
func (f *Form) setErrorLocked(path string, e *FieldError, immediate bool) bool {
	cur, has := f.fc.errors[path]
	if has && cur.Persistent {
		return false
	}
	if e == nil {
		f.cancelDelayedLocked(path)
		if !has {
			return false
		}
		delete(f.fc.errors, path)
		f.fc.invalidateErrors()
		return true
	}
	if has && cur.equal(*e) {
		f.cancelDelayedLocked(path)
		return false
	}
	if f.fc.delayError > 0 && !immediate {
		f.delayErrorLocked(path, *e)
		return false
	}
	f.fc.errors[path] = *e
	f.fc.invalidateErrors()
	return true
}

// SetError sets an error on path, replacing any existing one, persistent or
// not. Use FieldError.Persistent to keep it across validation runs.
func (f *Form) SetError(path string, e FieldError) {
	if path != RootKey && !f.checkPath("SetError", path) {
		return
	}
	f.mu.Lock()
	f.cancelDelayedLocked(path)
	f.fc.errors[path] = e
	f.fc.invalidateErrors()
	f.mu.Unlock()
	f.emit(Event{Kind: EventErrors, Path: path})
}

// ClearErrors removes the errors at the given paths and below them,
// persistent ones included. Without paths every error is removed.
func (f *Form) ClearErrors(paths ...string) {
	f.mu.Lock()
	if len(paths) == 0 {
		for k := range f.fc.pending {
			f.cancelDelayedLocked(k)
		}
		clear(f.fc.errors)
	} else {
		for _, p := range paths {
			for k := range f.fc.errors {
				if fieldpath.Within(k, p) {
					delete(f.fc.errors, k)
				}
			}
			for k := range f.fc.pending {
				if fieldpath.Within(k, p) {
					f.cancelDelayedLocked(k)
				}
			}
		}
	}
	f.fc.invalidateErrors()
	f.mu.Unlock()
	f.emit(Event{Kind: EventErrors, Path: strings.Join(paths, ",")})
}

// SetExternalErrors replaces the errors supplied from outside the form, for
// example by a server response. They are merged into Errors for paths that
// carry no error of their own and are never touched by validation.
func (f *Form) SetExternalErrors(errs map[string]FieldError) {
	f.mu.Lock()
	f.fc.external = maps.Clone(errs)
	if f.fc.external == nil {
		f.fc.external = map[string]FieldError{}
	}
	f.fc.invalidateErrors()
	f.mu.Unlock()
	f.emit(Event{Kind: EventErrors})
}

// Errors returns the merged error view. The same map is returned until the
// next error mutation; callers must not modify it.
func (f *Form) Errors() map[string]FieldError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fc.errorView()
}

// ErrorPaths returns the paths of Errors in sorted order.
func (f *Form) ErrorPaths() []string {
	view := f.Errors()
	out := make([]string, 0, len(view))
	for k := range view {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
