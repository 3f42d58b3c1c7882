package form

import (
	"maps"
	"slices"

	"github.com/reoring/formskema/fieldpath"
)

// FormState is an aggregate snapshot. DirtyFields and TouchedFields are
// copies; Errors is the shared memoized view and must not be modified.
type FormState struct {
	IsDirty            bool
	IsValid            bool
	IsValidating       bool
	IsSubmitted        bool
	IsSubmitting       bool
	IsSubmitSuccessful bool
	SubmitCount        int
	DirtyCount         int
	TouchedCount       int
	DirtyFields        map[string]bool
	TouchedFields      map[string]bool
	ValidatingFields   []string
	Errors             map[string]FieldError
}

// State returns the current aggregate state. Counts and flags come from
// running counters, so the cost does not depend on how many fields changed.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	fc := f.fc
	errs := fc.errorView()
	st := FormState{
		IsDirty:            fc.dirtyCount > 0,
		IsValid:            len(errs) == 0,
		IsValidating:       fc.validatingCount > 0,
		IsSubmitted:        fc.isSubmitted,
		IsSubmitting:       fc.isSubmitting,
		IsSubmitSuccessful: fc.isSubmitSuccessful,
		SubmitCount:        fc.submitCount,
		DirtyCount:         fc.dirtyCount,
		TouchedCount:       fc.touchedCount,
		DirtyFields:        maps.Clone(fc.dirty),
		TouchedFields:      maps.Clone(fc.touched),
		Errors:             errs,
	}
	if len(fc.validating) > 0 {
		st.ValidatingFields = slices.Sorted(maps.Keys(fc.validating))
	}
	return st
}

// IsDirty reports whether any field differs from its default.
func (f *Form) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fc.dirtyCount > 0
}

// IsValid reports whether the merged error view is empty.
func (f *Form) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fc.errorView()) == 0
}

// FieldState describes one path.
type FieldState struct {
	IsDirty      bool
	IsTouched    bool
	IsValidating bool
	Invalid      bool
	Error        *FieldError
}

// GetFieldState returns the state of path. A path is dirty or touched when
// it or any path below it is.
func (f *Form) GetFieldState(path string) FieldState {
	if !f.checkPath("GetFieldState", path) {
		return FieldState{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var st FieldState
	st.IsDirty = anyWithin(f.fc.dirty, path)
	st.IsTouched = anyWithin(f.fc.touched, path)
	st.IsValidating = f.fc.validating[path] > 0
	if e, ok := f.fc.errorView()[path]; ok {
		st.Invalid = true
		st.Error = &e
	}
	return st
}

func anyWithin(m map[string]bool, path string) bool {
	for k := range m {
		if fieldpath.Within(k, path) {
			return true
		}
	}
	return false
}
