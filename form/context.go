package form

import (
	"maps"
	"time"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/internal/clone"
)

// formContext is the state owned by one Form. Every field is guarded by
// Form.mu; the validation engine, field arrays and state derivation all
// receive the same instance.
type formContext struct {
	values   map[string]any
	defaults map[string]any

	// dirty and touched only hold true entries; the counters track their
	// sizes so aggregate reads never scan.
	dirty        map[string]bool
	dirtyCount   int
	touched      map[string]bool
	touchedCount int

	errors   map[string]FieldError
	external map[string]FieldError
	// view is the memoized merge of errors and external; nil when stale.
	view map[string]FieldError

	arrays map[string]*FieldArray
	fields map[string]RegisterOptions

	mode           Mode
	reValidateMode Mode
	criteria       CriteriaMode
	debounce       time.Duration
	delayError     time.Duration

	submitCount        int
	isSubmitted        bool
	isSubmitting       bool
	isSubmitSuccessful bool

	validating      map[string]int
	validatingCount int

	// seq issues request ids. latest maps a path to the id of the newest
	// request covering it; wholeForm is the newest full-form request.
	seq       uint64
	latest    map[string]uint64
	wholeForm uint64

	// pending holds delayed errors not yet shown.
	pending map[string]*delayed

	cache *validationCache
}

func newFormContext(o Options) *formContext {
	defaults := clone.Map(o.DefaultValues)
	return &formContext{
		values:         clone.Map(defaults),
		defaults:       defaults,
		dirty:          map[string]bool{},
		touched:        map[string]bool{},
		errors:         map[string]FieldError{},
		external:       map[string]FieldError{},
		arrays:         map[string]*FieldArray{},
		fields:         map[string]RegisterOptions{},
		mode:           o.Mode,
		reValidateMode: o.ReValidateMode,
		criteria:       o.CriteriaMode,
		debounce:       o.ValidationDebounce,
		delayError:     o.DelayError,
		validating:     map[string]int{},
		latest:         map[string]uint64{},
		pending:        map[string]*delayed{},
		cache:          newValidationCache(),
	}
}

func (c *formContext) setDirty(path string, v bool) {
	if v == c.dirty[path] {
		return
	}
	if v {
		c.dirty[path] = true
		c.dirtyCount++
		return
	}
	delete(c.dirty, path)
	c.dirtyCount--
}

func (c *formContext) setTouched(path string, v bool) {
	if v == c.touched[path] {
		return
	}
	if v {
		c.touched[path] = true
		c.touchedCount++
		return
	}
	delete(c.touched, path)
	c.touchedCount--
}

// dropStatus clears dirty and touched flags at and below path.
func (c *formContext) dropStatus(path string) {
	for k := range c.dirty {
		if fieldpath.Within(k, path) {
			c.setDirty(k, false)
		}
	}
	for k := range c.touched {
		if fieldpath.Within(k, path) {
			c.setTouched(k, false)
		}
	}
}

func (c *formContext) invalidateErrors() { c.view = nil }

func (c *formContext) errorView() map[string]FieldError {
	if c.view != nil {
		return c.view
	}
	view := make(map[string]FieldError, len(c.errors)+len(c.external))
	maps.Copy(view, c.external)
	maps.Copy(view, c.errors)
	c.view = view
	return view
}

// effectiveMode is Mode before the first submit and ReValidateMode after.
func (c *formContext) effectiveMode() Mode {
	if c.submitCount > 0 {
		return c.reValidateMode
	}
	return c.mode
}

func (c *formContext) nextID() uint64 {
	c.seq++
	return c.seq
}

func (c *formContext) beginValidating(path string) {
	c.validating[path]++
	c.validatingCount++
}

func (c *formContext) endValidating(path string) {
	if c.validating[path] <= 1 {
		delete(c.validating, path)
	} else {
		c.validating[path]--
	}
	c.validatingCount--
}

// superseded reports whether a request issued as id for path has been
// overtaken by a newer request for the path, an ancestor, or the whole form.
func (c *formContext) superseded(path string, id uint64) bool {
	if c.wholeForm > id {
		return true
	}
	for p := path; p != ""; p = fieldpath.Parent(p) {
		if c.latest[p] > id {
			return true
		}
	}
	return false
}
