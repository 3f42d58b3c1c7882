package form

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/analysis"
	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/i18n"
	"github.com/reoring/formskema/internal/clone"
)

// source is what asked for a validation; Mode decides which sources fire.
type source int

const (
	sourceChange source = iota
	sourceBlur
	sourceArray
	sourceTrigger
	sourceSubmit
)

func (s source) String() string {
	switch s {
	case sourceChange:
		return "change"
	case sourceBlur:
		return "blur"
	case sourceArray:
		return "array"
	case sourceTrigger:
		return "trigger"
	case sourceSubmit:
		return "submit"
	}
	return "unknown"
}

// shouldValidateLocked applies mode gating. Array operations count as
// changes, never as blurs.
func (f *Form) shouldValidateLocked(path string, src source) bool {
	if src == sourceTrigger || src == sourceSubmit {
		return true
	}
	switch f.fc.effectiveMode() {
	case All:
		return true
	case OnChange:
		return src == sourceChange || src == sourceArray
	case OnBlur:
		return src == sourceBlur
	case OnTouched:
		return src == sourceBlur || f.fc.touched[path]
	}
	return false
}

// TriggerOptions modifies Trigger.
type TriggerOptions struct {
	// MarkAsSubmitted counts the call as a submission, which switches
	// automatic validation from Mode to ReValidateMode.
	MarkAsSubmitted bool
}

// Trigger validates the given paths, or the whole form when none are given,
// and reports whether they passed. Invalid paths are logged and skipped.
func (f *Form) Trigger(ctx context.Context, paths ...string) bool {
	return f.TriggerWith(ctx, TriggerOptions{}, paths...)
}

// TriggerWith is Trigger with options.
func (f *Form) TriggerWith(ctx context.Context, opts TriggerOptions, paths ...string) bool {
	if opts.MarkAsSubmitted {
		f.mu.Lock()
		f.fc.submitCount++
		f.fc.isSubmitted = true
		f.mu.Unlock()
		f.emit(Event{Kind: EventState})
	}
	if len(paths) == 0 {
		return f.validate(ctx, nil, sourceTrigger)
	}
	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.checkPath("Trigger", p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return false
	}
	slices.Sort(valid)
	valid = slices.Compact(valid)
	if f.debounce.delay <= 0 {
		return f.validate(ctx, valid, sourceTrigger)
	}
	chans := make([]<-chan bool, len(valid))
	for i, p := range valid {
		chans[i] = f.debounced(ctx, p, sourceTrigger)
	}
	ok := true
	for _, ch := range chans {
		select {
		case r := <-ch:
			ok = ok && r
		case <-ctx.Done():
			return false
		}
	}
	return ok
}

func (f *Form) debounced(ctx context.Context, path string, src source) <-chan bool {
	runCtx := context.WithoutCancel(ctx)
	return f.debounce.schedule(path, func() bool {
		return f.validate(runCtx, []string{path}, src)
	})
}

// validateAsync validates path in the background.
func (f *Form) validateAsync(path string, src source) {
	if f.debounce.delay > 0 {
		f.debounced(context.Background(), path, src)
		return
	}
	f.goAsync(func() {
		f.validate(context.Background(), []string{path}, src)
	})
}

// run is one validation request: a snapshot taken under the lock and
// computed outside it.
type run struct {
	id     uint64
	src    source
	paths  []string // nil for the whole form
	values map[string]any
	checks []fieldCheck
	arrays []arrayCheck
	all    bool
}

type arrayCheck struct {
	path  string
	value any
	rules ArrayRules
}

type outcome struct {
	errs map[string]FieldError
	// replace lists the scopes whose errors errs replaces. A scope whose
	// schema run failed is left untouched.
	replace   []string
	exception *FieldError
	valid     bool
}

func inScope(path, scope string) bool {
	return scope == "" || fieldpath.Within(path, scope)
}

// validate runs one request end to end and reports whether it passed.
func (f *Form) validate(ctx context.Context, paths []string, src source) bool {
	f.mu.Lock()
	r := f.beginLocked(paths, src)
	f.mu.Unlock()
	f.emit(Event{Kind: EventState})

	out := f.compute(ctx, r)

	f.mu.Lock()
	changed := f.applyLocked(r, out)
	f.mu.Unlock()
	if changed {
		f.emit(Event{Kind: EventErrors, Path: strings.Join(paths, ",")})
	}
	f.emit(Event{Kind: EventState})
	return out.valid
}

func (f *Form) beginLocked(paths []string, src source) *run {
	r := &run{
		id:     f.fc.nextID(),
		src:    src,
		paths:  paths,
		values: clone.Map(f.fc.values),
		all:    f.fc.criteria == CriteriaAll,
	}
	scopes := paths
	if paths == nil {
		f.fc.wholeForm = r.id
		f.fc.beginValidating("")
		scopes = []string{""}
	} else {
		for _, p := range paths {
			f.fc.latest[p] = r.id
			f.fc.beginValidating(p)
		}
	}
	seen := map[string]bool{}
	for _, s := range scopes {
		for _, c := range f.registeredWithinLocked(s, r.values) {
			if !seen[c.path] {
				seen[c.path] = true
				r.checks = append(r.checks, c)
			}
		}
	}
	for ap, a := range f.fc.arrays {
		if !a.live || (a.rules.Validate == nil && a.rules.MinLength <= 0 && a.rules.MaxLength <= 0) {
			continue
		}
		for _, s := range scopes {
			if inScope(ap, s) {
				v, _ := fieldpath.Get(r.values, ap)
				r.arrays = append(r.arrays, arrayCheck{path: ap, value: v, rules: a.rules})
				break
			}
		}
	}
	return r
}

type partialJob struct {
	path string
	sub  *analysis.SubSchema
}

func (f *Form) compute(ctx context.Context, r *run) *outcome {
	out := &outcome{errs: map[string]FieldError{}}

	var (
		jobs     []partialJob
		fallback []string
		needFull = r.paths == nil
	)
	rootEffects := f.analyzer.HasRootEffects(f.schema)
	for _, p := range r.paths {
		res := f.analyzer.AnalyzeSchemaPath(f.schema, p)
		if res.Reason == analysis.ReasonInvalidPath {
			f.log.Warn("path not in schema", "path", p, "source", r.src.String(), "reason", res.Describe())
		}
		if rootEffects {
			fallback = append(fallback, p)
			needFull = true
			continue
		}
		sub, ok := f.analyzer.ExtractSubSchema(f.schema, p)
		if !res.CanPartialValidate || !ok {
			f.log.Debug("validating with full schema", "path", p, "source", r.src.String(), "reason", res.Describe())
			fallback = append(fallback, p)
			needFull = true
			continue
		}
		jobs = append(jobs, partialJob{path: p, sub: sub})
	}
	if rootEffects && len(r.paths) > 0 {
		f.log.Debug("validating with full schema", "paths", r.paths, "reason", string(analysis.ReasonRootEffects))
	}

	partial := make([]map[string]FieldError, len(jobs))
	failures := make([]error, len(jobs)+1)
	var full map[string]FieldError

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	if needFull {
		g.Go(func() error {
			full, failures[len(jobs)] = f.parseFull(ctx, r.values, r.all)
			return nil
		})
	}
	for i, j := range jobs {
		g.Go(func() error {
			partial[i], failures[i] = f.parsePartial(ctx, j, r.values, r.all)
			return nil
		})
	}
	_ = g.Wait()

	fullFailed := needFull && failures[len(jobs)] != nil
	if !fullFailed {
		if r.paths == nil {
			maps.Copy(out.errs, full)
			out.replace = append(out.replace, "")
		}
		for _, p := range fallback {
			for k, e := range full {
				if inScope(k, p) {
					out.errs[k] = e
				}
			}
			out.replace = append(out.replace, p)
		}
	}
	for i, j := range jobs {
		if failures[i] != nil {
			continue
		}
		maps.Copy(out.errs, partial[i])
		out.replace = append(out.replace, j.path)
	}

	f.runChecks(ctx, r, out)

	for _, err := range failures {
		if err != nil {
			f.log.Error("schema failed", "error", err)
			e := exceptionError(err)
			out.exception = &e
			break
		}
	}
	out.valid = out.exception == nil && len(out.errs) == 0
	return out
}

func (f *Form) parseFull(ctx context.Context, values map[string]any, all bool) (map[string]FieldError, error) {
	_, err := formskema.ParseSafely(ctx, f.schema, values)
	return schemaErrors("", err, all)
}

func (f *Form) parsePartial(ctx context.Context, j partialJob, values map[string]any, all bool) (map[string]FieldError, error) {
	v, _ := fieldpath.Get(values, j.path)
	fp, cacheable := fingerprint(v)
	if cacheable {
		if vd, ok := f.fc.cache.get(j.path, fp); ok {
			return vd.errs, nil
		}
	}
	_, err := formskema.ParseSafely(ctx, j.sub.Schema, v)
	errs, failure := schemaErrors(j.path, err, all)
	if failure == nil && cacheable {
		f.fc.cache.put(j.path, fp, verdict{errs: errs})
	}
	return errs, failure
}

// schemaErrors splits a Parse error into field errors and an unexpected
// failure.
func schemaErrors(base string, err error, all bool) (map[string]FieldError, error) {
	if err == nil {
		return nil, nil
	}
	if iss, ok := formskema.AsIssues(err); ok {
		return issueErrors(base, iss, all), nil
	}
	return nil, err
}

type namedValidator struct {
	name string
	fn   Validator
}

func fieldValidators(o RegisterOptions) []namedValidator {
	var out []namedValidator
	if o.Validate != nil {
		out = append(out, namedValidator{name: TypeValidate, fn: o.Validate})
	}
	names := make([]string, 0, len(o.Validators))
	for n := range o.Validators {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if o.Validators[n] != nil {
			out = append(out, namedValidator{name: n, fn: o.Validators[n]})
		}
	}
	return out
}

// runChecks runs registered validators and array rules concurrently and
// merges their results into out.
func (f *Form) runChecks(ctx context.Context, r *run, out *outcome) {
	type job struct {
		path  string
		value any
		list  []namedValidator
	}
	var jobs []job
	for _, c := range r.checks {
		jobs = append(jobs, job{path: c.path, value: c.value, list: fieldValidators(c.opts)})
	}
	for _, a := range r.arrays {
		jobs = append(jobs, job{path: a.path, value: a.value, list: a.rules.validators()})
	}
	if len(jobs) == 0 {
		return
	}
	replaced := func(p string) bool {
		for _, s := range out.replace {
			if inScope(p, s) {
				return true
			}
		}
		return false
	}

	results := make([]*FieldError, len(jobs))
	failures := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		if !replaced(j.path) {
			continue
		}
		var prior *FieldError
		if e, ok := out.errs[j.path]; ok {
			prior = &e
		}
		g.Go(func() error {
			results[i], failures[i] = f.runValidators(ctx, j.path, j.value, j.list, prior, r.all)
			return nil
		})
	}
	_ = g.Wait()
	for i, j := range jobs {
		if failures[i] != nil {
			f.log.Error("validator failed unexpectedly", "path", j.path, "error", failures[i])
			if out.exception == nil {
				e := exceptionError(failures[i])
				out.exception = &e
			}
			continue
		}
		if results[i] != nil {
			out.errs[j.path] = *results[i]
		}
	}
}

// validatorPanic wraps a value recovered from a validator.
type validatorPanic struct{ v any }

func (p validatorPanic) Error() string { return fmt.Sprintf("form: validator panicked: %v", p.v) }

func callValidator(ctx context.Context, fn Validator, v any) (msg string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			msg, err = "", validatorPanic{rec}
		}
	}()
	return fn(ctx, v)
}

// runValidators applies list after the schema verdict prior. With
// first-error semantics it stops at the first failure, or skips entirely
// when the schema already failed. The returned error reports a panic.
func (f *Form) runValidators(ctx context.Context, path string, v any, list []namedValidator, prior *FieldError, all bool) (*FieldError, error) {
	var e *FieldError
	if prior != nil {
		cp := *prior
		cp.Types = maps.Clone(prior.Types)
		e = &cp
	}
	for _, nv := range list {
		if e != nil && !all {
			break
		}
		msg, err := callValidator(ctx, nv.fn, v)
		typ := nv.name
		if err != nil {
			var vp validatorPanic
			if errors.As(err, &vp) {
				return nil, err
			}
			if iss, ok := formskema.AsIssues(err); ok && len(iss) > 0 {
				typ, msg = iss[0].Code, iss[0].Message
			} else {
				msg = i18n.T("validation_failed", nil)
			}
			f.log.Debug("validator rejected value", "path", path, "validator", nv.name, "error", err)
		} else if msg == "" {
			continue
		}
		if e == nil {
			e = &FieldError{Type: typ, Message: msg}
		}
		if all {
			if e.Types == nil {
				e.Types = map[string]string{}
			}
			if _, dup := e.Types[typ]; !dup {
				e.Types[typ] = msg
			}
		}
	}
	return e, nil
}

// applyLocked writes a computed outcome. Keys overtaken by a newer request
// are skipped; everything else in the replaced scopes is updated in one
// pass under the lock. Errors found on submit are shown without DelayError.
func (f *Form) applyLocked(r *run, out *outcome) bool {
	immediate := r.src == sourceSubmit
	if r.paths == nil {
		f.fc.endValidating("")
	} else {
		for _, p := range r.paths {
			f.fc.endValidating(p)
		}
	}
	changed := false
	for _, scope := range out.replace {
		keys := map[string]struct{}{}
		for k := range f.fc.errors {
			if inScope(k, scope) {
				keys[k] = struct{}{}
			}
		}
		for k := range f.fc.pending {
			if inScope(k, scope) {
				keys[k] = struct{}{}
			}
		}
		for k := range out.errs {
			if inScope(k, scope) {
				keys[k] = struct{}{}
			}
		}
		for k := range keys {
			if f.fc.superseded(k, r.id) {
				continue
			}
			var e *FieldError
			if v, ok := out.errs[k]; ok {
				e = &v
			}
			if f.setErrorLocked(k, e, immediate) {
				changed = true
			}
		}
	}
	if out.exception != nil && !f.fc.superseded(RootKey, r.id) {
		if f.setErrorLocked(RootKey, out.exception, immediate) {
			changed = true
		}
	}
	return changed
}
