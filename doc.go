// Package formskema provides:
//
// - The schema contract used by the form core (Schema plus the structural
// interfaces ObjectShape, ElementSchema, Wrapper and Effectful)
// - A stable error model via Issues (JSON Pointer, code, message)
// - Context-carried services for validators that need external I/O
//
// Design policy:
// - Keep only the contract in the root package; builders live under dsl/.
// - Path handling lives in fieldpath/, schema analysis in analysis/,
// cross-field refinements in rules/, and the stateful form core in form/.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	s := g.Object().
//	    Field("email", g.String().Email()).
//	    Field("name", g.String().Min(2)).
//	    MustBuild()
//	f, err := form.New(s, form.Options{DefaultValues: map[string]any{"email": "", "name": ""}})
//	ok := f.Trigger(ctx, "email")
package formskema
