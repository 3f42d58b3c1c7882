// Package dsl provides a Zod-like schema DSL for formskema.
//
// Overview
//   - Primitives: String(), Number(), Bool(), Any(), Enum(...) with chainable rules
//     (Min/Max/Email/Pattern/NonEmpty for strings, Min/Max/Int for numbers).
//   - Containers: Object() builder (Field/Optional/Default/Refine/SuperRefine/Build)
//     and Array(elem) with Min/Max/Refine.
//   - Wrappers: Optional(s), Nullable(s), Default(s, v).
//
// Every schema implements formskema.Schema and the structural interfaces
// (ObjectShape, ElementSchema, Wrapper, Effectful) that the analysis package
// walks to decide whether a single field can be validated in isolation.
//
// Chaining never mutates the receiver: String().Min(2) returns a new schema,
// so a schema value is stable once built and can be used as a cache key.
//
// Missing values
//
// Go has no undefined, so a missing object key and an explicit nil are both
// passed to the field schema as nil. Non-wrapped schemas reject nil with
// CodeRequired; Optional/Nullable accept it; Default substitutes its value.
// Because the object schema always delegates to the field schema, parsing a
// field on its own and parsing it inside its object report the same issue.
//
// Example (cross-field refinement)
//
//	signup := g.Object().
//	    Field("password", g.String().Min(8)).
//	    Field("confirm",  g.String()).
//	    SuperRefine(func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
//	        if v["password"] != v["confirm"] {
//	            return formskema.Issues{root.Field("confirm").Issue(formskema.CodeCustom, "passwords do not match")}
//	        }
//	        return nil
//	    }).
//	    MustBuild()
//
// Example (JSON Schema export)
//
//	sch, _ := signup.JSONSchema()
//	b, _ := json.MarshalIndent(sch, "", "  ")
package dsl
