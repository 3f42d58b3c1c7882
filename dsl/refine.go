package dsl

import (
	"context"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/i18n"
)

// valueRefine is a field-level refinement. It only sees the value of the
// schema it is attached to.
type valueRefine struct {
	name string
	fn   func(context.Context, any) error
}

func runValueRefines(ctx context.Context, refines []valueRefine, v any) formskema.Issues {
	var iss formskema.Issues
	for _, r := range refines {
		if err := r.fn(ctx, v); err != nil {
			iss = formskema.AppendIssues(iss, refineIssues("/", r.name, err)...)
		}
	}
	return iss
}

// refineIssues converts a refinement error into issues. Issues are kept as
// returned; other errors become a custom issue at path.
func refineIssues(path, name string, err error) formskema.Issues {
	if iss, ok := formskema.AsIssues(err); ok {
		out := make(formskema.Issues, 0, len(iss))
		for _, it := range iss {
			if it.Code == "" {
				it.Code = formskema.CodeCustom
			}
			if it.Path == "" {
				it.Path = path
			}
			if it.Rule == "" {
				it.Rule = name
			}
			out = append(out, it)
		}
		return out
	}
	msg := err.Error()
	if msg == "" {
		msg = i18n.T(formskema.CodeCustom, nil)
	}
	return formskema.Issues{{Path: path, Code: formskema.CodeCustom, Message: msg, Cause: err, Rule: name}}
}

func messageOr(custom []string, code string, data map[string]string) string {
	if len(custom) > 0 && custom[0] != "" {
		return custom[0]
	}
	return i18n.T(code, data)
}

func requiredIssue() formskema.Issues {
	return formskema.Issues{{Path: "/", Code: formskema.CodeRequired, Message: i18n.T(formskema.CodeRequired, nil)}}
}

func invalidType(expected string) formskema.Issues {
	return formskema.Issues{{Path: "/", Code: formskema.CodeInvalidType, Message: i18n.T(formskema.CodeInvalidType, nil), Hint: "expected " + expected}}
}
