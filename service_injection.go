package formskema

import "context"

// serviceKey is a unique key per type parameter T for context storage.
type serviceKey[T any] struct{}

// WithService stores a typed service in ctx. Async field validators and
// refinements look services up with Service, e.g. a username lookup client.
func WithService[T any](ctx context.Context, svc T) context.Context {
	return context.WithValue(ctx, serviceKey[T]{}, svc)
}

// Service retrieves a typed service from ctx.
func Service[T any](ctx context.Context) (T, bool) {
	svc, ok := ctx.Value(serviceKey[T]{}).(T)
	return svc, ok
}

// RequireService returns the service, or Issues with
// CodeDependencyUnavailable when it was not provided.
func RequireService[T any](ctx context.Context) (T, error) {
	if svc, ok := Service[T](ctx); ok {
		return svc, nil
	}
	var zero T
	return zero, Issues{Issue{Path: "/", Code: CodeDependencyUnavailable, Message: "service not provided"}}
}
