// Package ctxstore stores typed request-scoped values on a context.
package ctxstore

import "context"

type Key string

func (k Key) String() string {
	return string(k)
}

func With[T any](ctx context.Context, key Key, value T) context.Context {
	return context.WithValue(ctx, key, value)
}

// From returns the value stored under key, or the zero value and false
func From[T any](ctx context.Context, key Key) (T, bool) {
	value, ok := ctx.Value(key).(T)
	return value, ok
}

// MustFrom panics when key is missing or holds another type. Use it only
// behind middleware that guarantees the value.
func MustFrom[T any](ctx context.Context, key Key) T {
	value, ok := From[T](ctx, key)
	if !ok {
		panic("ctxstore: " + key.String() + " not found")
	}
	return value
}
