package analysis

// Outcome is the result of an analyzer that may be unavailable: either
// Available(value) or Unavailable(reason). Consumers match on Get instead of
// relying on zero values.
type Outcome[T any] struct {
	value  T
	reason string
	ok     bool
}

func Available[T any](v T) Outcome[T] { return Outcome[T]{value: v, ok: true} }

func Unavailable[T any](reason string) Outcome[T] { return Outcome[T]{reason: reason} }

// Get returns the value and whether it is available.
func (o Outcome[T]) Get() (T, bool) { return o.value, o.ok }

func (o Outcome[T]) Available() bool { return o.ok }

// Reason is empty for available outcomes.
func (o Outcome[T]) Reason() string { return o.reason }

// OrElse returns the value, or def when unavailable.
func (o Outcome[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}
