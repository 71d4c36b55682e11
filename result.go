package fitbridge

// Result carries either a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps an error. A nil err is not allowed and is replaced with a
// generic failure so the result never looks successful.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errNilFailure
	}
	return Result[T]{err: err}
}

func resultOf[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Get returns the value and error like a regular call.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Value returns the value; it is the zero value for failures.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil for a success.
func (r Result[T]) Err() error {
	return r.err
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.err == nil
}
