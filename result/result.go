// Package result holds the tri-state outcome every repository operation
// returns: Success with a value, Error with a message and optional cause, or
// Loading while a subscription has not produced its first value yet.
package result

import "fmt"

type Kind int

const (
	KindLoading Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "loading"
	}
}

// DefaultErrorMessage is used when an Error is built without a message.
const DefaultErrorMessage = "Ha ocurrido un error inesperado"

type Result[T any] struct {
	kind    Kind
	value   T
	message string
	cause   error
}

func Success[T any](value T) Result[T] {
	return Result[T]{kind: KindSuccess, value: value}
}

func Error[T any](message string, cause error) Result[T] {
	if message == "" {
		message = DefaultErrorMessage
	}
	return Result[T]{kind: KindError, message: message, cause: cause}
}

func Loading[T any]() Result[T] {
	return Result[T]{kind: KindLoading}
}

func (r Result[T]) Kind() Kind       { return r.kind }
func (r Result[T]) IsSuccess() bool  { return r.kind == KindSuccess }
func (r Result[T]) IsError() bool    { return r.kind == KindError }
func (r Result[T]) IsLoading() bool  { return r.kind == KindLoading }
func (r Result[T]) IsTerminal() bool { return r.kind != KindLoading }
func (r Result[T]) Message() string  { return r.message }
func (r Result[T]) Cause() error     { return r.cause }

// Value returns the success value. ok is false for Error and Loading.
func (r Result[T]) Value() (T, bool) {
	if r.kind != KindSuccess {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns nil unless the result is an Error. The returned error unwraps
// to the cause so callers can use errors.Is on sentinels.
func (r Result[T]) Err() error {
	if r.kind != KindError {
		return nil
	}
	return &Failure{Message: r.message, Cause: r.cause}
}

func (r Result[T]) String() string {
	switch r.kind {
	case KindSuccess:
		return fmt.Sprintf("Success(%v)", r.value)
	case KindError:
		return fmt.Sprintf("Error(%s)", r.message)
	default:
		return "Loading"
	}
}

// Failure is the error form of an Error result.
type Failure struct {
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.Message
	}
	return f.Message + ": " + f.Cause.Error()
}

func (f *Failure) Unwrap() error { return f.Cause }

// From converts a (value, error) pair into a Result, using message for the
// error case.
func From[T any](value T, err error, message string) Result[T] {
	if err != nil {
		return Error[T](message, err)
	}
	return Success(value)
}

// Match calls exactly one of the handlers depending on the variant.
func Match[T, R any](r Result[T], onSuccess func(T) R, onError func(string, error) R, onLoading func() R) R {
	switch r.kind {
	case KindSuccess:
		return onSuccess(r.value)
	case KindError:
		return onError(r.message, r.cause)
	default:
		return onLoading()
	}
}

// Map transforms a success value and passes the other variants through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch r.kind {
	case KindSuccess:
		return Success(fn(r.value))
	case KindError:
		return Error[U](r.message, r.cause)
	default:
		return Loading[U]()
	}
}
