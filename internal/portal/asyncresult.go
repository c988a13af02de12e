package portal

import "encoding/json"

// Status tags an AsyncResult. A field is pending until its fetch
// finishes, then exactly one of success or failure.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// AsyncResult carries one portal field together with the outcome of the
// fetch that produced it, so a view can render each section
// independently instead of tracking loading/error flags per field.
type AsyncResult[T any] struct {
	Status Status
	Value  T
	Err    error
}

func Pending[T any]() AsyncResult[T] {
	return AsyncResult[T]{Status: StatusPending}
}

func Success[T any](v T) AsyncResult[T] {
	return AsyncResult[T]{Status: StatusSuccess, Value: v}
}

func Failure[T any](err error) AsyncResult[T] {
	return AsyncResult[T]{Status: StatusFailure, Err: err}
}

// Resolve folds a (value, error) pair into a settled result.
func Resolve[T any](v T, err error) AsyncResult[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// Settled reports whether the fetch has finished, either way.
func (r AsyncResult[T]) Settled() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailure
}

// Unwrap returns the value and error in Go's usual shape.
func (r AsyncResult[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

func (r AsyncResult[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Status Status `json:"status"`
		Value  any    `json:"value,omitempty"`
		Error  string `json:"error,omitempty"`
	}{Status: r.Status}

	switch r.Status {
	case StatusSuccess:
		out.Value = r.Value
	case StatusFailure:
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
	}

	return json.Marshal(out)
}
