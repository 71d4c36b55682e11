package fitbridge

import (
	"errors"
	"fmt"
)

// ErrUnknownDataType is returned for recording requests outside AllDataTypes.
var ErrUnknownDataType = errors.New("unknown data type")

var errNilFailure = errors.New("failed without an error")

// NoDataError reports a query that succeeded but matched no samples.
type NoDataError struct {
	Kind string // steps|distance|calorie|weight|height
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("There is no any %s data for this period", e.Kind)
}

// InvalidDateError reports a date option that could not be parsed.
type InvalidDateError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidDateError) Unwrap() error {
	return e.Err
}

// BackendError wraps a failure reported by the fitness backend. The message
// is the backend's own.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// IsNoData reports whether err is a NoDataError.
func IsNoData(err error) bool {
	var nd *NoDataError
	return errors.As(err, &nd)
}
