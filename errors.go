package netfs

import (
	"errors"
	"fmt"
)

// Common filesystem errors
var (
	ErrNotExist        = errors.New("file does not exist")
	ErrNotDir          = errors.New("not a directory")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidURI      = errors.New("invalid uri")
	ErrConnection      = errors.New("connection failed")
	ErrAuth            = errors.New("authentication failed")
	ErrNotSupported    = errors.New("operation not supported")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// WrapPathErr wraps err into a *PathError unless it already is one.
func WrapPathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsConnection reports whether an error indicates that the backend could
// not be reached
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsAuth reports whether an error indicates that the backend rejected the
// credentials
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}
