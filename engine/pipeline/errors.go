package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is matched by errors.Is for DuplicateNameError.
	ErrDuplicateName = errors.New("module name already registered")

	// ErrModuleNotFound is returned by typed lookups when no module has the requested name.
	ErrModuleNotFound = errors.New("module not found")

	// ErrModuleKindMismatch is matched by errors.Is for KindMismatchError.
	ErrModuleKindMismatch = errors.New("module kind mismatch")
)

// DuplicateNameError is returned by RegisterModule when a module with the same name exists.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateName, e.Name)
}

func (e *DuplicateNameError) Unwrap() error {
	return ErrDuplicateName
}

// KindMismatchError is returned when a module exists under a name but is not of the requested kind.
type KindMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("%s: %q is a %s module, want %s", ErrModuleKindMismatch, e.Name, e.Got, e.Want)
}

func (e *KindMismatchError) Unwrap() error {
	return ErrModuleKindMismatch
}
