package swrcache

import (
	"errors"
	"fmt"
)

// ErrDisposed matches every DisposedError via errors.Is.
var ErrDisposed = errors.New("swrcache: cache disposed")

// DisposedError is returned by access methods once a cache has been disposed.
type DisposedError struct {
	Name string
}

func (e *DisposedError) Error() string {
	return fmt.Sprintf("swrcache: cache %q has been disposed", e.Name)
}

func (e *DisposedError) Is(target error) bool { return target == ErrDisposed }

// ErrCyclicKey matches every KeyError via errors.Is.
var ErrCyclicKey = errors.New("swrcache: cyclic key")

// KeyError is returned when a key refers back to itself and so has no
// canonical form. Methods without an error result treat such a key as absent.
type KeyError struct {
	Name string
	Err  error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("swrcache: cache %q: %v", e.Name, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

func (e *KeyError) Is(target error) bool { return target == ErrCyclicKey }

// PanicError carries a value recovered from a panicking fetcher.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("swrcache: fetcher panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
