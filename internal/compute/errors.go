package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrDevice indicates the device could not be initialized or was released.
	ErrDevice = errors.New("compute: device error")

	// ErrAlloc indicates a buffer allocation failure.
	ErrAlloc = errors.New("compute: buffer allocation failed")

	// ErrBuild indicates a program failed to build.
	ErrBuild = errors.New("compute: program build failed")

	// ErrDispatch indicates a kernel could not be launched or a work item failed.
	ErrDispatch = errors.New("compute: kernel dispatch failed")

	// ErrTransfer indicates a host/device copy failed.
	ErrTransfer = errors.New("compute: transfer failed")
)

// Error records the device operation and kernel or buffer involved in a failure.
type Error struct {
	Op     string
	Target string
	Err    error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
