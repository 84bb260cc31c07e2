// Package kerror provides a simple error type that works without
// requiring support for allocation or dynamic formatting.
package kerror

// Error describes a kernel error. All kernel errors must be defined as
// global variables that are pointed to when an error occurs.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
