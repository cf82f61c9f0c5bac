package interpreter

import "fmt"

// ParseError represents a failure to structurally parse a payment document.
type ParseError struct {
	Shape string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s document: %v", e.Shape, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
