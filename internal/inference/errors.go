package inference

import "fmt"

// TransportError means no usable response arrived: network failure, timeout,
// non-success status, blocked or empty answer.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inference transport (%s): %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ContractViolation means a response arrived but does not match the
// assessment schema.
type ContractViolation struct {
	Reason string
	Err    error
}

func (e *ContractViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference contract violation: %s: %v", e.Reason, e.Err)
	}
	return "inference contract violation: " + e.Reason
}

func (e *ContractViolation) Unwrap() error { return e.Err }
