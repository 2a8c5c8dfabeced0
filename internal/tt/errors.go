package tt

import "errors"

// Error taxonomy surfaced by the engine. Callers classify with errors.Is.
var (
	// ErrNotFound: a source file, contract or manifest does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument: a request that can never succeed as stated, such as
	// splitting a file into chunks at least as large as the file.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIntegrityViolation: bytes disagree with their recorded hash. Never
	// silently accepted.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrTransportFailure: a remote call failed. The unit is retried by running
	// the orchestrator again.
	ErrTransportFailure = errors.New("transport failure")

	// ErrPolicyViolation: a state/policy combination without a defined plan.
	ErrPolicyViolation = errors.New("policy violation")
)
