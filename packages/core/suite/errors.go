package suite

import "errors"

var (
	// ErrSealed is raised when a registration call happens after the tree
	// was handed over for execution.
	ErrSealed = errors.New("suite: registration after the tree was sealed")

	// ErrNilDefinition is raised when a context is registered without a
	// definition function.
	ErrNilDefinition = errors.New("suite: nil context definition")

	// ErrNoBody is recorded on an executed task that has no body.
	ErrNoBody = errors.New("suite: task has no body")
)
