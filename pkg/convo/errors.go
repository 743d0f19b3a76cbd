package convo

import "errors"

// Sentinel errors.
var (
	// ErrMissingDependency is returned by New when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("convo: missing dependency")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("convo: invalid config")

	// ErrAlreadyRunning is returned by Run when the machine is
	// already running.
	ErrAlreadyRunning = errors.New("convo: machine already running")

	// ErrNotRunning is returned by Wake before Run has started or
	// after shutdown began.
	ErrNotRunning = errors.New("convo: machine not running")
)
