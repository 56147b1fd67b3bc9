package registry

import "errors"

var (
	// ErrRegistryFull - returns in case if all slots are used,
	// so the incoming connection should be closed without admission.
	ErrRegistryFull = errors.New("registry.Registry: all slots are in use")

	// ErrDuplicateHandle - returns in case if handle is live already.
	ErrDuplicateHandle = errors.New("registry.Registry: handle is registered already")

	// ErrInvalidHandle - returns for handle which can not identify a connection.
	ErrInvalidHandle = errors.New("registry.Registry: invalid connection handle")
)
