package data

import "errors"

var (
	// ErrUnknownType is returned when an entity kind is not registered.
	ErrUnknownType = errors.New("unknown data type")

	// ErrNotFound is returned when no entity exists under the requested id.
	ErrNotFound = errors.New("data entity not found")

	// ErrCorruptData is returned when the backing artifact cannot be deserialized.
	ErrCorruptData = errors.New("corrupt data entity")

	// ErrLocked is returned when an entity is read while a write scope is open.
	// Acquisition is fail-fast, never blocking.
	ErrLocked = errors.New("data entity locked for writing")

	// ErrTypeMismatch is returned by plugins when a received entity does not
	// match their declared input contract.
	ErrTypeMismatch = errors.New("data entity type mismatch")

	// ErrReleased is returned when a handle is used after its scope exited.
	ErrReleased = errors.New("data entity handle already released")
)
