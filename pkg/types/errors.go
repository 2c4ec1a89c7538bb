package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreClosed = errors.New("store is closed")
)

// Entity errors returned by the repository layer.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidTitle  = errors.New("title must not be empty")
	ErrInvalidStatus = errors.New("invalid status value")
	ErrDuplicateName = errors.New("name already exists")
	ErrSelfParent    = errors.New("group cannot be its own parent")
)
