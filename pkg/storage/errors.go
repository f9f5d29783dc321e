package storage

import "errors"

var (
	ErrNotFound       = errors.New("key not found")
	ErrStorageFailure = errors.New("storage operation failed")
)
