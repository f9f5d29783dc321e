package vault

import "errors"

var (
	ErrItemNotFound    = errors.New("vault item not found")
	ErrInvalidCategory = errors.New("invalid vault item category")
	ErrEmptyTitle      = errors.New("vault item title cannot be empty")
	ErrIndexCorrupted  = errors.New("vault item index is corrupted")
)
