package entity

import "errors"

var (
	ErrNotFound        = errors.New("entity snapshot not found")
	ErrInvalidType     = errors.New("invalid entity type")
	ErrInvalidID       = errors.New("invalid entity id")
	ErrInvalidSnapshot = errors.New("invalid entity snapshot")
)
