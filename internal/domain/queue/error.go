package queue

import "errors"

var (
	ErrNotFound       = errors.New("queue item not found")
	ErrInvalidAction  = errors.New("invalid mutation action")
	ErrInvalidPayload = errors.New("invalid mutation payload")
	ErrInvalidState   = errors.New("queue item is not in a state that allows this operation")
)
