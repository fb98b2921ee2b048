package sync

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrOffline        = errors.New("backend is offline")
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnreachable wraps transport failures talking to the backend.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrRejected marks a request the backend refused for good.
	ErrRejected = errors.New("backend rejected the request")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// Permanent reports whether repeating the request cannot help. Missing
// entities and precondition failures are left to the next pass, which
// re-reads the server and turns them into conflicts.
func (e *StatusError) Permanent() bool {
	if e.Code < 400 || e.Code >= 500 {
		return false
	}
	switch e.Code {
	case http.StatusNotFound,
		http.StatusRequestTimeout,
		http.StatusConflict,
		http.StatusPreconditionFailed,
		http.StatusTooManyRequests:
		return false
	}
	return true
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRejected && e.Permanent()
}
