package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrLockedResource: mutation attempted on a finalized inspection
// without edit mode. Checked before any write.
var ErrLockedResource = errors.New("fiscalização finalizada: dados bloqueados para edição")

// ErrOffline: the operation needs the remote store, no local-only path
// exists, and the device has no connection. Fails immediately, no retry.
var ErrOffline = errors.New("sem conexão de internet")

// RemoteWriteError wraps a rejected remote write so callers can tell a
// store rejection apart from local failures.
type RemoteWriteError struct {
	Entity string
	Op     string
	Err    error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }
