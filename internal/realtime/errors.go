package realtime

import "errors"

var (
	ErrMissingToken     = errors.New("realtime credentials missing token")
	ErrMissingAccountID = errors.New("realtime credentials missing account id")

	errAuthTimeout   = errors.New("auth handshake timed out")
	errAuthRejected  = errors.New("authentication rejected")
	errRetryExceeded = errors.New("reconnect attempts exhausted")
)
