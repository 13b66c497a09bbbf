package gate

import "errors"

// ErrDispatchFailed wraps the error of a dispatch that could not run after
// the gate permitted a fetch.
var ErrDispatchFailed = errors.New("dispatch failed")
