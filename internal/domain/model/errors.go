package model

import "errors"

// ErrInvalidInput marks user input that cannot be accepted at the current
// step. It is recovered by re-prompting and never treated as a fault.
var ErrInvalidInput = errors.New("invalid input")
