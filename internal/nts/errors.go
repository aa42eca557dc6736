package nts

import "errors"

var (
	ErrTaskStopped  = errors.New("nts: task stopped")
	ErrPauseTimeout = errors.New("nts: pause confirmation timeout")
)
