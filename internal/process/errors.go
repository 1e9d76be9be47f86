package process

import "errors"

var (
	// ErrCommandNotDefined is returned by Run when no command was set.
	ErrCommandNotDefined = errors.New("command not defined")
	// ErrProcessNotStarted is returned by operations that need a live process.
	ErrProcessNotStarted = errors.New("process not started")
	ErrAlreadyStarted    = errors.New("process already started")
	ErrProcessFinished   = errors.New("process already finished")
	ErrInputClosed       = errors.New("process input already closed")
)
