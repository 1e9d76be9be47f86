package process

type ReturnType string

const (
	TypeSuccess  ReturnType = "SUCCESS"
	TypeError    ReturnType = "ERROR"
	TypeTimedOut ReturnType = "TIMED_OUT"
)

// Output is the classified result of one execution. Code is nil when the
// process was killed, in which case Type is always TypeTimedOut. Took is in
// milliseconds, -1 when the start time is unknown.
type Output struct {
	Type ReturnType `json:"type"`
	Code *int       `json:"code"`
	Data string     `json:"data"`
	Took int64      `json:"took"`
}

func (o Output) Succeeded() bool {
	return o.Type == TypeSuccess
}

// ExitCode returns the exit code, or -1 when the process was killed.
func (o Output) ExitCode() int {
	if o.Code == nil {
		return -1
	}
	return *o.Code
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type stream int

const (
	streamNone stream = iota
	streamStdout
	streamStderr
)

func (s stream) String() string {
	switch s {
	case streamStdout:
		return "stdout"
	case streamStderr:
		return "stderr"
	default:
		return "none"
	}
}
