package processor

type Status int32

const (
	StatusActive Status = iota
	StatusStopped
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusStopped:
		return "stopped"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Decision is what an ErrorHandler wants the processor to do after a failed task.
type Decision int

const (
	// Continue keeps processing the queue.
	Continue Decision = iota
	// Abort drops all pending tasks and stops the processor for good.
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// ErrorHandler decides how a processor reacts to a failed task. It runs on
// the processor's worker and sees every failure exactly once.
type ErrorHandler func(err error) Decision

// ContinueOnError is the default ErrorHandler.
func ContinueOnError(error) Decision { return Continue }

// AbortOnError stops the processor on the first failure.
func AbortOnError(error) Decision { return Abort }
