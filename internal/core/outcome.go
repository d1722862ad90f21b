package core

// Process exit codes. These are part of the command-line contract and must not change.
const (
	ExitSuccess          = 0
	ExitIOError          = 1
	ExitUsage            = 2 // argument parsing and validation
	ExitRetriesExhausted = 3
	ExitStopped          = 4
)

// Outcome is the terminal result of a whole retry run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetriesExhausted
	OutcomeStopped
	OutcomeIOError
)

// ExitCode maps the outcome onto the process exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return ExitSuccess
	case OutcomeRetriesExhausted:
		return ExitRetriesExhausted
	case OutcomeStopped:
		return ExitStopped
	default:
		return ExitIOError
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetriesExhausted:
		return "retries_exhausted"
	case OutcomeStopped:
		return "stopped"
	case OutcomeIOError:
		return "io_error"
	default:
		return "unknown"
	}
}
