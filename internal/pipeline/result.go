package pipeline

// Kind is a step's classification of its own outcome.
type Kind int

const (
	KindContinue Kind = iota
	KindStopSuccess
	KindStopFatal
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindStopSuccess:
		return "stop_success"
	case KindStopFatal:
		return "stop_fatal"
	}
	return "unknown"
}

// Result is what a step returns when it did not fail transiently. A step that
// returns a non-nil error instead is always retried under its policy.
type Result struct {
	Kind   Kind
	Output any
	Reason string
}

func Continue(output any) Result {
	return Result{Kind: KindContinue, Output: output}
}

// StopSuccess ends the run because the work is already done.
func StopSuccess(reason string) Result {
	return Result{Kind: KindStopSuccess, Reason: reason}
}

// StopFatal ends the run because retrying cannot help.
func StopFatal(reason string) Result {
	return Result{Kind: KindStopFatal, Reason: reason}
}
