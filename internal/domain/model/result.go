package model

type TaskKind string

const (
	TaskKindDownload   TaskKind = "download"
	TaskKindTranscript TaskKind = "transcript"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

type FailureReason string

const (
	ReasonNone            FailureReason = ""
	ReasonAgeRestricted   FailureReason = "age_restricted"
	ReasonUnavailable     FailureReason = "unavailable"
	ReasonTooSmall        FailureReason = "too_small"
	ReasonNoSubtitles     FailureReason = "no_subtitles"
	ReasonEmptyTranscript FailureReason = "empty_transcript"
	ReasonDelivery        FailureReason = "delivery"
	ReasonGeneric         FailureReason = "generic"
)

// Result is what a task run step reports back to its wrapper.
type Result struct {
	Outcome Outcome
	Reason  FailureReason
	// Detail carries a user-readable message for a failure, already bounded in length.
	Detail string
	Err    error
}

func Succeeded() Result { return Result{Outcome: OutcomeSucceeded} }

func Failed(reason FailureReason, err error) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

// WithDetail attaches the text shown to the user for this failure.
func (r Result) WithDetail(detail string) Result {
	r.Detail = detail
	return r
}

func TimedOut() Result { return Result{Outcome: OutcomeTimedOut} }

func (r Result) OK() bool { return r.Outcome == OutcomeSucceeded }
