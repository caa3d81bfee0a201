package entities

// WorkflowStage names the step of the sync workflow an outcome refers to.
type WorkflowStage string

const (
	StagePush      WorkflowStage = "push"
	StageReadBack  WorkflowStage = "read_back"
	StageReconcile WorkflowStage = "reconcile"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable_failure"
	case OutcomeFatal:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// SyncOutcome is the tagged result of one workflow attempt. The processor
// branches on Kind; Err is only set on failures.
type SyncOutcome struct {
	Kind     OutcomeKind
	Stage    WorkflowStage
	LegacyID string
	Err      error
}

func Succeeded(legacyID string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeSuccess, Stage: StageReconcile, LegacyID: legacyID}
}

func RetryableFailure(stage WorkflowStage, err error) SyncOutcome {
	return SyncOutcome{Kind: OutcomeRetryable, Stage: stage, Err: err}
}

func FatalFailure(stage WorkflowStage, err error) SyncOutcome {
	return SyncOutcome{Kind: OutcomeFatal, Stage: stage, Err: err}
}

func (o SyncOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

func (o SyncOutcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return string(o.Stage) + ": " + o.Err.Error()
}
