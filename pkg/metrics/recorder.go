package metrics

import "time"

// PassLabel identifies the kind of coordinator pass.
type PassLabel string

const (
	PassLoad PassLabel = "load"
	PassSave PassLabel = "save"
)

// OutcomeLabel enumerates pass outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeRejected OutcomeLabel = "rejected"
)

// CallbackLabel identifies a listener callback.
type CallbackLabel string

const (
	CallbackEnter CallbackLabel = "enter"
	CallbackLoad  CallbackLabel = "load"
	CallbackSave  CallbackLabel = "save"
	CallbackExit  CallbackLabel = "exit"
)

// Recorder receives coordinator observations. Implementations must tolerate
// being called re-entrantly from inside listener callbacks.
type Recorder interface {
	ObservePassDuration(pass PassLabel, d time.Duration)
	IncPassOutcome(pass PassLabel, outcome OutcomeLabel)
	ObserveDrainRounds(rounds int)
	AddCallbacks(callback CallbackLabel, n int)
	SetLiveScopes(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePassDuration(PassLabel, time.Duration) {}
func (NoopRecorder) IncPassOutcome(PassLabel, OutcomeLabel)       {}
func (NoopRecorder) ObserveDrainRounds(int)                       {}
func (NoopRecorder) AddCallbacks(CallbackLabel, int)              {}
func (NoopRecorder) SetLiveScopes(int)                            {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
