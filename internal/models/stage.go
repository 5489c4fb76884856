package models

// Stage is a step of the per-run state machine:
// Idle -> Fetching -> (FetchFailed | Sampling -> Captioning -> Cleanup -> Done).
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageFetchFailed Stage = "fetch_failed"
	StageSampling    Stage = "sampling"
	StageCaptioning  Stage = "captioning"
	StageCleanup     Stage = "cleanup"
	StageDone        Stage = "done"
)

func (s Stage) String() string {
	return string(s)
}

// IsFinished returns true if no further transition is possible
func (s Stage) IsFinished() bool {
	return s == StageDone || s == StageFetchFailed
}
