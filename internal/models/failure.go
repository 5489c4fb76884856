package models

import "fmt"

// FailureKind names the distinct ways a run can go wrong.
type FailureKind string

const (
	FailureInvalidInput      FailureKind = "invalid_input"
	FailureFetch             FailureKind = "fetch_failed"
	FailureSample            FailureKind = "sample_failed"
	FailureSerialize         FailureKind = "serialize_failed"
	FailureEncode            FailureKind = "encode_failed"
	FailureDescribe          FailureKind = "describe_failed"
	FailureMissingCredential FailureKind = "missing_credential"
)

// Terminal reports whether a failure of this kind ends the run.
func (k FailureKind) Terminal() bool {
	switch k {
	case FailureInvalidInput, FailureFetch, FailureMissingCredential:
		return true
	}
	return false
}

// Failure is a typed error carried in results instead of aborting the run.
type Failure struct {
	Kind       FailureKind
	FrameIndex int // -1 when not tied to a frame
	Err        error
}

// NewFailure builds a failure not tied to a particular frame.
func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, FrameIndex: -1, Err: err}
}

// NewFrameFailure builds a failure for the frame at index.
func NewFrameFailure(kind FailureKind, index int, err error) *Failure {
	return &Failure{Kind: kind, FrameIndex: index, Err: err}
}

func (f *Failure) Error() string {
	if f.FrameIndex >= 0 {
		return fmt.Sprintf("%s (frame %d): %v", f.Kind, f.FrameIndex, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
