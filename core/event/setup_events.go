package event

import "time"

// SetupQueued is published when a setup is handed to the scheduler.
type SetupQueued struct {
	baseSetupEvent
}

func NewSetupQueued(setupID, label string) *SetupQueued {
	return &SetupQueued{baseSetupEvent: baseSetupEvent{setupID: setupID, label: label}}
}

func (e *SetupQueued) EventName() string {
	return "SetupQueued"
}

// SetupStarted is published at the beginning of every attempt.
type SetupStarted struct {
	baseSetupEvent
	Attempt int
}

func NewSetupStarted(setupID, label string, attempt int) *SetupStarted {
	return &SetupStarted{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Attempt:        attempt,
	}
}

func (e *SetupStarted) EventName() string {
	return "SetupStarted"
}

// SetupRetrying is published when an attempt failed and another one follows.
type SetupRetrying struct {
	baseSetupEvent
	Retry   int
	Retries int
	Error   error
}

func NewSetupRetrying(setupID, label string, retry, retries int, err error) *SetupRetrying {
	return &SetupRetrying{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Retry:          retry,
		Retries:        retries,
		Error:          err,
	}
}

func (e *SetupRetrying) EventName() string {
	return "SetupRetrying"
}

// SetupSucceeded is published when the login state was saved.
type SetupSucceeded struct {
	baseSetupEvent
	StorageStateFile string
	Duration         time.Duration
}

func NewSetupSucceeded(setupID, label, storageStateFile string, d time.Duration) *SetupSucceeded {
	return &SetupSucceeded{
		baseSetupEvent:   baseSetupEvent{setupID: setupID, label: label},
		StorageStateFile: storageStateFile,
		Duration:         d,
	}
}

func (e *SetupSucceeded) EventName() string {
	return "SetupSucceeded"
}

// SetupCached is published when a fresh login state already exists.
type SetupCached struct {
	baseSetupEvent
}

func NewSetupCached(setupID, label string) *SetupCached {
	return &SetupCached{baseSetupEvent: baseSetupEvent{setupID: setupID, label: label}}
}

func (e *SetupCached) EventName() string {
	return "SetupCached"
}

// SkipReason explains why a setup did not run.
type SkipReason string

const (
	SkipReasonOnCI       SkipReason = "skipOnCI"
	SkipReasonHeadedOnCI SkipReason = "forceHeadlessToFalse"
)

// SetupSkipped is published when a setup is not executed in this environment.
type SetupSkipped struct {
	baseSetupEvent
	Reason SkipReason
}

func NewSetupSkipped(setupID, label string, reason SkipReason) *SetupSkipped {
	return &SetupSkipped{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Reason:         reason,
	}
}

func (e *SetupSkipped) EventName() string {
	return "SetupSkipped"
}

// SetupTolerated is published when a setup failed because its site is not
// configured for the selected environment. The run goes on without it.
type SetupTolerated struct {
	baseSetupEvent
	Env   string
	Error error
}

func NewSetupTolerated(setupID, label, env string, err error) *SetupTolerated {
	return &SetupTolerated{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Env:            env,
		Error:          err,
	}
}

func (e *SetupTolerated) EventName() string {
	return "SetupTolerated"
}

// SetupFailed is published when every attempt of a setup failed.
type SetupFailed struct {
	baseSetupEvent
	Error error
}

func NewSetupFailed(setupID, label string, err error) *SetupFailed {
	return &SetupFailed{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Error:          err,
	}
}

func (e *SetupFailed) EventName() string {
	return "SetupFailed"
}

// ArtifactSaved is published when a failure screenshot was written.
type ArtifactSaved struct {
	baseSetupEvent
	Path string
}

func NewArtifactSaved(setupID, label, path string) *ArtifactSaved {
	return &ArtifactSaved{
		baseSetupEvent: baseSetupEvent{setupID: setupID, label: label},
		Path:           path,
	}
}

func (e *ArtifactSaved) EventName() string {
	return "ArtifactSaved"
}
