package syncer

import (
	"github.com/dmitrijs2005/scalesync/internal/garmin"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// Each pipeline stage reports a tagged result value. The orchestrator's
// state machine branches on these instead of catching errors across stage
// boundaries, which keeps per-user failure isolation structural.

// SessionResult is the outcome of validating or refreshing the source token.
type SessionResult struct {
	// Refreshed holds new token material when the cloud rolled the session
	// forward; nil when the cached token is still current.
	Refreshed *models.SourceToken
	Err       error
}

// FetchResult is the outcome of reading the measurement series.
type FetchResult struct {
	Records []models.Measurement
	Err     error
}

// EncodeResult is the outcome of materializing the activity file.
type EncodeResult struct {
	Path string
	Data []byte
	Err  error
}

// UploadResult is the outcome of the delivery attempt. Exactly one of the
// branches applies: skipped (with a reason), a login failure, a transport
// error, or a classified outcome.
type UploadResult struct {
	Skipped     bool
	SkipReason  string
	LoginFailed bool
	Outcome     *garmin.UploadOutcome
	Err         error
}

// UserStatus is the terminal state of one user's pipeline.
type UserStatus int

const (
	// StatusSucceeded: pipeline ran to its natural end, including benign
	// early exits (no data, upload skipped for missing credentials).
	StatusSucceeded UserStatus = iota
	// StatusNotActionable: user skipped before any network traffic.
	StatusNotActionable
	// StatusFailed: a stage failed; later stages did not run.
	StatusFailed
)

// UserResult summarizes one user's run for reporting and the exit policy.
type UserResult struct {
	Username string
	Status   UserStatus
	// Stage names the failing stage when Status is StatusFailed.
	Stage   string
	Err     error
	Records int
	Outcome *garmin.UploadOutcome
}

// Summary aggregates the run across users.
type Summary struct {
	Processed     int
	Succeeded     int
	NotActionable int
	Failed        int
}

// Add folds one user result into the summary.
func (s *Summary) Add(r UserResult) {
	s.Processed++
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusNotActionable:
		s.NotActionable++
	case StatusFailed:
		s.Failed++
	}
}

// ExitCode implements the run-level failure policy: non-zero only when at
// least one user failed and none succeeded. Skipped (not-actionable) users
// and an empty user list exit zero.
func (s *Summary) ExitCode() int {
	if s.Failed > 0 && s.Succeeded == 0 {
		return 1
	}
	return 0
}
