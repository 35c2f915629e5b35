// Package syncer drives the per-user pipeline: validate or refresh the
// source session, fetch measurements, snapshot and display them, encode the
// activity file, and deliver it to the destination account. Users are
// processed sequentially; a failure in one user's pipeline never aborts the
// others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/filex"
	"github.com/dmitrijs2005/scalesync/internal/fit"
	"github.com/dmitrijs2005/scalesync/internal/garmin"
	"github.com/dmitrijs2005/scalesync/internal/logging"
	"github.com/dmitrijs2005/scalesync/internal/models"
	"github.com/dmitrijs2005/scalesync/internal/report"
	"github.com/dmitrijs2005/scalesync/internal/snapshot"
	"github.com/dmitrijs2005/scalesync/internal/xiaomi"
)

// SourceSession is the source-account contract the orchestrator needs.
type SourceSession interface {
	ValidateOrRefresh(ctx context.Context) (*models.SourceToken, error)
	FetchMeasurements(ctx context.Context, model string) ([]models.Measurement, error)
}

// DestinationSession is the destination-account contract.
type DestinationSession interface {
	Login(ctx context.Context) bool
	Upload(ctx context.Context, filename string, data []byte) (garmin.UploadOutcome, error)
}

// TokenStore persists refreshed source-session material.
type TokenStore interface {
	UpdateUserToken(username string, tok models.SourceToken) error
}

// Options carry the run flags. Sync implies GenerateFIT; Normalize enforces
// that coupling.
type Options struct {
	Limit       int
	GenerateFIT bool
	Sync        bool
	OutputDir   string
	SnapshotDir string
}

// Normalize applies flag implications and defaults.
func (o *Options) Normalize() {
	if o.Sync {
		o.GenerateFIT = true
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.OutputDir == "" {
		o.OutputDir = filepath.Join("data", "garmin-fit")
	}
	if o.SnapshotDir == "" {
		o.SnapshotDir = "data"
	}
}

// Orchestrator runs the pipeline for each configured user.
type Orchestrator struct {
	store TokenStore
	opts  Options
	log   logging.Logger
	out   io.Writer

	// Session construction is injected so tests can substitute fakes.
	newSource func(username string, tok models.SourceToken) (SourceSession, error)
	newDest   func(creds models.GarminCredentials) (DestinationSession, error)
	now       func() time.Time
}

// New builds an orchestrator wired to the real cloud sessions.
func New(store TokenStore, opts Options, log logging.Logger, out io.Writer) *Orchestrator {
	opts.Normalize()
	return &Orchestrator{
		store: store,
		opts:  opts,
		log:   log,
		out:   out,
		newSource: func(username string, tok models.SourceToken) (SourceSession, error) {
			return xiaomi.NewSession(username, tok)
		},
		newDest: func(creds models.GarminCredentials) (DestinationSession, error) {
			return garmin.NewSession(creds, log)
		},
		now: time.Now,
	}
}

// Run processes every user in order and returns the aggregated summary.
func (o *Orchestrator) Run(ctx context.Context, users []*models.User) Summary {
	var sum Summary
	for _, u := range users {
		r := o.processUser(ctx, u)
		sum.Add(r)
		if r.Status == StatusFailed {
			o.log.Error(ctx, "user processing failed",
				"username", r.Username, "stage", r.Stage, "error", r.Err)
		}
	}
	return sum
}

// processUser walks one user through the state machine. Every stage is an
// exit point; no stage error escapes this function.
func (o *Orchestrator) processUser(ctx context.Context, user *models.User) UserResult {
	res := UserResult{Username: user.Username}

	if !user.Actionable() {
		fmt.Fprintf(o.out, "No valid token for %s. Run `scalesync login` to generate one.\n", user.Username)
		res.Status = StatusNotActionable
		return res
	}

	fmt.Fprintf(o.out, "Processing user: %s\n", user.Username)

	src, err := o.newSource(user.Username, user.Token)
	if err != nil {
		return fail(res, "session", err)
	}

	sess := o.validateSession(ctx, src, user.Username)
	if sess.Err != nil {
		if errors.Is(sess.Err, common.ErrSessionExpired) {
			fmt.Fprintf(o.out, "Saved token for %s was rejected. Run `scalesync login` to generate a new one.\n", user.Username)
		}
		return fail(res, "session", sess.Err)
	}

	fetch := o.fetchMeasurements(ctx, src, user.ScaleModel())
	if fetch.Err != nil {
		return fail(res, "fetch", fetch.Err)
	}
	res.Records = len(fetch.Records)

	if len(fetch.Records) == 0 {
		fmt.Fprintln(o.out, "No weight data found")
		res.Status = StatusSucceeded
		return res
	}

	fmt.Fprintf(o.out, "Successfully retrieved %d weight records\n", len(fetch.Records))
	report.DisplayMeasurements(o.out, fetch.Records, o.opts.Limit)

	if path, err := snapshot.Write(o.opts.SnapshotDir, user.Username, fetch.Records); err != nil {
		o.log.Warn(ctx, "snapshot write failed", "username", user.Username, "error", err)
	} else if path != "" {
		fmt.Fprintf(o.out, "Weight data saved to %s\n", path)
	}

	if !o.opts.GenerateFIT {
		res.Status = StatusSucceeded
		return res
	}

	enc := o.encodeActivity(user.Username, fetch.Records)
	if enc.Err != nil {
		return fail(res, "encode", enc.Err)
	}
	report.ArtifactGenerated(o.out, enc.Path, len(enc.Data))

	if !o.opts.Sync {
		res.Status = StatusSucceeded
		return res
	}

	up := o.upload(ctx, user, filepath.Base(enc.Path), enc.Data)
	switch {
	case up.Skipped:
		fmt.Fprintf(o.out, "⚠️ Garmin credentials missing for %s. Skipping sync.\n", user.Username)
		res.Status = StatusSucceeded
	case up.LoginFailed:
		fmt.Fprintln(o.out, "❌ Garmin login failed. Synchronization aborted.")
		return fail(res, "login", common.ErrLoginFailed)
	case up.Err != nil:
		return fail(res, "upload", up.Err)
	default:
		res.Outcome = up.Outcome
		report.UploadStatus(o.out, up.Outcome.String())
		if up.Outcome.Code == garmin.OutcomeRejected {
			return fail(res, "upload", fmt.Errorf("upload rejected: %s", up.Outcome.Reason))
		}
		res.Status = StatusSucceeded
	}
	return res
}

// validateSession refreshes the cached token and, when the cloud issued new
// material, persists it before any further network call so a later failure
// cannot lose it.
func (o *Orchestrator) validateSession(ctx context.Context, src SourceSession, username string) SessionResult {
	refreshed, err := src.ValidateOrRefresh(ctx)
	if err != nil {
		return SessionResult{Err: err}
	}
	if refreshed == nil {
		return SessionResult{}
	}

	if err := o.store.UpdateUserToken(username, *refreshed); err != nil {
		return SessionResult{Err: fmt.Errorf("persist refreshed token: %w", err)}
	}
	fmt.Fprintln(o.out, "Xiaomi token refreshed and saved")
	return SessionResult{Refreshed: refreshed}
}

func (o *Orchestrator) fetchMeasurements(ctx context.Context, src SourceSession, model string) FetchResult {
	fmt.Fprintf(o.out, "Fetching weight data for model: %s\n", model)
	records, err := src.FetchMeasurements(ctx, model)
	if err != nil {
		return FetchResult{Err: err}
	}
	return FetchResult{Records: records}
}

// encodeActivity materializes the activity file for this run. The file is
// owned by the run that created it and never mutated afterwards.
func (o *Orchestrator) encodeActivity(username string, records []models.Measurement) EncodeResult {
	generated := o.now()

	data, err := fit.NewEncoder(username).Encode(records, generated)
	if err != nil {
		return EncodeResult{Err: err}
	}

	dir, err := filex.EnsureDir(o.opts.OutputDir)
	if err != nil {
		return EncodeResult{Err: err}
	}
	path := filepath.Join(dir, fit.Filename(username, generated))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return EncodeResult{Err: fmt.Errorf("write activity file: %w", err)}
	}
	return EncodeResult{Path: path, Data: data}
}

func (o *Orchestrator) upload(ctx context.Context, user *models.User, filename string, data []byte) UploadResult {
	if !user.Garmin.Complete() {
		return UploadResult{Skipped: true, SkipReason: "credentials missing"}
	}

	dest, err := o.newDest(user.Garmin)
	if err != nil {
		return UploadResult{Err: err}
	}
	if !dest.Login(ctx) {
		return UploadResult{LoginFailed: true}
	}

	fmt.Fprintln(o.out, "Synchronizing to Garmin Connect...")
	outcome, err := dest.Upload(ctx, filename, data)
	if err != nil {
		return UploadResult{Err: err}
	}
	return UploadResult{Outcome: &outcome}
}

func fail(res UserResult, stage string, err error) UserResult {
	res.Status = StatusFailed
	res.Stage = stage
	res.Err = err
	return res
}
