package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/browser"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/publish"
	"github.com/ytget/model-mirror/internal/tracker"
)

// startRun executes one run once a slot is free
func (s *Service) startRun(entry *runEntry) {
	defer s.wg.Done()

	ctx := s.ctx
	modelID := entry.run.ModelID

	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.finish(entry, stageErr(KindCancelled, err))
		return
	}
	defer s.slots.Release(1)

	s.finish(entry, s.safeExecute(ctx, entry))

	s.logger.Debug("Run slot released", zap.String("modelID", modelID))
}

// safeExecute turns a panic in a stage into an InternalFailure so the record
// and the run still reach a terminal state
func (s *Service) safeExecute(ctx context.Context, entry *runEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline panic",
				zap.String("modelID", entry.run.ModelID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = stageErr(KindInternal, fmt.Errorf("panic: %v", r))
		}
	}()
	return s.execute(ctx, entry)
}

// execute walks the pipeline stages. Every returned error is a
// *PipelineError.
func (s *Service) execute(ctx context.Context, entry *runEntry) error {
	modelID := entry.run.ModelID

	captured, err := s.capture(ctx, entry)
	if err != nil {
		return err
	}

	s.advance(entry, model.RunStateFetching)
	payload, err := s.fetcher.Fetch(ctx, captured)
	if err != nil {
		return stageErr(KindFetch, err)
	}
	s.recorder.PayloadFetched(len(payload))
	s.update(entry, func(run *model.UploadRun) { run.PayloadSize = len(payload) })

	if err := s.tracker.SetStatus(ctx, modelID, model.StatusUploading, tracker.MessageFetched); err != nil {
		return stageErr(KindStore, err)
	}

	s.advance(entry, model.RunStatePublishing)
	res, err := s.publisher.Upload(ctx, bytes.NewReader(payload), s.folder, s.resourceKind)
	if err != nil {
		return stageErr(KindPublish, err)
	}
	resultURL := publish.NormalizeURL(res.URL)
	if resultURL == "" {
		return stageErr(KindPublish, publish.ErrNoURL)
	}

	if err := s.tracker.MarkUploaded(ctx, modelID, resultURL); err != nil {
		return stageErr(KindStore, err)
	}
	s.update(entry, func(run *model.UploadRun) { run.ResultURL = resultURL })
	return nil
}

// capture runs the browser stages. The session is closed before it returns,
// so it never outlives the interception.
func (s *Service) capture(ctx context.Context, entry *runEntry) (*model.CapturedRequest, error) {
	s.advance(entry, model.RunStateAuthenticating)

	if err := s.logins.Wait(ctx); err != nil {
		return nil, stageErr(KindAuthentication, fmt.Errorf("wait for login slot: %w", err))
	}

	sess, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, stageErr(KindAuthentication, fmt.Errorf("launch browser: %w", err))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Debug("Failed to close browser session",
				zap.String("runID", entry.run.ID),
				zap.Error(cerr),
			)
		}
	}()

	if err := browser.Authenticate(ctx, sess, s.adapter, s.creds); err != nil {
		return nil, stageErr(KindAuthentication, err)
	}

	s.advance(entry, model.RunStateNavigating)
	if err := browser.OpenDownload(ctx, sess, s.adapter, entry.run.SourceURL); err != nil {
		return nil, stageErr(KindNavigation, err)
	}
	obs, err := browser.Observe(ctx, sess, s.adapter)
	if err != nil {
		return nil, stageErr(KindNavigation, err)
	}
	if err := browser.ConfirmDownload(ctx, sess, s.adapter); err != nil {
		return nil, stageErr(KindNavigation, err)
	}

	s.advance(entry, model.RunStateAwaitingInterception)
	captured, err := obs.Wait(ctx, s.interceptionTimeout)
	if err != nil {
		if errors.Is(err, browser.ErrInterceptionTimeout) {
			return nil, stageErr(KindInterceptionTimeout, err)
		}
		return nil, stageErr(KindNavigation, err)
	}

	forwarded, dropped := obs.Stats()
	s.logger.Debug("Asset request captured",
		zap.String("runID", entry.run.ID),
		zap.Int("forwarded", forwarded),
		zap.Int("dropped", dropped),
	)
	return captured, nil
}

// finish moves the run to its terminal state and records the outcome
func (s *Service) finish(entry *runEntry, err error) {
	modelID := entry.run.ModelID
	outcome := string(model.RunStateSucceeded)
	var kind Kind

	if err != nil {
		outcome = string(model.RunStateFailed)
		kind = s.classify(err)
		if merr := s.tracker.MarkFailed(s.ctx, modelID, kind.String()); merr != nil {
			s.logger.Error("Failed to record failure",
				zap.String("modelID", modelID),
				zap.Error(merr),
			)
		}
		s.logger.Warn("Upload failed",
			zap.String("modelID", modelID),
			zap.String("runID", entry.run.ID),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	}

	s.runsMutex.Lock()
	run := entry.run
	s.recorder.StageCompleted(run.State.String(), time.Since(entry.stageStart))
	if err != nil {
		run.State = model.RunStateFailed
		run.FailureKind = kind.String()
		run.LastError = err.Error()
	} else {
		run.State = model.RunStateSucceeded
	}
	run.FinishedAt = time.Now()
	snapshot := run.Snapshot()

	delete(s.runs, run.ID)
	delete(s.active, modelID)
	s.history.Add(run.ID, snapshot)
	close(entry.done)
	s.recorder.ActiveRuns(len(s.active))
	s.runsMutex.Unlock()

	s.recorder.RunFinished(outcome, kind.String(), snapshot.Duration())
	if err == nil {
		s.logger.Info("Upload finished",
			zap.String("modelID", modelID),
			zap.String("runID", snapshot.ID),
			zap.String("resultURL", snapshot.ResultURL),
			zap.Duration("took", snapshot.Duration()),
		)
	}
	s.notifyUpdate(snapshot)
}

// classify picks the failure kind. Runs cut short by Shutdown are reported as
// cancelled whatever stage they were in.
func (s *Service) classify(err error) Kind {
	if s.ctx.Err() != nil {
		return KindCancelled
	}
	if kind, ok := KindOf(err); ok {
		return kind
	}
	return KindInternal
}

// advance moves the run to the next pipeline state
func (s *Service) advance(entry *runEntry, next model.RunState) {
	s.runsMutex.Lock()
	run := entry.run
	if !run.State.CanTransition(next) {
		s.runsMutex.Unlock()
		s.logger.Error("Invalid run state transition",
			zap.String("runID", run.ID),
			zap.Stringer("from", run.State),
			zap.Stringer("to", next),
		)
		return
	}
	now := time.Now()
	s.recorder.StageCompleted(run.State.String(), now.Sub(entry.stageStart))
	run.State = next
	entry.stageStart = now
	snapshot := run.Snapshot()
	s.runsMutex.Unlock()

	s.notifyUpdate(snapshot)
}

// update mutates run fields under the lock
func (s *Service) update(entry *runEntry, fn func(run *model.UploadRun)) {
	s.runsMutex.Lock()
	fn(entry.run)
	s.runsMutex.Unlock()
}
