// Package app wires the analysis pipeline together: ingest an upload, fan out
// to the modality analyzers for its media type, fuse the surviving scores,
// enhance the evidence, and persist an immutable JobResult. Analyzer failures
// drop that modality; only ingestion faults fail a job, and even those are
// recorded as readable error results.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/verimedia/verimedia/internal/explain"
	"github.com/verimedia/verimedia/internal/fusion"
	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventStage  JobEventType = "stage"
	JobEventResult JobEventType = "result"
)

// JobEvent is one progress notification for a running job, streamed to
// websocket subscribers.
type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	Status model.JobStatus `json:"status,omitempty"`
	Stage  string          `json:"stage,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Job tracks one analysis through its lifecycle. Events carries progress
// notifications and is closed when the job reaches a terminal status.
type Job struct {
	ID        string          `json:"id"`
	MediaType model.MediaType `json:"media_type,omitempty"`
	Status    model.JobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Events    chan JobEvent   `json:"-"`
}

// Upload is the raw client submission before classification.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// dispatchTable maps a media type to the analyzer set that runs for it.
// Metadata is handled separately: its score joins fusion only when the
// extractor found something informative.
var dispatchTable = map[model.MediaType][]model.Modality{
	model.MediaImage: {model.ModalityVision},
	model.MediaAudio: {model.ModalityAudio},
	model.MediaVideo: {model.ModalityVision, model.ModalityAudio, model.ModalityTemporal, model.ModalityLipsync},
}

// Orchestrator runs analysis jobs. Analyzer instances are constructed once and
// shared read-only across jobs.
type Orchestrator struct {
	cfg       *Config
	analyzers map[model.Modality]interfaces.ModalityAnalyzer
	blobs     interfaces.BlobStore
	extractor interfaces.MetadataExtractor
	results   interfaces.ResultStore
	fuser     *fusion.Engine
	explainer *explain.Aggregator
	logger    logging.Logger

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
}

// NewOrchestrator ties the pipeline components together. All collaborators
// are required except cfg, which falls back to DefaultConfig.
func NewOrchestrator(
	cfg *Config,
	analyzers map[model.Modality]interfaces.ModalityAnalyzer,
	blobs interfaces.BlobStore,
	extractor interfaces.MetadataExtractor,
	results interfaces.ResultStore,
	fuser *fusion.Engine,
	explainer *explain.Aggregator,
	logger logging.Logger,
) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("orchestrator: no analyzers provided")
	}
	if blobs == nil || extractor == nil || results == nil || fuser == nil || explainer == nil {
		return nil, fmt.Errorf("orchestrator: missing collaborator")
	}
	if logger == nil {
		return nil, fmt.Errorf("orchestrator: nil logger provided")
	}
	return &Orchestrator{
		cfg:        cfg,
		analyzers:  analyzers,
		blobs:      blobs,
		extractor:  extractor,
		results:    results,
		fuser:      fuser,
		explainer:  explainer,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}, nil
}

// Analyze runs the full pipeline synchronously and returns the stored result.
// A non-nil error always comes with the error-variant JobResult already
// persisted under the same job id.
func (o *Orchestrator) Analyze(ctx context.Context, upload Upload) (*model.JobResult, error) {
	jobID := uuid.New().String()
	return o.runPipeline(ctx, jobID, upload)
}

// StartAnalysisJob registers a job and runs the pipeline in the background.
// Pass a long-lived context; the job outlives the submitting request.
func (o *Orchestrator) StartAnalysisJob(ctx context.Context, upload Upload) *Job {
	jobID := uuid.New().String()

	job := &Job{
		ID:        jobID,
		Status:    model.JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, o.cfg.EventBuffer),
	}
	o.setJob(job)

	jobCtx, cancel := context.WithCancel(ctx)
	o.setCancel(jobID, cancel)

	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: model.JobPending})

	go func() {
		defer func() {
			o.deleteCancel(jobID)
			o.jobsMu.Lock()
			j := o.jobs[jobID]
			if j != nil {
				j.EndedAt = time.Now().UTC()
			}
			o.jobsMu.Unlock()
			if j != nil && j.Events != nil {
				close(j.Events)
			}
		}()

		o.updateJob(jobID, func(j *Job) { j.Status = model.JobRunning })
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: model.JobRunning})

		result, err := o.runPipeline(jobCtx, jobID, upload)
		if err != nil {
			o.updateJob(jobID, func(j *Job) {
				j.Status = model.JobFailed
				j.Error = err.Error()
			})
			o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: model.JobFailed, Error: err.Error()})
			return
		}

		o.updateJob(jobID, func(j *Job) {
			j.Status = model.JobCompleted
			j.MediaType = result.MediaType
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventResult, Status: model.JobCompleted})
	}()

	return job
}

// CancelJob cancels a running job's context. Completed jobs are unaffected.
func (o *Orchestrator) CancelJob(jobID string) {
	o.jobsMu.Lock()
	cancel := o.jobCancels[jobID]
	o.jobsMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GetJob returns the registry entry for jobID, or nil if unknown.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	return o.jobs[jobID]
}

// JobSnapshot returns a copy of the registry entry, safe to read while the
// job is still mutating.
func (o *Orchestrator) JobSnapshot(jobID string) (Job, bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// GetResult loads the stored result for a finished job.
func (o *Orchestrator) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	return o.results.Get(ctx, jobID)
}

// ─── pipeline ──────────────────────────────────────────────────────────

func (o *Orchestrator) runPipeline(ctx context.Context, jobID string, upload Upload) (*model.JobResult, error) {
	start := time.Now()
	logger := o.logger.With(logging.Field{Key: "job_id", Value: jobID})

	mediaType, err := model.ClassifyContentType(upload.ContentType)
	if err != nil {
		return o.failJob(ctx, jobID, fmt.Errorf("%w: %q", err, upload.ContentType))
	}
	o.emitStage(jobID, "received")

	key := jobID + filepath.Ext(upload.Filename)
	url, err := o.blobs.Put(ctx, upload.Data, key, upload.ContentType)
	if err != nil {
		return o.failJob(ctx, jobID, fmt.Errorf("failed to ingest media: %w", err))
	}
	o.emitStage(jobID, "ingested")

	meta := o.extractor.Extract(ctx, upload.Data, mediaType)
	media := &model.Media{
		Type:        mediaType,
		ContentType: upload.ContentType,
		URL:         url,
		Bytes:       upload.Data,
		Metadata:    meta,
	}

	scores, evidence := o.runAnalyzers(ctx, media)
	if meta.Informative() {
		scores[model.ModalityMetadata] = meta.SuspicionScore
		evidence[model.ModalityMetadata] = model.Fragment{Flags: meta.Flags}
	}
	o.emitStage(jobID, "analysis")

	fused := o.fuser.Fuse(scores, mediaType)
	o.emitStage(jobID, "fused")

	report := o.explainer.Enhance(evidence, scores, media)
	o.emitStage(jobID, "explained")

	result := &model.JobResult{
		JobID:            jobID,
		Status:           string(model.JobCompleted),
		Label:            fused.Label,
		ConfidenceScore:  fused.ConfidenceScore,
		RiskLevel:        model.RiskLevelFor(fused.ConfidenceScore),
		ModalityScores:   scores,
		Explainability:   report,
		MediaType:        mediaType,
		MediaURL:         url,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	// Persist even when the submitting request's context already ended.
	if err := o.results.Put(context.WithoutCancel(ctx), result); err != nil {
		logger.Error("failed to store job result",
			logging.Field{Key: "error", Value: err.Error()})
	}
	o.emitStage(jobID, "completed")

	logger.Info("analysis completed",
		logging.Field{Key: "media_type", Value: string(mediaType)},
		logging.Field{Key: "label", Value: string(result.Label)},
		logging.Field{Key: "confidence", Value: result.ConfidenceScore},
		logging.Field{Key: "modalities", Value: len(scores)},
		logging.Field{Key: "duration_ms", Value: result.ProcessingTimeMs})
	return result, nil
}

// failJob records the error variant under the job id so a later read returns
// the failure instead of "not found", then propagates the cause.
func (o *Orchestrator) failJob(ctx context.Context, jobID string, cause error) (*model.JobResult, error) {
	o.logger.Warn("job failed",
		logging.Field{Key: "job_id", Value: jobID},
		logging.Field{Key: "error", Value: cause.Error()})

	record := model.ErrorResult(jobID, cause)
	if err := o.results.Put(context.WithoutCancel(ctx), record); err != nil {
		o.logger.Error("failed to store error result",
			logging.Field{Key: "job_id", Value: jobID},
			logging.Field{Key: "error", Value: err.Error()})
	}
	return record, cause
}

// runAnalyzers fans out to the media type's analyzer set in parallel and
// collects the scores and evidence of whichever analyzers succeeded. Errors,
// panics, and inconclusive runs drop that modality only.
func (o *Orchestrator) runAnalyzers(ctx context.Context, media *model.Media) (model.Scores, model.EvidenceSet) {
	modalities := dispatchTable[media.Type]
	scores := make(model.Scores, len(modalities)+1)
	evidence := make(model.EvidenceSet, len(modalities)+1)

	var mu sync.Mutex
	var g errgroup.Group
	for _, modality := range modalities {
		modality := modality
		analyzer, ok := o.analyzers[modality]
		if !ok {
			o.logger.Warn("no analyzer registered for modality",
				logging.Field{Key: "modality", Value: string(modality)})
			continue
		}
		g.Go(func() error {
			analysis, err := o.runAnalyzer(ctx, analyzer, media)
			if err != nil {
				o.logger.Warn("analyzer failed, dropping modality",
					logging.Field{Key: "modality", Value: string(modality)},
					logging.Field{Key: "error", Value: err.Error()})
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if analysis.Score != nil {
				scores[modality] = *analysis.Score
			}
			if !analysis.Evidence.Empty() {
				evidence[modality] = analysis.Evidence
			}
			return nil
		})
	}
	g.Wait()

	return scores, evidence
}

// runAnalyzer applies the per-analyzer timeout and converts panics into
// ordinary errors.
func (o *Orchestrator) runAnalyzer(ctx context.Context, analyzer interfaces.ModalityAnalyzer, media *model.Media) (analysis *model.Analysis, err error) {
	if o.cfg.AnalyzerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AnalyzerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			analysis, err = nil, fmt.Errorf("analyzer %s panicked: %v", analyzer.Modality(), r)
		}
	}()

	analysis, err = analyzer.Analyze(ctx, media)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("analyzer %s returned no analysis", analyzer.Modality())
	}
	return analysis, nil
}

// ─── job registry ──────────────────────────────────────────────────────

func (o *Orchestrator) setJob(job *Job) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	o.jobs[job.ID] = job
}

func (o *Orchestrator) updateJob(jobID string, fn func(*Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

func (o *Orchestrator) setCancel(jobID string, cancel context.CancelFunc) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	o.jobCancels[jobID] = cancel
}

func (o *Orchestrator) deleteCancel(jobID string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	delete(o.jobCancels, jobID)
}

func (o *Orchestrator) emitStage(jobID, stage string) {
	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStage, Stage: stage})
}

func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok || job == nil || job.Events == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}
