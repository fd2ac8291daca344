// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── ModalityAnalyzer ──────────────────────────────────────────────────

// DummyAnalyzer implements interfaces.ModalityAnalyzer with a preconfigured
// outcome. Set Err to force a failure, Panic to force a panic, or leave Score
// nil for an inconclusive run.
type DummyAnalyzer struct {
	Name     model.Modality
	Score    *float64
	Evidence model.Fragment
	Err      error
	Panic    bool
	Delay    func(ctx context.Context) error

	mu    sync.Mutex
	Calls int
}

func (d *DummyAnalyzer) Modality() model.Modality { return d.Name }

func (d *DummyAnalyzer) Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error) {
	d.mu.Lock()
	d.Calls++
	d.mu.Unlock()

	if d.Panic {
		panic(fmt.Sprintf("dummy analyzer %s panicking", d.Name))
	}
	if d.Delay != nil {
		if err := d.Delay(ctx); err != nil {
			return nil, err
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return &model.Analysis{Score: d.Score, Evidence: d.Evidence}, nil
}

// CallCount returns how many times Analyze ran.
func (d *DummyAnalyzer) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

// ─── BlobStore ─────────────────────────────────────────────────────────

// DummyBlobStore implements interfaces.BlobStore in memory.
// Set PutErr to force ingestion failures.
type DummyBlobStore struct {
	PutErr error

	mu      sync.Mutex
	Objects map[string][]byte
}

func (d *DummyBlobStore) Put(_ context.Context, data []byte, key string, _ string) (string, error) {
	if d.PutErr != nil {
		return "", d.PutErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Objects == nil {
		d.Objects = make(map[string][]byte)
	}
	url := "mem://" + key
	d.Objects[url] = append([]byte(nil), data...)
	return url, nil
}

func (d *DummyBlobStore) Get(_ context.Context, url string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.Objects[url]
	if !ok {
		return nil, fmt.Errorf("dummy blob store: no object at %s", url)
	}
	return append([]byte(nil), data...), nil
}

func (d *DummyBlobStore) Delete(_ context.Context, url string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Objects, url)
	return true, nil
}

// ─── MetadataExtractor ─────────────────────────────────────────────────

// DummyExtractor implements interfaces.MetadataExtractor returning a fixed
// record, or the neutral record when Result is nil.
type DummyExtractor struct {
	Result *model.MediaMetadata
}

func (d *DummyExtractor) Extract(_ context.Context, data []byte, _ model.MediaType) *model.MediaMetadata {
	if d.Result != nil {
		return d.Result
	}
	return &model.MediaMetadata{SuspicionScore: model.MetadataNeutralScore, FileSize: len(data)}
}

// ─── ResultStore ───────────────────────────────────────────────────────

// DummyStore implements interfaces.ResultStore over a plain map.
type DummyStore struct {
	PutErr error

	mu      sync.Mutex
	Results map[string]*model.JobResult
}

func (d *DummyStore) Put(_ context.Context, result *model.JobResult) error {
	if d.PutErr != nil {
		return d.PutErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Results == nil {
		d.Results = make(map[string]*model.JobResult)
	}
	d.Results[result.JobID] = result
	return nil
}

func (d *DummyStore) Get(_ context.Context, jobID string) (*model.JobResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.Results[jobID]
	if !ok {
		return nil, interfaces.ErrResultNotFound
	}
	return r, nil
}

func (d *DummyStore) Close() error { return nil }
