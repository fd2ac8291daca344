package app

import "time"

// Config contains the runtime options the orchestrator needs. Kept small;
// analyzer and store configuration lives with the components themselves.
type Config struct {
	// AnalyzerTimeout bounds each individual analyzer call. Zero disables
	// the per-analyzer deadline.
	AnalyzerTimeout time.Duration

	// EventBuffer sizes each job's progress event channel. Events beyond the
	// buffer are dropped rather than blocking the pipeline.
	EventBuffer int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AnalyzerTimeout: 30 * time.Second,
		EventBuffer:     16,
	}
}
