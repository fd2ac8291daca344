package model

// Label is the three-way categorical verdict derived from the fused
// confidence score.
type Label string

const (
	LabelAuthentic   Label = "authentic"
	LabelSuspicious  Label = "suspicious"
	LabelManipulated Label = "manipulated"
)

// FusionResult is the fused verdict: a confidence score in [0,1] plus its
// categorical label. It is a pure function of (scores, media type) and is
// never mutated after creation.
type FusionResult struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Label           Label   `json:"label"`

	// Degraded marks the total-weight-zero fallback: no recognized modality
	// reported, so the neutral 0.5 stands in for a real verdict.
	Degraded bool `json:"degraded,omitempty"`
}

// RiskLevel is the coarse presentation bucket for a confidence score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevelFor buckets a confidence score: below 0.3 Low, below 0.7 Medium,
// else High.
func RiskLevelFor(confidence float64) RiskLevel {
	switch {
	case confidence < 0.3:
		return RiskLow
	case confidence < 0.7:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobResult is the immutable record produced by one analysis job. Failed jobs
// store the error variant (Status "error" plus Error) so a later read of the
// same job id returns the failure rather than "not found".
type JobResult struct {
	JobID            string    `json:"job_id"`
	Status           string    `json:"status,omitempty"`
	Error            string    `json:"error,omitempty"`
	Label            Label     `json:"label,omitempty"`
	ConfidenceScore  float64   `json:"confidence_score"`
	RiskLevel        RiskLevel `json:"risk_level,omitempty"`
	ModalityScores   Scores    `json:"modality_scores,omitempty"`
	Explainability   *Report   `json:"explainability,omitempty"`
	MediaType        MediaType `json:"media_type,omitempty"`
	MediaURL         string    `json:"media_url,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// Failed reports whether the record is the error variant.
func (r *JobResult) Failed() bool { return r != nil && r.Status == "error" }

// ErrorResult builds the error variant for a failed job.
func ErrorResult(jobID string, err error) *JobResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &JobResult{JobID: jobID, Status: "error", Error: msg}
}
