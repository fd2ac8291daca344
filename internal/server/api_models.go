package server

// JobResponse acknowledges an accepted analysis submission. The full result
// is fetched from /results/{job_id}.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MeResponse is the caller's quota view. Reading it never spends a credit.
type MeResponse struct {
	Authenticated bool `json:"authenticated"`
	CreditsLeft   int  `json:"credits_left"`
}
