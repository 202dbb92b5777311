package model

import "time"

// Failure records why one item did not complete
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ItemStatus is the final marker for one enumerated item
type ItemStatus struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"` // completed by an earlier run
}

// RunSummary is built once, at the end of a run
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Portal      string       `json:"portal"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Skipped     int          `json:"skipped"`
	Failed      []string     `json:"failed"`
	Failures    []Failure    `json:"failures"`
	Statuses    []ItemStatus `json:"statuses"`
	Interrupted bool         `json:"interrupted"`
}

// FailedCount returns the number of failed items
func (s *RunSummary) FailedCount() int {
	return len(s.Failed)
}
