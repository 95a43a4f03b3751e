package domain

import (
	"fmt"
	"strings"
	"time"
)

// Run outcomes.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// LayerCount is the number of rows published to one destination.
type LayerCount struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Unit    string `json:"unit"` // "features" or "records"
	Count   int    `json:"count"`
	Deleted int    `json:"deleted,omitempty"`
}

// RunReport summarizes one run for the operator.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Job      string        `json:"job"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	AsOf     string        `json:"as_of,omitempty"` // BDC reporting period
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Records  int           `json:"records"`
	Layers   []LayerCount  `json:"layers"`
}

// Subject is the notification subject line.
func (r RunReport) Subject() string {
	if r.Status == RunFailed {
		return fmt.Sprintf("%s Update Failed", r.Job)
	}
	return fmt.Sprintf("%s Update Summary", r.Job)
}

// Lines renders the report as plain text lines.
func (r RunReport) Lines() []string {
	lines := []string{
		fmt.Sprintf("%s update %s", r.Job, r.Start.Format("2006-01-02")),
		strings.Repeat("=", 20),
		"",
		fmt.Sprintf("Start time: %s", r.Start.Format("15:04:05")),
		fmt.Sprintf("End time: %s", r.End.Format("15:04:05")),
		fmt.Sprintf("Duration: %s", r.Duration),
		"",
	}
	if r.Status == RunFailed {
		return append(lines, fmt.Sprintf("Run failed: %s", r.Error))
	}
	for _, l := range r.Layers {
		lines = append(lines, fmt.Sprintf("%s: %d %s", l.Label, l.Count, l.Unit))
	}
	return lines
}
