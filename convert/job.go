package convert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"epdf/common"
	"epdf/config"
)

// JobStatus is a state of a single conversion job.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobSucceeded
	JobFailed
	JobCancelled
)

var jobStatusNames = []string{"pending", "running", "succeeded", "failed", "cancelled"}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return fmt.Sprintf("JobStatus(%d)", int(s))
	}
	return jobStatusNames[s]
}

// Finished reports whether job reached its final state.
func (s JobStatus) Finished() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// BatchState is a state of a batch run.
type BatchState int

const (
	BatchIdle BatchState = iota
	BatchRunning
	BatchCompleted
	BatchCancelled
)

var batchStateNames = []string{"idle", "running", "completed", "cancelled"}

func (s BatchState) String() string {
	if s < 0 || int(s) >= len(batchStateNames) {
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
	return batchStateNames[s]
}

// Settings are per job conversion parameters. Margins are in millimeters,
// font size in points.
type Settings struct {
	PaperSize        string
	FontSize         float64
	MarginHorizontal float64
	MarginVertical   float64
	Strategy         common.Strategy
	AutoMerge        bool
}

// SettingsFromConfig returns settings initialized from document
// configuration.
func SettingsFromConfig(doc *config.DocumentConfig) Settings {
	return Settings{
		PaperSize:        doc.Page.Paper,
		FontSize:         doc.Page.FontSize,
		MarginHorizontal: doc.Page.MarginHorizontal,
		MarginVertical:   doc.Page.MarginVertical,
		Strategy:         doc.Strategy,
		AutoMerge:        doc.AutoMerge,
	}
}

// Result is an outcome of a single job. OutputPath is empty unless job
// succeeded. CleanupCandidate names intermediate volumes directory left on
// disk after successful merge.
type Result struct {
	Success          bool
	Message          string
	OutputPath       string
	CleanupCandidate string
	Elapsed          time.Duration
	Err              error
}

// Job is a single source to be converted. Source is absolute path of the
// book, Rel is its path relative to processed input (used to keep directory
// structure) and Dest is destination directory. Output is either preset or
// derived from book metadata when conversion starts.
type Job struct {
	ID       uuid.UUID
	Source   string
	Rel      string
	Dest     string
	Output   string
	Settings Settings
	Status   JobStatus
	Result   Result
}

// NewJob returns pending job with fresh time ordered identifier.
func NewJob(source, rel, dest string, settings Settings) *Job {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Job{ID: id, Source: source, Rel: rel, Dest: dest, Settings: settings}
}

// Summary aggregates batch results. Jobs which never started are counted
// in Total only.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
	State     BatchState
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d total, %d succeeded, %d failed, %d cancelled", s.State, s.Total, s.Succeeded, s.Failed, s.Cancelled)
}
