package conversion

import "time"

// AllUnits is reported in place of an index list when every page is converted.
const AllUnits = "all"

// Job is the unit of work handed to a Converter.
type Job struct {
	// ID is the run identifier assigned by the service.
	ID string
	// InputPath is the readable PDF on local disk (possibly a decrypted copy).
	InputPath string
	// OutputPath is where the DOCX package is written.
	OutputPath string
	// Pages lists the zero-based page indices to convert, in order.
	Pages []int
}

// Descriptor carries the document information dictionary fields we surface.
type Descriptor struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Creator  string `json:"creator"`
	Producer string `json:"producer"`
}

// Info is the result of inspecting a PDF.
type Info struct {
	Path       string
	PageCount  int
	SizeBytes  int64
	Protected  bool
	Descriptor Descriptor
}

// RunStatus is the lifecycle state of a recorded conversion run.
type RunStatus string

// Run status values persisted by run stores.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// CompletionEvent is published once a conversion run finishes.
type CompletionEvent struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	InputRef        string    `json:"input_ref"`
	OutputRef       string    `json:"output_ref,omitempty"`
	ArtifactURI     string    `json:"artifact_uri,omitempty"`
	SHA256          string    `json:"sha256,omitempty"`
	UnitsConverted  int       `json:"units_converted"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
	FinishedAt      time.Time `json:"finished_at"`
}
