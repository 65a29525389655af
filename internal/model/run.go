package model

// StageStatus is the outcome of a pipeline stage.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FieldStats counts how often a canonical field was filled.
type FieldStats struct {
	Field   string `json:"field"`
	Present int    `json:"present"`
	Missing int    `json:"missing"`
}

// PipelineResult is the summary of one pipeline run.
type PipelineResult struct {
	RunID          string            `json:"run_id"`
	InputPath      string            `json:"input_path"`
	InputRows      int               `json:"input_rows"`
	NormalizedRows int               `json:"normalized_rows"`
	UniqueProducts int               `json:"unique_products"`
	Rejected       []RowError        `json:"rejected,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	FieldStats     []FieldStats      `json:"field_stats,omitempty"`
	Stages         []StageResult     `json:"stages"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
}

// Succeeded reports whether no stage failed.
func (r *PipelineResult) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status == StageFailed {
			return false
		}
	}
	return true
}

// Stage returns the named stage result, or nil.
func (r *PipelineResult) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}
