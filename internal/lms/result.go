package lms

// Counts tracks per-family record counts for a sync run.
type Counts struct {
	Courses     int `json:"courses"`
	Lessons     int `json:"lessons"`
	Enrollments int `json:"enrollments"`
	Progress    int `json:"progress"`
}

// Total returns the sum across all families.
func (c Counts) Total() int {
	return c.Courses + c.Lessons + c.Enrollments + c.Progress
}

// SyncResult is the outcome of a full sync. Success is false iff any phase
// recorded an error. Per-record push failures and per-entry queue failures
// land in Errors without aborting their phase; a pull failure aborts the
// run and is also recorded here.
type SyncResult struct {
	Success bool     `json:"success"`
	Synced  Counts   `json:"synced"`
	Failed  Counts   `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

func newSyncResult() *SyncResult {
	return &SyncResult{Success: true}
}

func (r *SyncResult) addError(msg string) {
	r.Success = false
	r.Errors = append(r.Errors, msg)
}
