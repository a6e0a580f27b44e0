package restore

import "time"

// Outcome is what a restore did with one remote document.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

// CollectionResult is the outcome of restoring one collection.
type CollectionResult struct {
	Collection       string   `json:"collection"`
	DisplayName      string   `json:"displayName"`
	Fetched          int      `json:"fetched"`
	Inserted         int      `json:"insertedCount"`
	Updated          int      `json:"updatedCount"`
	Unchanged        int      `json:"unchangedCount"`
	Skipped          int      `json:"skippedCount"`
	PermissionDenied bool     `json:"permissionDenied,omitempty"`
	Errors           []string `json:"errors"`
}

func (c *CollectionResult) count(o Outcome) {
	switch o {
	case OutcomeInserted:
		c.Inserted++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeUnchanged:
		c.Unchanged++
	case OutcomeSkipped:
		c.Skipped++
	}
}

// Result is the outcome of a whole restore run. PerEntityCounts maps each
// collection to the number of records inserted or updated.
type Result struct {
	RunID           string             `json:"runId"`
	TenantID        string             `json:"tenantId"`
	StartedAt       time.Time          `json:"startedAt"`
	FinishedAt      time.Time          `json:"finishedAt"`
	PerEntityCounts map[string]int     `json:"perEntityCounts"`
	Inserted        int                `json:"insertedCount"`
	Updated         int                `json:"updatedCount"`
	Collections     []CollectionResult `json:"collections"`
	Errors          []string           `json:"errors"`
}

func newResult(runID, tenantID string, startedAt time.Time, collections []CollectionResult) *Result {
	res := &Result{
		RunID:           runID,
		TenantID:        tenantID,
		StartedAt:       startedAt,
		PerEntityCounts: make(map[string]int, len(collections)),
		Collections:     collections,
		Errors:          []string{},
	}
	for _, c := range collections {
		res.PerEntityCounts[c.Collection] = c.Inserted + c.Updated
		res.Inserted += c.Inserted
		res.Updated += c.Updated
		res.Errors = append(res.Errors, c.Errors...)
	}
	return res
}

// Collection returns the result for one collection.
func (r *Result) Collection(name string) (CollectionResult, bool) {
	for _, c := range r.Collections {
		if c.Collection == name {
			return c, true
		}
	}
	return CollectionResult{}, false
}
