package pipeline

import (
	"context"
	"sort"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
)

// FieldCoverage counts how often a field was actually found.
type FieldCoverage struct {
	Field    string  `json:"field"`
	Found    int     `json:"found"`
	NotFound int     `json:"not_found"`
	Rate     float64 `json:"rate"`
}

// Summary aggregates a job's row results for the dashboard.
type Summary struct {
	Rows        int             `json:"rows"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Retried     int             `json:"retried"`
	ByReason    map[string]int  `json:"by_reason"`
	ByQueryType map[string]int  `json:"by_query_type"`
	Fields      []FieldCoverage `json:"fields"`
	AvgAttempts float64         `json:"avg_attempts"`
}

// Summarize groups results by failure reason and query type and measures
// per-field coverage.
func Summarize(results []model.RowResult, fields []string) Summary {
	s := Summary{
		Rows:        len(results),
		ByReason:    map[string]int{},
		ByQueryType: map[string]int{},
	}
	coverage := make(map[string]*FieldCoverage, len(fields))
	for _, f := range fields {
		coverage[f] = &FieldCoverage{Field: f}
	}

	attempts := 0
	for _, r := range results {
		attempts += r.Attempts
		if r.Retries > 0 {
			s.Retried++
		}
		if r.QueryType != "" {
			s.ByQueryType[r.QueryType]++
		}
		if !r.Succeeded() {
			s.Failed++
			s.ByReason[string(r.Reason)]++
			continue
		}
		s.Succeeded++
		for f, c := range coverage {
			if v, ok := r.Extracted[f]; ok && v != batch.NotFound {
				c.Found++
			} else {
				c.NotFound++
			}
		}
	}

	for _, f := range fields {
		c := coverage[f]
		if total := c.Found + c.NotFound; total > 0 {
			c.Rate = float64(c.Found) / float64(total)
		}
		s.Fields = append(s.Fields, *c)
	}
	sort.SliceStable(s.Fields, func(i, j int) bool { return s.Fields[i].Rate > s.Fields[j].Rate })
	if len(results) > 0 {
		s.AvgAttempts = float64(attempts) / float64(len(results))
	}
	return s
}

// Summary aggregates the stored results of a job.
func (m *Manager) Summary(ctx context.Context, id string) (Summary, error) {
	rec, err := m.store.GetJob(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	results, err := m.store.LoadRowResults(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(results, batch.Fields(rec.Spec.Fields)), nil
}
