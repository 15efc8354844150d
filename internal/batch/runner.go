// Package batch drives dataset rows through search then extraction, one row
// result per input row, with per-row retries.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

// NotFound fills requested fields the extraction provider did not return.
const NotFound = "Data not found"

// DefaultField is extracted when a request names no fields.
const DefaultField = "answer"

// Request describes one batch run.
type Request struct {
	EntityColumn string
	Template     string
	Fields       []string
	MaxRetries   int
}

// ProgressFunc is called after every completed row. Its panics are recovered.
type ProgressFunc func(row int, result model.RowResult)

// Runner executes batches against the injected providers.
type Runner struct {
	search   provider.SearchProvider
	extract  provider.ExtractionProvider
	policy   Policy
	workers  int
	rowDelay time.Duration
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithPolicy sets the backoff policy.
func WithPolicy(p Policy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithWorkers bounds the number of rows (and so provider calls) in flight.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRowDelay pauses each worker between rows to stay under provider rate limits.
func WithRowDelay(d time.Duration) Option {
	return func(r *Runner) { r.rowDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces the backoff sleep. Tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// NewRunner creates a Runner with a single worker and the default policy.
func NewRunner(search provider.SearchProvider, extract provider.ExtractionProvider, opts ...Option) *Runner {
	r := &Runner{
		search:  search,
		extract: extract,
		policy:  PolicyFromConfig(model.DefaultRetryConfig),
		workers: 1,
		logger:  zap.NewNop(),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every row of ds in order and returns the report.
//
// Template and entity column problems fail the whole batch before any provider
// call, with an empty report. Row failures are recorded in the report and never
// returned as errors. When ctx is cancelled, rows that already completed are
// kept and the rest are left out; report.Cancelled is set.
func (r *Runner) Run(ctx context.Context, ds model.Dataset, req Request, onProgress ProgressFunc) (*model.BatchReport, error) {
	report := &model.BatchReport{
		Results:   []model.RowResult{},
		Total:     ds.Len(),
		StartedAt: time.Now(),
	}
	if err := ValidateTemplate(req.Template); err != nil {
		report.EndedAt = time.Now()
		return report, err
	}
	if strings.TrimSpace(req.EntityColumn) == "" {
		report.EndedAt = time.Now()
		return report, ErrMissingEntityColumn
	}
	if req.MaxRetries < 0 {
		req.MaxRetries = 0
	}
	fields := Fields(req.Fields)
	queryType := provider.ClassifyQuery(req.Template)

	r.logger.Info("batch: starting",
		zap.Int("rows", ds.Len()),
		zap.String("entity_column", req.EntityColumn),
		zap.Int("workers", r.workers),
		zap.Int("max_retries", req.MaxRetries))

	slots := make([]model.RowResult, ds.Len())
	done := make([]bool, ds.Len())
	var mu sync.Mutex

	record := func(i int, res model.RowResult) {
		mu.Lock()
		defer mu.Unlock()
		slots[i] = res
		done[i] = true
		r.notify(onProgress, i, res)
	}

	process := func(i int) {
		res := r.processRow(ctx, ds, i, req, fields, queryType)
		if ctx.Err() != nil && !res.Succeeded() && res.Reason != model.ErrorMissingEntity {
			// interrupted mid-row: leave it unprocessed rather than failed
			return
		}
		record(i, res)
	}

	if r.workers <= 1 {
		for i := 0; i < ds.Len(); i++ {
			if ctx.Err() != nil {
				break
			}
			if i > 0 && r.rowDelay > 0 {
				if err := r.sleep(ctx, r.rowDelay); err != nil {
					break
				}
			}
			process(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.workers)
		for i := 0; i < ds.Len(); i++ {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if i >= r.workers && r.rowDelay > 0 {
					if err := r.sleep(ctx, r.rowDelay); err != nil {
						return nil
					}
				}
				if ctx.Err() != nil {
					return nil
				}
				process(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, ok := range done {
		if ok {
			report.Results = append(report.Results, slots[i])
		}
	}
	report.Cancelled = len(report.Results) < ds.Len()
	report.Tally()
	report.EndedAt = time.Now()

	r.logger.Info("batch: finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("retried", report.Retried),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("duration", report.EndedAt.Sub(report.StartedAt)))
	return report, nil
}

func (r *Runner) processRow(ctx context.Context, ds model.Dataset, i int, req Request, fields []string, queryType string) model.RowResult {
	log := r.logger.With(zap.Int("row", i))

	entity, ok := ds.Value(i, req.EntityColumn)
	if !ok {
		log.Warn("batch: row has no entity value", zap.String("column", req.EntityColumn))
		return model.Failure(i, "", model.ErrorMissingEntity,
			fmt.Sprintf("row %d has no value in column %q", i, req.EntityColumn))
	}
	query := BuildQuery(req.Template, entity)
	log = log.With(zap.String("entity", entity))

	var result provider.SearchResult
	searchAttempts, err := r.withRetry(ctx, log, "search", req.MaxRetries, func(ctx context.Context) error {
		var callErr error
		result, callErr = r.search.Search(ctx, query)
		return callErr
	})
	if err != nil {
		log.Error("batch: search failed", zap.Int("attempts", searchAttempts), zap.Error(err))
		res := model.Failure(i, entity, model.ErrorSearchFailed, err.Error())
		res.Attempts = searchAttempts
		res.Retries = searchAttempts - 1
		res.QueryType = queryType
		return res
	}
	result.Hits = provider.Preprocess(result.Hits)

	var extracted map[string]string
	extractReq := provider.ExtractRequest{
		Entity:    entity,
		Query:     query,
		QueryType: queryType,
		Fields:    fields,
		Result:    result,
	}
	extractAttempts, err := r.withRetry(ctx, log, "extract", req.MaxRetries, func(ctx context.Context) error {
		var callErr error
		extracted, callErr = r.extract.Extract(ctx, extractReq)
		return callErr
	})

	var res model.RowResult
	if err != nil {
		log.Error("batch: extraction failed", zap.Int("attempts", extractAttempts), zap.Error(err))
		res = model.Failure(i, entity, model.ErrorExtractionFailed, err.Error())
	} else {
		res = model.Success(i, entity, completeFields(fields, extracted))
	}
	res.Attempts = searchAttempts + extractAttempts
	res.Retries = res.Attempts - 2
	res.QueryType = queryType
	res.Hits = result.Hits
	return res
}

// withRetry calls fn until it succeeds, returns a permanent error, or the policy
// gives up. It returns the number of attempts made.
func (r *Runner) withRetry(ctx context.Context, log *zap.Logger, stage string, maxRetries int, fn func(context.Context) error) (int, error) {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if provider.IsPermanent(err) || ctx.Err() != nil {
			return attempt, err
		}
		d := r.policy.Decide(attempt, maxRetries)
		if !d.Retry {
			return attempt, fmt.Errorf("%s failed after %d attempts: %w", stage, attempt, err)
		}
		log.Warn("batch: retrying",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", d.Delay),
			zap.Error(err))
		if sleepErr := r.sleep(ctx, d.Delay); sleepErr != nil {
			return attempt, err
		}
	}
}

func (r *Runner) notify(fn ProgressFunc, i int, res model.RowResult) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("batch: progress callback panicked", zap.Int("row", i), zap.Any("panic", p))
		}
	}()
	fn(i, res)
}

// Fields returns the fields a request extracts: trimmed, deduplicated, and
// DefaultField alone when none remain.
func Fields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		out = append(out, DefaultField)
	}
	return out
}

// completeFields keeps only the requested fields, filling absent ones with NotFound.
func completeFields(fields []string, got map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := got[f]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			v = NotFound
		}
		out[f] = v
	}
	return out
}
