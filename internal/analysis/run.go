// Package analysis runs the retrieval pipeline: select merge requests, fetch
// their notes, attach code snippets and aggregate the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/selection"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// ProgressCallback is called once per selected merge request after its notes
// were fetched or failed. Calls are serialized and done increases by one each time.
type ProgressCallback func(done, total int, mr vcs.MergeRequest)

// Result is the outcome of a successful run.
type Result struct {
	Aggregate *aggregate.Aggregate `json:"aggregate"`
	Warnings  []Warning            `json:"warnings"`
	NotFound  []int                `json:"not_found,omitempty"`
}

// Option customizes Run.
type Option func(*runner)

// WithWorkers bounds the number of merge requests fetched concurrently.
func WithWorkers(n int) Option {
	return func(r *runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressCallback) Option {
	return func(r *runner) {
		if fn != nil {
			r.progress = fn
		}
	}
}

type runner struct {
	workers  int
	log      *zap.Logger
	progress ProgressCallback
}

// Run executes one analysis with client.
//
// An authentication failure aborts the run and is returned as is. A merge
// request whose notes cannot be fetched is skipped with a warning; the run
// fails with a *RunError only when nothing can be processed. Cancelling ctx
// stops issuing requests and Run returns ctx.Err().
func Run(ctx context.Context, cfg Config, client vcs.Client, opts ...Option) (*Result, error) {
	r := &runner{workers: defaultWorkers, log: zap.NewNop(), progress: func(int, int, vcs.MergeRequest) {}}
	for _, opt := range opts {
		opt(r)
	}

	// Step 1: validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Step 2: list labeled merge requests
	labeled, err := client.ListMergeRequests(ctx, cfg.Label)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var authErr *vcs.AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &RunError{Reason: "listing merge requests failed", Causes: []error{err}}
	}
	r.log.Debug("labeled merge requests", zap.String("label", cfg.Label), zap.Int("count", len(labeled)))

	// Step 3: select
	selected, notFound := selection.Select(cfg.MRIIDs, labeled)
	result := &Result{Warnings: []Warning{}, NotFound: notFound}
	for _, iid := range notFound {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarnMRNotFound,
			MRIID:   iid,
			Message: fmt.Sprintf("MR !%d not found among merge requests labeled %q", iid, cfg.Label),
		})
	}
	if len(selected) == 0 {
		causes := make([]error, 0, len(notFound))
		for _, w := range result.Warnings {
			causes = append(causes, errors.New(w.Message))
		}
		if len(causes) == 0 {
			causes = append(causes, fmt.Errorf("no merge request carries label %q", cfg.Label))
		}
		return nil, &RunError{Reason: "no merge requests to process", Causes: causes}
	}

	// Step 4: fetch notes
	comments, fetchErrs, err := r.fetchNotes(ctx, client, selected)
	if err != nil {
		return nil, err
	}

	var processed []vcs.MergeRequest
	var causes []error
	for i, mr := range selected {
		if fetchErrs[i] == nil {
			processed = append(processed, mr)
			continue
		}
		causes = append(causes, fetchErrs[i])
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarnMRSkipped,
			MRIID:   mr.IID,
			Message: fmt.Sprintf("MR !%d skipped: %v", mr.IID, fetchErrs[i]),
			Err:     fetchErrs[i],
		})
		r.log.Warn("merge request skipped", zap.Int("mr_iid", mr.IID), zap.Error(fetchErrs[i]))
	}

	// Step 5: all failed
	if len(processed) == 0 {
		return nil, &RunError{Reason: "all selected merge requests failed", Causes: causes}
	}

	// Step 6: snippets
	if cfg.IncludeSnippets {
		if err := r.attachSnippets(ctx, client, cfg.SnippetContext, selected, comments); err != nil {
			return nil, err
		}
	}

	// Step 7: aggregate
	byMR := make(map[int][]vcs.Comment, len(processed))
	for i, mr := range selected {
		if fetchErrs[i] == nil {
			byMR[mr.IID] = comments[i]
		}
	}
	result.Aggregate = aggregate.Build(processed, byMR)
	return result, nil
}

// fetchNotes fetches the notes of every selected merge request with at most
// r.workers requests in flight. Results are stored by index. The returned
// error is non-nil only for authentication failures and cancellation.
func (r *runner) fetchNotes(ctx context.Context, client vcs.Client, selected []vcs.MergeRequest) ([][]vcs.Comment, []error, error) {
	comments := make([][]vcs.Comment, len(selected))
	fetchErrs := make([]error, len(selected))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, mr := range selected {
		i, mr := i, mr
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			notes, err := client.ListNotes(gctx, mr)
			if err != nil {
				var authErr *vcs.AuthError
				if errors.As(err, &authErr) {
					return err
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				fetchErrs[i] = err
			} else {
				comments[i] = notes
				r.log.Debug("merge request fetched", zap.Int("mr_iid", mr.IID), zap.Int("notes", len(notes)))
			}

			mu.Lock()
			done++
			r.progress(done, len(selected), mr)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}
	return comments, fetchErrs, nil
}
