package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/adjudex/internal/model"
)

// Adjudicator runs the full decision pipeline for one claim
type Adjudicator interface {
	Adjudicate(ctx context.Context, in model.ClaimInput) (*model.Dossier, error)
}

// ClaimResult is the outcome of one claim in a batch
type ClaimResult struct {
	Source  string // File the claim was read from, if any
	ClaimID string
	Dossier *model.Dossier
	Error   error
}

// GetError returns the error from the claim result
func (r *ClaimResult) GetError() error {
	return r.Error
}

// ClaimBatchProcessor adjudicates many claims concurrently.
// Each claim runs its own pipeline; one failing claim does not stop the others
type ClaimBatchProcessor struct {
	adjudicator Adjudicator
	concurrency int
	onDone      func(*ClaimResult)
}

// NewClaimBatchProcessor creates a new batch processor
func NewClaimBatchProcessor(adjudicator Adjudicator, concurrency int) *ClaimBatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ClaimBatchProcessor{
		adjudicator: adjudicator,
		concurrency: concurrency,
	}
}

// OnDone registers a callback invoked after each claim finishes.
// It may be called from several goroutines
func (b *ClaimBatchProcessor) OnDone(fn func(*ClaimResult)) {
	b.onDone = fn
}

// ProcessClaims adjudicates the claims and returns results in input order
func (b *ClaimBatchProcessor) ProcessClaims(ctx context.Context, claims []model.ClaimInput) []*ClaimResult {
	results := make([]*ClaimResult, len(claims))
	if len(claims) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, claim := range claims {
		g.Go(func() error {
			res := &ClaimResult{ClaimID: claim.ClaimID}
			if err := gctx.Err(); err != nil {
				res.Error = err
			} else {
				res.Dossier, res.Error = b.adjudicator.Adjudicate(gctx, claim)
			}
			results[i] = res
			if b.onDone != nil {
				b.onDone(res)
			}
			// Claim failures are reported per result, never abort the group
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProcessDir reads every *.json claim in dir and adjudicates them
func (b *ClaimBatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*ClaimResult, error) {
	files, err := ListClaimFiles(dir)
	if err != nil {
		return nil, err
	}

	claims := make([]model.ClaimInput, 0, len(files))
	var failed []*ClaimResult
	var sources []string
	for _, f := range files {
		claim, err := ReadClaimFile(f)
		if err != nil {
			failed = append(failed, &ClaimResult{Source: f, Error: err})
			continue
		}
		claims = append(claims, claim)
		sources = append(sources, f)
	}

	results := b.ProcessClaims(ctx, claims)
	for i := range results {
		results[i].Source = sources[i]
	}
	return append(results, failed...), nil
}

// ListClaimFiles returns the sorted *.json files of dir
func ListClaimFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ReadClaimFile decodes one claim input file
func ReadClaimFile(path string) (model.ClaimInput, error) {
	var claim model.ClaimInput

	data, err := os.ReadFile(path)
	if err != nil {
		return claim, fmt.Errorf("open file: %w", err)
	}
	if err := json.Unmarshal(data, &claim); err != nil {
		return claim, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return claim, nil
}
