package merge

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ParallelMergeTask is one file to merge: the main branch content, the
// worktree content, and their common ancestor. An empty BaseContent means
// no ancestor is known and both sides are treated as additions.
type ParallelMergeTask struct {
	FilePath        string `json:"file_path"`
	MainContent     string `json:"main_content"`
	WorktreeContent string `json:"worktree_content"`
	BaseContent     string `json:"base_content"`
}

// ParallelMergeResult is the outcome for one file. A failed file carries
// its error here; it never aborts the other files in the batch.
type ParallelMergeResult struct {
	FilePath      string `json:"file_path"`
	MergedContent string `json:"merged_content"`
	Success       bool   `json:"success"`
	WasAutoMerged bool   `json:"was_auto_merged"`
	Error         string `json:"error,omitempty"`
}

// MergeRunner merges independent files concurrently with a bounded worker
// pool. Files are independent by construction, so one failure is recorded
// in its result and the rest of the pool keeps running.
type MergeRunner struct {
	engine      regionEngine
	analyzer    *SemanticAnalyzer
	concurrency int
}

// NewMergeRunner creates a runner. fn may be nil to disable AI escalation;
// concurrency <= 0 defaults to the CPU count.
func NewMergeRunner(fn CompleteFunc, concurrency int) *MergeRunner {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &MergeRunner{
		engine: regionEngine{
			detector: NewConflictDetector(),
			merger:   NewAutoMerger(),
			resolver: NewAIResolver(fn),
		},
		analyzer:    NewSemanticAnalyzer(),
		concurrency: concurrency,
	}
}

// Run merges every task and returns results in input order. An empty input
// returns an empty slice.
func (r *MergeRunner) Run(ctx context.Context, tasks []ParallelMergeTask) []ParallelMergeResult {
	results := make([]ParallelMergeResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = r.mergeOne(gctx, task)
			// Failures stay in the result so sibling files still merge.
			return nil
		})
	}
	// The group never returns an error, Wait is for completion only.
	_ = g.Wait()

	log.Info("parallel merge finished", "files", len(tasks), "workers", r.concurrency)
	return results
}

// mergeOne merges a single three-way file. Trivial cases short-circuit
// before any parsing happens.
func (r *MergeRunner) mergeOne(ctx context.Context, task ParallelMergeTask) ParallelMergeResult {
	res := ParallelMergeResult{FilePath: task.FilePath}

	switch {
	case task.MainContent == task.WorktreeContent:
		res.MergedContent = task.MainContent
		res.Success = true
		res.WasAutoMerged = true
		return res
	case task.WorktreeContent == task.BaseContent:
		res.MergedContent = task.MainContent
		res.Success = true
		res.WasAutoMerged = true
		return res
	case task.MainContent == task.BaseContent:
		res.MergedContent = task.WorktreeContent
		res.Success = true
		res.WasAutoMerged = true
		return res
	}

	now := time.Now()
	analyses := map[string]FileAnalysis{
		"main":     r.analyzer.AnalyzeDiff(task.FilePath, task.BaseContent, task.MainContent),
		"worktree": r.analyzer.AnalyzeDiff(task.FilePath, task.BaseContent, task.WorktreeContent),
	}
	started := map[string]time.Time{"main": now, "worktree": now.Add(time.Millisecond)}

	outcome := r.engine.mergeAnalyses(ctx, task.FilePath, task.BaseContent, analyses, started)
	if !outcome.Success {
		res.Error = outcome.Explanation
		if res.Error == "" {
			res.Error = fmt.Sprintf("merge of %s needs manual resolution", task.FilePath)
		}
		return res
	}
	res.MergedContent = outcome.MergedContent
	res.Success = true
	res.WasAutoMerged = outcome.Decision == DecisionAutoMerged
	return res
}
