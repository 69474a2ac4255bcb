package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Options configures an Orchestrator.
type Options struct {
	DryRun   bool
	EnableAI bool
	// Complete backs the AI resolver. Ignored unless EnableAI is set.
	Complete CompleteFunc
	// Store overrides the default on-disk evolution store.
	Store EvolutionStore
	// Worktrees maps task IDs to worktree roots. When exactly one task
	// modified a file and its worktree is known, the worktree copy is the
	// merge result and no change replay is needed.
	Worktrees map[string]string
	// ExcludeDirs lists project-relative directory prefixes whose files are
	// skipped during preview and merge even when tracked.
	ExcludeDirs []string
	// ContextLines overrides how much surrounding code AI prompts carry on
	// each side of a conflict region. Zero keeps the default.
	ContextLines int
	// Concurrency bounds how many files merge at once. Values below two
	// keep file processing sequential.
	Concurrency int
}

// MergeStats summarizes one merge run.
type MergeStats struct {
	FilesProcessed  int     `json:"files_processed"`
	FilesAutoMerged int     `json:"files_auto_merged"`
	AICallsMade     int     `json:"ai_calls_made"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// FileMergeOutcome is the result of merging one file.
type FileMergeOutcome struct {
	FilePath    string           `json:"file_path"`
	Success     bool             `json:"success"`
	Decision    MergeDecision    `json:"decision"`
	Explanation string           `json:"explanation,omitempty"`
	Conflicts   []ConflictRegion `json:"conflicts,omitempty"`
	AICalls     int              `json:"ai_calls"`

	// MergedContent is kept in memory for WriteMergedFiles, not exported
	// in reports.
	MergedContent string `json:"-"`
}

// MergeReport is the full result of merging a set of tasks.
type MergeReport struct {
	TasksMerged []string           `json:"tasks_merged"`
	Success     bool               `json:"success"`
	Files       []FileMergeOutcome `json:"files"`
	Stats       MergeStats         `json:"stats"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// MergePreview describes what a merge would do without touching files.
type MergePreview struct {
	Tasks        []string         `json:"tasks"`
	FilesToMerge []string         `json:"files_to_merge"`
	Conflicts    []ConflictRegion `json:"conflicts"`
	Summary      string           `json:"summary"`
}

// Orchestrator drives the merge pipeline: gather snapshots, detect
// conflicts, auto-merge what it can, escalate the rest, and report.
type Orchestrator struct {
	projectRoot string
	opts        Options
	tracker     *FileEvolutionTracker
	detector    *ConflictDetector
	merger      *AutoMerger
	resolver    *AIResolver
	analyzer    *SemanticAnalyzer
}

// NewOrchestrator creates an orchestrator rooted at projectRoot. Without an
// explicit store, evolution state persists under .intentmerge/.
func NewOrchestrator(projectRoot string, opts Options) (*Orchestrator, error) {
	store := opts.Store
	if store == nil {
		disk, err := NewDiskStore(projectRoot)
		if err != nil {
			return nil, err
		}
		store = disk
	}
	var fn CompleteFunc
	if opts.EnableAI {
		fn = opts.Complete
	}
	resolver := NewAIResolver(fn)
	if opts.ContextLines > 0 {
		resolver.contextLines = opts.ContextLines
	}
	return &Orchestrator{
		projectRoot: projectRoot,
		opts:        opts,
		tracker:     NewFileEvolutionTracker(projectRoot, store),
		detector:    NewConflictDetector(),
		merger:      NewAutoMerger(),
		resolver:    resolver,
		analyzer:    NewSemanticAnalyzer(),
	}, nil
}

// Tracker exposes the evolution tracker for baseline capture and snapshot
// recording.
func (o *Orchestrator) Tracker() *FileEvolutionTracker { return o.tracker }

// PreviewMerge reports which files a merge of the tasks would touch and
// which conflicts it would face, without modifying anything.
func (o *Orchestrator) PreviewMerge(taskIDs []string) (*MergePreview, error) {
	files, err := o.tracker.GetFilesModifiedByTasks(taskIDs)
	if err != nil {
		return nil, err
	}
	files = o.filterExcluded(files)

	var conflicts []ConflictRegion
	for _, f := range files {
		analyses, _, err := o.fileAnalyses(f, taskIDs)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, o.detector.DetectConflicts(analyses)...)
	}

	auto := 0
	for _, c := range conflicts {
		if c.CanAutoMerge {
			auto++
		}
	}
	return &MergePreview{
		Tasks:        append([]string(nil), taskIDs...),
		FilesToMerge: files,
		Conflicts:    conflicts,
		Summary: fmt.Sprintf("%d file(s) to merge, %d conflict region(s), %d auto-mergeable",
			len(files), len(conflicts), auto),
	}, nil
}

// MergeTask merges a single task's changes back onto the baseline.
func (o *Orchestrator) MergeTask(ctx context.Context, taskID string) (*MergeReport, error) {
	return o.MergeTasks(ctx, []string{taskID})
}

// MergeTasks merges the completed changes of the given tasks file by file
// and returns a report. Options.Concurrency above one fans files out over
// a bounded worker pool; outcomes keep file order either way.
func (o *Orchestrator) MergeTasks(ctx context.Context, taskIDs []string) (*MergeReport, error) {
	return o.mergeTasks(ctx, taskIDs, o.opts.DryRun)
}

// MergeTasksDryRun computes the same report as MergeTasks but never writes
// files, regardless of how the orchestrator was configured.
func (o *Orchestrator) MergeTasksDryRun(ctx context.Context, taskIDs []string) (*MergeReport, error) {
	return o.mergeTasks(ctx, taskIDs, true)
}

func (o *Orchestrator) mergeTasks(ctx context.Context, taskIDs []string, dryRun bool) (*MergeReport, error) {
	start := time.Now()
	files, err := o.tracker.GetFilesModifiedByTasks(taskIDs)
	if err != nil {
		return nil, err
	}
	files = o.filterExcluded(files)
	log.Info("merging tasks", "tasks", strings.Join(taskIDs, ","), "files", len(files))

	report := &MergeReport{
		TasksMerged: append([]string(nil), taskIDs...),
		Success:     true,
		GeneratedAt: start,
	}
	outcomes := make([]FileMergeOutcome, len(files))
	if o.opts.Concurrency > 1 {
		var g errgroup.Group
		g.SetLimit(o.opts.Concurrency)
		for i, f := range files {
			g.Go(func() error {
				outcomes[i] = o.MergeFile(ctx, f, taskIDs)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, f := range files {
			outcomes[i] = o.MergeFile(ctx, f, taskIDs)
		}
	}
	for i, outcome := range outcomes {
		report.Files = append(report.Files, outcome)
		report.Stats.FilesProcessed++
		report.Stats.AICallsMade += outcome.AICalls
		switch {
		case outcome.Success && outcome.Decision == DecisionAutoMerged:
			report.Stats.FilesAutoMerged++
		case !outcome.Success:
			report.Success = false
		}
		log.Info("merged file", "file", files[i], "decision", outcome.Decision, "success", outcome.Success)
	}
	report.Stats.DurationSeconds = time.Since(start).Seconds()

	if !dryRun {
		if err := o.WriteMergedFiles(report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// filterExcluded drops files under any configured exclude directory.
func (o *Orchestrator) filterExcluded(files []string) []string {
	if len(o.opts.ExcludeDirs) == 0 {
		return files
	}
	kept := files[:0]
	for _, f := range files {
		excluded := false
		for _, dir := range o.opts.ExcludeDirs {
			prefix := strings.TrimSuffix(filepath.ToSlash(dir), "/") + "/"
			if strings.HasPrefix(filepath.ToSlash(f), prefix) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, f)
		}
	}
	return kept
}

// fileAnalyses returns each task's completed analysis of the file, start
// times for ordering, wrapped from stored snapshots.
func (o *Orchestrator) fileAnalyses(filePath string, taskIDs []string) (map[string]FileAnalysis, map[string]time.Time, error) {
	evo, err := o.tracker.GetFileEvolution(filePath)
	if err != nil {
		return nil, nil, err
	}
	analyses := make(map[string]FileAnalysis)
	started := make(map[string]time.Time)
	if evo == nil {
		return analyses, started, nil
	}
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	for _, s := range evo.Snapshots {
		if !want[s.TaskID] || !s.Completed() {
			continue
		}
		analyses[s.TaskID] = FileAnalysis{FilePath: filePath, Changes: s.Changes}
		started[s.TaskID] = s.StartedAt
	}
	return analyses, started, nil
}

// MergeFile merges every given task's changes to one file.
func (o *Orchestrator) MergeFile(ctx context.Context, filePath string, taskIDs []string) FileMergeOutcome {
	outcome := FileMergeOutcome{FilePath: filePath}

	analyses, started, err := o.fileAnalyses(filePath, taskIDs)
	if err != nil {
		outcome.Decision = DecisionFailed
		outcome.Explanation = err.Error()
		return outcome
	}
	if len(analyses) == 0 {
		outcome.Decision = DecisionFailed
		outcome.Explanation = fmt.Sprintf("no completed snapshots for %s", filePath)
		return outcome
	}

	// One task, known worktree: its copy of the file is the merge result.
	if len(analyses) == 1 {
		for taskID := range analyses {
			if root, ok := o.opts.Worktrees[taskID]; ok {
				data, err := os.ReadFile(filepath.Join(root, filePath))
				if err == nil {
					outcome.Success = true
					outcome.Decision = DecisionAutoMerged
					outcome.Explanation = fmt.Sprintf("took %s's worktree copy, no other task touched the file", taskID)
					outcome.MergedContent = string(data)
					return outcome
				}
				log.Warn("worktree read failed, replaying changes instead", "task", taskID, "file", filePath, "err", err)
			}
		}
	}

	baseline, _, err := o.tracker.GetBaselineContent(filePath)
	if err != nil {
		outcome.Decision = DecisionFailed
		outcome.Explanation = err.Error()
		return outcome
	}

	eng := regionEngine{detector: o.detector, merger: o.merger, resolver: o.resolver}
	return eng.mergeAnalyses(ctx, filePath, baseline, analyses, started)
}

// regionEngine replays the changes of multiple tasks onto a shared
// baseline, one region at a time. Shared by the orchestrator and the
// parallel runner.
type regionEngine struct {
	detector *ConflictDetector
	merger   *AutoMerger
	resolver *AIResolver
}

// mergeAnalyses replays all tasks' changes onto the baseline, region by
// region, escalating regions no deterministic strategy covers.
func (o regionEngine) mergeAnalyses(ctx context.Context, filePath, baseline string, analyses map[string]FileAnalysis, started map[string]time.Time) FileMergeOutcome {
	outcome := FileMergeOutcome{FilePath: filePath}

	groups := o.detector.GroupChanges(analyses)
	detected := o.detector.DetectConflicts(analyses)
	regionByLoc := make(map[string]ConflictRegion, len(detected))
	for _, r := range detected {
		r.FilePath = filePath
		regionByLoc[r.Location] = r
		if !r.CanAutoMerge {
			outcome.Conflicts = append(outcome.Conflicts, r)
		}
	}

	locations := make([]string, 0, len(groups))
	for loc := range groups {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	content := baseline
	decision := DecisionAutoMerged
	var notes []string

	for _, loc := range locations {
		members := groups[loc]
		region, ok := regionByLoc[loc]
		if !ok {
			region = o.singleTaskRegion(filePath, loc, members)
		}
		mctx := MergeContext{
			FilePath:        filePath,
			BaselineContent: content,
			Changes:         members,
			StartedAt:       started,
			Conflict:        region,
		}

		var res MergeResult
		switch {
		case region.CanAutoMerge:
			res = o.merger.Merge(mctx, region.Strategy)
		case !ok && onlyModifications(members):
			// A single task rewrote this region, replay it verbatim.
			res = applyModifications(mctx)
		case o.resolver.CanResolve(region):
			res = o.resolver.ResolveConflict(ctx, mctx)
		default:
			res = MergeResult{
				Success:     false,
				Decision:    DecisionNeedsHumanReview,
				Explanation: o.detector.ExplainConflict(region),
			}
		}

		outcome.AICalls += res.AICalls
		if !res.Success {
			outcome.Decision = res.Decision
			outcome.Explanation = res.Explanation
			return outcome
		}
		content = res.MergedContent
		if res.Decision == DecisionAIMerged {
			decision = DecisionAIMerged
		}
		if res.Explanation != "" {
			notes = append(notes, res.Explanation)
		}
	}

	outcome.Success = true
	outcome.Decision = decision
	outcome.Explanation = strings.Join(notes, "; ")
	outcome.MergedContent = content
	return outcome
}

// singleTaskRegion synthesizes the strategy for a location only one task
// touched, using the same defaults the detector assigns to compatible
// multi-task groups.
func (o regionEngine) singleTaskRegion(filePath, loc string, members []TaskChange) ConflictRegion {
	region := ConflictRegion{
		FilePath:     filePath,
		Location:     loc,
		Tasks:        taskIDs(members),
		CanAutoMerge: true,
	}
	for _, m := range members {
		region.ChangeTypes = append(region.ChangeTypes, m.Change.Type)
	}
	switch {
	case allOfType(members, ChangeAddImport):
		region.Strategy = StrategyCombineImports
	case allOfType(members, ChangeAddFunction):
		region.Strategy = StrategyAppendFunctions
	case allOfType(members, ChangeAddMethod):
		region.Strategy = StrategyAppendMethods
	case hookAdditions(members):
		region.Strategy = StrategyHooksFirst
		if anyOfType(members, ChangeWrapComponent) {
			region.Strategy = StrategyHooksThenWrap
		}
	case allOfType(members, ChangeAddProp):
		region.Strategy = StrategyCombineProps
	case allOfType(members, ChangeAddStatement):
		region.Strategy = StrategyAppendStatements
	case onlyModifications(members):
		// Replayed by anchored replacement, not a strategy.
		region.CanAutoMerge = false
	default:
		region.Strategy = StrategyOrderByTime
	}
	return region
}

func onlyModifications(members []TaskChange) bool {
	for _, m := range members {
		switch m.Change.Type {
		case ChangeModifyFunction, ChangeModifyBlock, ChangeWrapComponent:
		default:
			return false
		}
	}
	return len(members) > 0
}

// applyModifications replays a single task's rewrites by anchoring on the
// before-content of each change.
func applyModifications(mctx MergeContext) MergeResult {
	content := mctx.BaselineContent
	for _, c := range mctx.Changes {
		before := strings.TrimRight(c.Change.ContentBefore, "\n")
		after := strings.TrimRight(c.Change.ContentAfter, "\n")
		if before == "" || after == "" {
			continue
		}
		lines := splitLines(content)
		start, end, ok := findLineSpan(lines, before)
		if !ok {
			return MergeResult{
				Success:  false,
				Decision: DecisionNeedsHumanReview,
				Explanation: fmt.Sprintf("could not anchor modification of %s in %s, original text changed",
					c.Change.Target, mctx.FilePath),
			}
		}
		out := make([]string, 0, len(lines))
		out = append(out, lines[:start]...)
		out = append(out, splitLines(after)...)
		out = append(out, lines[end:]...)
		content = joinLines(out, content)
	}
	return MergeResult{
		Success:       true,
		MergedContent: content,
		Decision:      DecisionAutoMerged,
		Explanation:   fmt.Sprintf("replayed modification of %s", mctx.Conflict.Location),
	}
}

// WriteMergedFiles writes every successful outcome's content into the
// project tree. Dry-run orchestrators never call this from MergeTasks.
func (o *Orchestrator) WriteMergedFiles(report *MergeReport) error {
	for _, f := range report.Files {
		if !f.Success || f.MergedContent == "" {
			continue
		}
		abs := f.FilePath
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(o.projectRoot, f.FilePath)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("merge: create dir for %s: %w", f.FilePath, err)
		}
		if err := os.WriteFile(abs, []byte(f.MergedContent), 0o644); err != nil {
			return fmt.Errorf("merge: write %s: %w", f.FilePath, err)
		}
	}
	return nil
}

// ResolverStats exposes the AI usage accumulated by this orchestrator.
func (o *Orchestrator) ResolverStats() ResolverStats {
	return o.resolver.Stats()
}
