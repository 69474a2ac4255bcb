package merge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// UntrackedCommit is recorded as the baseline commit when the project root
// is not a git repository.
const UntrackedCommit = "untracked"

// FileEvolutionTracker records baselines before tasks start and semantic
// snapshots when they finish, building the per-file history the merge
// pipeline consumes.
type FileEvolutionTracker struct {
	projectRoot string
	store       EvolutionStore
	analyzer    *SemanticAnalyzer
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileEvolutionTracker creates a tracker over the given store.
func NewFileEvolutionTracker(projectRoot string, store EvolutionStore) *FileEvolutionTracker {
	return &FileEvolutionTracker{
		projectRoot: projectRoot,
		store:       store,
		analyzer:    NewSemanticAnalyzer(),
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFile serializes mutations of one file's evolution. Different files
// proceed concurrently.
func (t *FileEvolutionTracker) lockFile(filePath string) func() {
	t.mu.Lock()
	l, ok := t.locks[filePath]
	if !ok {
		l = &sync.Mutex{}
		t.locks[filePath] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// headCommit resolves the current git HEAD, degrading to UntrackedCommit
// outside a repository.
func (t *FileEvolutionTracker) headCommit() string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = t.projectRoot
	out, err := cmd.Output()
	if err != nil {
		log.Debug("git HEAD unavailable, recording untracked baseline", "root", t.projectRoot)
		return UntrackedCommit
	}
	return strings.TrimSpace(string(out))
}

func (t *FileEvolutionTracker) readFile(filePath string) (string, error) {
	abs := filePath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(t.projectRoot, filePath)
	}
	data, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		// A task may declare a file it is about to create.
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("merge: read %s: %w", filePath, err)
	}
	return string(data), nil
}

// CaptureBaselines records the pre-task content of each file for the task.
// Capturing again for the same task resets that task's open snapshot.
func (t *FileEvolutionTracker) CaptureBaselines(taskID string, files []string, intent string) error {
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("merge: capture baselines: empty task ID")
	}
	commit := t.headCommit()
	for _, filePath := range files {
		if err := t.captureOne(taskID, filePath, intent, commit); err != nil {
			return err
		}
	}
	return nil
}

func (t *FileEvolutionTracker) captureOne(taskID, filePath, intent, commit string) error {
	unlock := t.lockFile(filePath)
	defer unlock()

	content, err := t.readFile(filePath)
	if err != nil {
		return err
	}
	evo, err := t.store.Load(filePath)
	if err != nil {
		return err
	}
	if evo == nil {
		evo = &FileEvolution{
			FilePath:        filePath,
			BaselineCommit:  commit,
			BaselineContent: content,
		}
	}

	snap := TaskSnapshot{
		TaskID:            taskID,
		TaskIntent:        intent,
		StartedAt:         t.now(),
		ContentHashBefore: ContentHash(content),
	}
	replaced := false
	for i := range evo.Snapshots {
		if evo.Snapshots[i].TaskID == taskID && !evo.Snapshots[i].Completed() {
			evo.Snapshots[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		evo.Snapshots = append(evo.Snapshots, snap)
	}
	log.Debug("captured baseline", "task", taskID, "file", filePath)
	return t.store.Save(evo)
}

// GetBaselineContent returns the shared baseline of a tracked file. The
// second return is false for untracked files.
func (t *FileEvolutionTracker) GetBaselineContent(filePath string) (string, bool, error) {
	evo, err := t.store.Load(filePath)
	if err != nil || evo == nil {
		return "", false, err
	}
	return evo.BaselineContent, true, nil
}

// RecordModification completes the task's open snapshot for the file,
// extracting semantic changes against the shared baseline.
func (t *FileEvolutionTracker) RecordModification(taskID, filePath, newContent string) (*TaskSnapshot, error) {
	unlock := t.lockFile(filePath)
	defer unlock()

	evo, err := t.store.Load(filePath)
	if err != nil {
		return nil, err
	}
	if evo == nil {
		return nil, fmt.Errorf("merge: record modification: no baseline for %s, capture baselines first", filePath)
	}

	idx := -1
	for i := range evo.Snapshots {
		if evo.Snapshots[i].TaskID == taskID && !evo.Snapshots[i].Completed() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("merge: record modification: task %s has no open snapshot for %s", taskID, filePath)
	}

	analysis := t.analyzer.AnalyzeDiff(filePath, evo.BaselineContent, newContent)
	done := t.now()
	snap := &evo.Snapshots[idx]
	snap.CompletedAt = &done
	snap.ContentHashAfter = ContentHash(newContent)
	snap.Changes = analysis.Changes

	if err := t.store.Save(evo); err != nil {
		return nil, err
	}
	log.Debug("recorded modification", "task", taskID, "file", filePath, "changes", len(snap.Changes))
	cp := *snap
	cp.Changes = append([]SemanticChange(nil), snap.Changes...)
	return &cp, nil
}

// GetTaskModifications returns the task's completed snapshot per file.
func (t *FileEvolutionTracker) GetTaskModifications(taskID string) (map[string]TaskSnapshot, error) {
	paths, err := t.store.List()
	if err != nil {
		return nil, err
	}
	mods := make(map[string]TaskSnapshot)
	for _, p := range paths {
		evo, err := t.store.Load(p)
		if err != nil {
			return nil, err
		}
		if evo == nil {
			continue
		}
		for _, s := range evo.Snapshots {
			if s.TaskID == taskID && s.Completed() {
				mods[p] = s
			}
		}
	}
	return mods, nil
}

// GetFilesModifiedByTasks returns every file any of the tasks completed a
// snapshot for, in lexical order.
func (t *FileEvolutionTracker) GetFilesModifiedByTasks(taskIDs []string) ([]string, error) {
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	paths, err := t.store.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		evo, err := t.store.Load(p)
		if err != nil {
			return nil, err
		}
		if evo == nil {
			continue
		}
		for _, s := range evo.Snapshots {
			if want[s.TaskID] && s.Completed() {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetConflictingFiles returns the files where two or more of the given
// tasks completed snapshots, the candidates for conflict detection.
func (t *FileEvolutionTracker) GetConflictingFiles(taskIDs []string) ([]string, error) {
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	paths, err := t.store.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		evo, err := t.store.Load(p)
		if err != nil {
			return nil, err
		}
		if evo == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, s := range evo.Snapshots {
			if want[s.TaskID] && s.Completed() {
				seen[s.TaskID] = true
			}
		}
		if len(seen) >= 2 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CleanupTask removes the task's snapshots from every tracked file. With
// removeBaselines set, files left with no snapshots are untracked entirely.
func (t *FileEvolutionTracker) CleanupTask(taskID string, removeBaselines bool) error {
	paths, err := t.store.List()
	if err != nil {
		return err
	}
	for _, p := range paths {
		unlock := t.lockFile(p)
		evo, err := t.store.Load(p)
		if err != nil {
			unlock()
			return err
		}
		if evo == nil {
			unlock()
			continue
		}
		kept := evo.Snapshots[:0]
		for _, s := range evo.Snapshots {
			if s.TaskID != taskID {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(evo.Snapshots) {
			unlock()
			continue
		}
		evo.Snapshots = kept
		if removeBaselines && len(evo.Snapshots) == 0 {
			err = t.store.Delete(p)
		} else {
			err = t.store.Save(evo)
		}
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// GetFileEvolution returns the full record for a file, or nil when the file
// is untracked.
func (t *FileEvolutionTracker) GetFileEvolution(filePath string) (*FileEvolution, error) {
	return t.store.Load(filePath)
}

// EvolutionSummary renders a human-readable history of one file for agents
// and operators.
func (t *FileEvolutionTracker) EvolutionSummary(filePath string) (string, error) {
	evo, err := t.store.Load(filePath)
	if err != nil {
		return "", err
	}
	if evo == nil {
		return fmt.Sprintf("%s is not tracked", filePath), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Evolution of %s (baseline %s)\n", evo.FilePath, evo.BaselineCommit)
	for _, s := range evo.Snapshots {
		state := "in progress"
		if s.Completed() {
			state = fmt.Sprintf("completed, %d change(s)", len(s.Changes))
		}
		fmt.Fprintf(&b, "  - %s: %s [%s]\n", s.TaskID, s.TaskIntent, state)
		for _, c := range s.Changes {
			fmt.Fprintf(&b, "      %s %s at %s\n", c.Type, c.Target, c.Location)
		}
	}
	return b.String(), nil
}
