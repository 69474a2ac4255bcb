package merge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appBaseline = `def hello():
    return "hello"

def goodbye():
    return "goodbye"
`

func newTestOrchestrator(t *testing.T, opts Options) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	writeProjectFile(t, root, "src/app.py", appBaseline)
	if opts.Store == nil {
		opts.Store = NewMemStore()
	}
	orch, err := NewOrchestrator(root, opts)
	require.NoError(t, err)
	return orch, root
}

func TestMergeTwoNonConflictingTasks(t *testing.T) {
	orch, root := newTestOrchestrator(t, Options{})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, "add logging"))
	require.NoError(t, tracker.CaptureBaselines("task-b", []string{"src/app.py"}, "add new_function"))

	_, err := tracker.RecordModification("task-a", "src/app.py",
		"import logging\n\n"+appBaseline)
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-b", "src/app.py",
		appBaseline+"\ndef new_function():\n    return 1\n")
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a", "task-b"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, []string{"task-a", "task-b"}, report.TasksMerged)
	assert.Equal(t, 1, report.Stats.FilesProcessed)
	assert.Equal(t, 1, report.Stats.FilesAutoMerged)
	assert.Zero(t, report.Stats.AICallsMade, "compatible changes must not consume AI calls")
	assert.GreaterOrEqual(t, report.Stats.DurationSeconds, 0.0)

	merged, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	content := string(merged)
	assert.Contains(t, content, "import logging")
	assert.Contains(t, content, "def hello")
	assert.Contains(t, content, "def goodbye")
	assert.Contains(t, content, "def new_function")
}

func TestMergeCompetingModificationsNeedsReview(t *testing.T) {
	orch, root := newTestOrchestrator(t, Options{})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, "rework hello"))
	require.NoError(t, tracker.CaptureBaselines("task-b", []string{"src/app.py"}, "also rework hello"))

	_, err := tracker.RecordModification("task-a", "src/app.py",
		"def hello():\n    return \"hi there\"\n\ndef goodbye():\n    return \"goodbye\"\n")
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-b", "src/app.py",
		"def hello():\n    return \"howdy\"\n\ndef goodbye():\n    return \"goodbye\"\n")
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a", "task-b"})
	require.NoError(t, err)

	assert.False(t, report.Success)
	require.Len(t, report.Files, 1)
	outcome := report.Files[0]
	assert.Equal(t, DecisionNeedsHumanReview, outcome.Decision)
	require.NotEmpty(t, outcome.Conflicts)
	assert.Equal(t, "function:hello", outcome.Conflicts[0].Location)

	// Without a successful merge the file on disk is untouched.
	data, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Equal(t, appBaseline, string(data))
}

func TestMergeCompetingModificationsWithAI(t *testing.T) {
	fn := func(ctx context.Context, system, user string) (string, error) {
		return "```python\ndef hello():\n    return \"hi there, howdy\"\n```", nil
	}
	orch, root := newTestOrchestrator(t, Options{EnableAI: true, Complete: fn})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, ""))
	require.NoError(t, tracker.CaptureBaselines("task-b", []string{"src/app.py"}, ""))

	_, err := tracker.RecordModification("task-a", "src/app.py",
		"def hello():\n    return \"hi there\"\n\ndef goodbye():\n    return \"goodbye\"\n")
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-b", "src/app.py",
		"def hello():\n    return \"howdy\"\n\ndef goodbye():\n    return \"goodbye\"\n")
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a", "task-b"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Stats.AICallsMade)
	require.Len(t, report.Files, 1)
	assert.Equal(t, DecisionAIMerged, report.Files[0].Decision)

	data, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hi there, howdy")
	assert.Contains(t, string(data), "def goodbye")
}

func TestPreviewMerge(t *testing.T) {
	orch, _ := newTestOrchestrator(t, Options{})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, ""))
	require.NoError(t, tracker.CaptureBaselines("task-b", []string{"src/app.py"}, ""))

	_, err := tracker.RecordModification("task-a", "src/app.py", "import os\n\n"+appBaseline)
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-b", "src/app.py", "import sys\n\n"+appBaseline)
	require.NoError(t, err)

	preview, err := orch.PreviewMerge([]string{"task-a", "task-b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"task-a", "task-b"}, preview.Tasks)
	assert.Equal(t, []string{"src/app.py"}, preview.FilesToMerge)
	require.Len(t, preview.Conflicts, 1)
	assert.True(t, preview.Conflicts[0].CanAutoMerge)
	assert.Contains(t, preview.Summary, "1 file(s) to merge")
}

func TestMergeDryRunDoesNotWrite(t *testing.T) {
	orch, root := newTestOrchestrator(t, Options{DryRun: true})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, ""))
	_, err := tracker.RecordModification("task-a", "src/app.py", "import os\n\n"+appBaseline)
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a"})
	require.NoError(t, err)
	assert.True(t, report.Success)

	data, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Equal(t, appBaseline, string(data))
}

func TestMergeSingleTaskWorktreeShortcut(t *testing.T) {
	worktree := t.TempDir()
	want := "# rewritten wholesale\n" + appBaseline
	require.NoError(t, os.MkdirAll(filepath.Join(worktree, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "src/app.py"), []byte(want), 0o644))

	orch, root := newTestOrchestrator(t, Options{
		Worktrees: map[string]string{"task-a": worktree},
	})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, ""))
	_, err := tracker.RecordModification("task-a", "src/app.py", want)
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a"})
	require.NoError(t, err)
	require.True(t, report.Success)
	assert.Contains(t, report.Files[0].Explanation, "worktree")

	data, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestMergeReportRoundTrip(t *testing.T) {
	orch, _ := newTestOrchestrator(t, Options{DryRun: true})
	tracker := orch.Tracker()

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, ""))
	_, err := tracker.RecordModification("task-a", "src/app.py", "import os\n\n"+appBaseline)
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a"})
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var back MergeReport
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, report.TasksMerged, back.TasksMerged)
	assert.Equal(t, report.Success, back.Success)
	assert.Equal(t, report.Stats.FilesProcessed, back.Stats.FilesProcessed)
}

func TestMergeSkipsExcludedDirs(t *testing.T) {
	orch, root := newTestOrchestrator(t, Options{ExcludeDirs: []string{"vendor"}})
	tracker := orch.Tracker()
	writeProjectFile(t, root, "vendor/dep.py", "def dep():\n    return 0\n")

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py", "vendor/dep.py"}, "touch both"))
	_, err := tracker.RecordModification("task-a", "src/app.py",
		"import os\n\n"+appBaseline)
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-a", "vendor/dep.py",
		"def dep():\n    return 1\n")
	require.NoError(t, err)

	report, err := orch.MergeTasks(context.Background(), []string{"task-a"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.FilesProcessed)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "src/app.py", report.Files[0].FilePath)

	vendored, err := os.ReadFile(filepath.Join(root, "vendor/dep.py"))
	require.NoError(t, err)
	assert.Equal(t, "def dep():\n    return 0\n", string(vendored))
}

func TestMergeTasksConcurrent(t *testing.T) {
	orch, root := newTestOrchestrator(t, Options{Concurrency: 4})
	tracker := orch.Tracker()

	paths := []string{"src/app.py", "src/b.py", "src/c.py"}
	for _, p := range paths[1:] {
		writeProjectFile(t, root, p, appBaseline)
	}
	require.NoError(t, tracker.CaptureBaselines("task-a", paths, "add imports"))
	for _, p := range paths {
		_, err := tracker.RecordModification("task-a", p, "import os\n\n"+appBaseline)
		require.NoError(t, err)
	}

	report, err := orch.MergeTasks(context.Background(), []string{"task-a"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Stats.FilesProcessed)
	var got []string
	for _, f := range report.Files {
		got = append(got, f.FilePath)
	}
	assert.Equal(t, paths, got, "outcomes keep file order")
}
