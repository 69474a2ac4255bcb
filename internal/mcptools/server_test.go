package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

const conflictedPy = `def greet():
<<<<<<< HEAD
    return "hello"
=======
    return "hi there"
>>>>>>> feature/task-a
`

func newTestService(t *testing.T) (*MergeService, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/app.py"),
		[]byte("def hello():\n    return \"hello\"\n"), 0o644))

	orch, err := merge.NewOrchestrator(root, merge.Options{DryRun: true})
	require.NoError(t, err)
	return NewMergeService(orch, nil), root
}

func TestCaptureBaselinesValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{Files: []string{"src/app.py"}})
	assert.EqualError(t, err, "taskId is required")

	_, _, err = svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{TaskID: "task-a"})
	assert.EqualError(t, err, "files is required")

	_, out, err := svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{
		TaskID: "task-a",
		Files:  []string{"src/app.py"},
		Intent: "add logging",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.FilesTracked)
}

func TestRecordModificationExtractsChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{
		TaskID: "task-a",
		Files:  []string{"src/app.py"},
		Intent: "add logging",
	})
	require.NoError(t, err)

	_, out, err := svc.RecordModification(ctx, nil, RecordModificationInput{
		TaskID:   "task-a",
		FilePath: "src/app.py",
		Content:  "import logging\n\ndef hello():\n    return \"hello\"\n",
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.ChangeCount)
	assert.Equal(t, merge.ChangeAddImport, out.Changes[0].Type)
}

func TestRecordModificationReadsWorktreePath(t *testing.T) {
	svc, root := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{
		TaskID: "task-a",
		Files:  []string{"src/app.py"},
	})
	require.NoError(t, err)

	worktree := filepath.Join(root, "worktree-copy.py")
	require.NoError(t, os.WriteFile(worktree,
		[]byte("import os\n\ndef hello():\n    return \"hello\"\n"), 0o644))

	_, out, err := svc.RecordModification(ctx, nil, RecordModificationInput{
		TaskID:       "task-a",
		FilePath:     "src/app.py",
		WorktreePath: worktree,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ChangeCount)
}

func TestMergeTaskDryRunDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	baseline := "def hello():\n    return \"hello\"\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/app.py"), []byte(baseline), 0o644))

	orch, err := merge.NewOrchestrator(root, merge.Options{})
	require.NoError(t, err)
	svc := NewMergeService(orch, nil)
	ctx := context.Background()

	_, _, err = svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{
		TaskID: "task-a",
		Files:  []string{"src/app.py"},
	})
	require.NoError(t, err)
	_, _, err = svc.RecordModification(ctx, nil, RecordModificationInput{
		TaskID:   "task-a",
		FilePath: "src/app.py",
		Content:  "import logging\n\n" + baseline,
	})
	require.NoError(t, err)

	_, out, err := svc.MergeTask(ctx, nil, MergeTaskInput{TaskIDs: []string{"task-a"}, DryRun: true})
	require.NoError(t, err)
	assert.True(t, out.Report.Success)
	assert.Contains(t, out.Report.Files[0].MergedContent, "import logging")

	onDisk, err := os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Equal(t, baseline, string(onDisk), "a dry-run merge must leave the file untouched")

	// Without the flag the merged content lands on disk.
	_, _, err = svc.MergeTask(ctx, nil, MergeTaskInput{TaskIDs: []string{"task-a"}})
	require.NoError(t, err)
	onDisk, err = os.ReadFile(filepath.Join(root, "src/app.py"))
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "import logging")
}

func TestConflictingFilesRequiresTwoTasks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ConflictingFiles(ctx, nil, ConflictingFilesInput{TaskIDs: []string{"task-a"}})
	assert.EqualError(t, err, "at least two taskIds are required")
}

func TestConflictingFilesFindsOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, task := range []string{"task-a", "task-b"} {
		_, _, err := svc.CaptureBaselines(ctx, nil, CaptureBaselinesInput{
			TaskID: task,
			Files:  []string{"src/app.py"},
		})
		require.NoError(t, err)
	}
	_, _, err := svc.RecordModification(ctx, nil, RecordModificationInput{
		TaskID:   "task-a",
		FilePath: "src/app.py",
		Content:  "import logging\n\ndef hello():\n    return \"hello\"\n",
	})
	require.NoError(t, err)
	_, _, err = svc.RecordModification(ctx, nil, RecordModificationInput{
		TaskID:   "task-b",
		FilePath: "src/app.py",
		Content:  "import os\n\ndef hello():\n    return \"hello\"\n",
	})
	require.NoError(t, err)

	_, out, err := svc.ConflictingFiles(ctx, nil, ConflictingFilesInput{
		TaskIDs: []string{"task-a", "task-b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py"}, out.Files)
}

func TestResolveConflictFileWithoutModel(t *testing.T) {
	svc, _ := newTestService(t)

	_, out, err := svc.ResolveConflictFile(context.Background(), nil, ResolveConflictFileInput{
		FilePath: "src/greet.py",
		Content:  conflictedPy,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ConflictsFound)
	assert.Equal(t, 0, out.ConflictsResolved)
	assert.NotContains(t, out.ResolvedContent, "<<<<<<<")
	assert.NotContains(t, out.ResolvedContent, ">>>>>>>")
	assert.Contains(t, out.ResolvedContent, "hi there")
	assert.NotContains(t, out.ResolvedContent, "\"hello\"")
}

func TestResolveConflictFileNoMarkers(t *testing.T) {
	svc, _ := newTestService(t)
	clean := "def greet():\n    return \"hello\"\n"

	_, out, err := svc.ResolveConflictFile(context.Background(), nil, ResolveConflictFileInput{
		FilePath: "src/greet.py",
		Content:  clean,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ConflictsFound)
	assert.Equal(t, clean, out.ResolvedContent)
}

func TestResolveConflictFileRequiresContent(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.ResolveConflictFile(context.Background(), nil, ResolveConflictFileInput{})
	assert.EqualError(t, err, "content is required")
}

func TestEvolutionSummaryUntracked(t *testing.T) {
	svc, _ := newTestService(t)

	_, out, err := svc.EvolutionSummary(context.Background(), nil, EvolutionSummaryInput{
		FilePath: "src/other.py",
	})
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "not tracked")
}

func TestNewMergeMCPServer(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NotNil(t, NewMergeMCPServer(svc))
}
