package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

func TestScanEmptyProject(t *testing.T) {
	st, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, st.Files)
	assert.Empty(t, st.Tasks)
}

func TestScanTrackedProject(t *testing.T) {
	root := t.TempDir()
	baseline := "def hello():\n    return \"hello\"\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/app.py"), []byte(baseline), 0o644))

	store, err := merge.NewDiskStore(root)
	require.NoError(t, err)
	tracker := merge.NewFileEvolutionTracker(root, store)

	require.NoError(t, tracker.CaptureBaselines("task-a", []string{"src/app.py"}, "add logging"))
	require.NoError(t, tracker.CaptureBaselines("task-b", []string{"src/app.py"}, "add helper"))
	_, err = tracker.RecordModification("task-a", "src/app.py", "import logging\n\n"+baseline)
	require.NoError(t, err)
	_, err = tracker.RecordModification("task-b", "src/app.py", baseline+"\ndef helper():\n    pass\n")
	require.NoError(t, err)

	st, err := Scan(root)
	require.NoError(t, err)

	require.Len(t, st.Files, 1)
	f := st.Files[0]
	assert.Equal(t, "src/app.py", f.FilePath)
	assert.ElementsMatch(t, []string{"task-a", "task-b"}, f.Tasks)
	assert.True(t, f.Conflicted)

	require.Len(t, st.Tasks, 2)
	assert.Equal(t, "task-a", st.Tasks[0].TaskID)
	assert.Equal(t, 1, st.Tasks[0].Completed)
	assert.Equal(t, 0, st.Tasks[0].Open)
	assert.Equal(t, "add logging", st.Tasks[0].Intent)
	assert.Equal(t, 1, st.Tasks[0].Changes)
}
