package merge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedEvolution() *FileEvolution {
	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Minute)
	return &FileEvolution{
		FilePath:        "src/app.py",
		BaselineCommit:  "abc123def456",
		BaselineContent: "def hello():\n    return \"hello\"\n",
		Snapshots: []TaskSnapshot{
			{
				TaskID:      "task-a",
				TaskIntent:  "add logging",
				StartedAt:   started,
				CompletedAt: &completed,
				Changes: []SemanticChange{
					{Type: ChangeAddImport, Target: "logging", Location: LocationFileTop, LineStart: 1, LineEnd: 1},
				},
			},
		},
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	evo := storedEvolution()
	require.NoError(t, store.Save(evo))

	// One JSON document per tracked file, path sanitized.
	_, err = os.Stat(filepath.Join(store.Dir(), SanitizePath("src/app.py")+".json"))
	require.NoError(t, err)

	back, err := store.Load("src/app.py")
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.Equal(t, evo.FilePath, back.FilePath)
	assert.Equal(t, evo.BaselineCommit, back.BaselineCommit)
	assert.Equal(t, evo.BaselineContent, back.BaselineContent)
	require.Len(t, back.Snapshots, 1)
	snap := back.Snapshots[0]
	assert.Equal(t, "task-a", snap.TaskID)
	assert.True(t, snap.Completed())
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, ChangeAddImport, snap.Changes[0].Type)
	assert.True(t, snap.StartedAt.Equal(evo.Snapshots[0].StartedAt))
}

func TestDiskStoreLoadMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	evo, err := store.Load("src/nope.py")
	require.NoError(t, err)
	assert.Nil(t, evo)
}

func TestDiskStoreListAndDelete(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	evo := storedEvolution()
	require.NoError(t, store.Save(evo))
	other := storedEvolution()
	other.FilePath = "src/auth.py"
	require.NoError(t, store.Save(other))

	paths, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/app.py", "src/auth.py"}, paths)

	require.NoError(t, store.Delete("src/app.py"))
	paths, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/auth.py"}, paths)
}

func TestMemStoreCopiesOnLoad(t *testing.T) {
	store := NewMemStore()
	evo := storedEvolution()
	require.NoError(t, store.Save(evo))

	first, err := store.Load("src/app.py")
	require.NoError(t, err)
	first.Snapshots[0].TaskID = "mutated"

	second, err := store.Load("src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "task-a", second.Snapshots[0].TaskID)
}
