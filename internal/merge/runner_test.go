package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerEmptyInput(t *testing.T) {
	r := NewMergeRunner(nil, 4)
	results := r.Run(context.Background(), nil)
	assert.Empty(t, results)
}

func TestRunnerFastPaths(t *testing.T) {
	r := NewMergeRunner(nil, 2)

	base := "def f():\n    return 1\n"
	edited := "def f():\n    return 2\n"

	results := r.Run(context.Background(), []ParallelMergeTask{
		{FilePath: "same.py", MainContent: edited, WorktreeContent: edited, BaseContent: base},
		{FilePath: "only_main.py", MainContent: edited, WorktreeContent: base, BaseContent: base},
		{FilePath: "only_worktree.py", MainContent: base, WorktreeContent: edited, BaseContent: base},
	})
	require.Len(t, results, 3)

	for _, res := range results {
		assert.True(t, res.Success, res.FilePath)
		assert.True(t, res.WasAutoMerged, res.FilePath)
		assert.Equal(t, edited, res.MergedContent, res.FilePath)
	}
}

func TestRunnerSemanticMerge(t *testing.T) {
	r := NewMergeRunner(nil, 2)

	base := "def hello():\n    return \"hello\"\n"
	main := "import os\n\n" + base
	worktree := base + "\ndef extra():\n    return 2\n"

	results := r.Run(context.Background(), []ParallelMergeTask{
		{FilePath: "src/app.py", MainContent: main, WorktreeContent: worktree, BaseContent: base},
	})
	require.Len(t, results, 1)

	res := results[0]
	require.True(t, res.Success, res.Error)
	assert.True(t, res.WasAutoMerged)
	assert.Contains(t, res.MergedContent, "import os")
	assert.Contains(t, res.MergedContent, "def hello")
	assert.Contains(t, res.MergedContent, "def extra")
}

func TestRunnerFailureIsIsolated(t *testing.T) {
	r := NewMergeRunner(nil, 2)

	base := "def f():\n    return 1\n"
	good := ParallelMergeTask{
		FilePath:        "good.py",
		MainContent:     "import os\n\n" + base,
		WorktreeContent: base,
		BaseContent:     base,
	}
	// Both sides rewrote the same function and no AI is configured.
	bad := ParallelMergeTask{
		FilePath:        "bad.py",
		MainContent:     "def f():\n    return 2\n",
		WorktreeContent: "def f():\n    return 3\n",
		BaseContent:     base,
	}

	results := r.Run(context.Background(), []ParallelMergeTask{good, bad, good})
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.True(t, results[2].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].MergedContent)
}

func TestRunnerWithAIEscalation(t *testing.T) {
	fn := func(ctx context.Context, system, user string) (string, error) {
		return "```python\ndef f():\n    return 5\n```", nil
	}
	r := NewMergeRunner(fn, 1)

	base := "def f():\n    return 1\n"
	results := r.Run(context.Background(), []ParallelMergeTask{{
		FilePath:        "src/f.py",
		MainContent:     "def f():\n    return 2\n",
		WorktreeContent: "def f():\n    return 3\n",
		BaseContent:     base,
	}})
	require.Len(t, results, 1)

	res := results[0]
	require.True(t, res.Success, res.Error)
	assert.False(t, res.WasAutoMerged, "AI-merged files are not auto-merged")
	assert.Contains(t, res.MergedContent, "return 5")
}

func TestRunnerDefaultConcurrency(t *testing.T) {
	r := NewMergeRunner(nil, 0)
	assert.Greater(t, r.concurrency, 0)
}
