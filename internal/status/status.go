// Package status summarizes the on-disk merge tracking state of a project
// for the CLI's status view.
package status

import (
	"sort"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

// TaskInfo describes one task's footprint across tracked files.
type TaskInfo struct {
	TaskID    string
	Intent    string
	Open      int // files with a captured baseline and no recorded result
	Completed int // files with a recorded modification
	Changes   int // semantic changes across completed snapshots
}

// FileInfo describes one tracked file.
type FileInfo struct {
	FilePath       string
	BaselineCommit string
	Tasks          []string
	Conflicted     bool // two or more tasks completed changes to it
}

// ProjectStatus is the full tracking picture for one project root.
type ProjectStatus struct {
	Files []FileInfo
	Tasks []TaskInfo
}

// Scan reads the evolution store under projectRoot and aggregates it per
// file and per task. A project with no tracking state returns an empty
// status, not an error.
func Scan(projectRoot string) (*ProjectStatus, error) {
	store, err := merge.NewDiskStore(projectRoot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	paths, err := store.List()
	if err != nil {
		return nil, err
	}

	st := &ProjectStatus{}
	tasks := make(map[string]*TaskInfo)

	for _, p := range paths {
		evo, err := store.Load(p)
		if err != nil {
			return nil, err
		}
		if evo == nil {
			continue
		}

		info := FileInfo{FilePath: p, BaselineCommit: evo.BaselineCommit}
		completed := 0
		for _, s := range evo.Snapshots {
			info.Tasks = append(info.Tasks, s.TaskID)

			t, ok := tasks[s.TaskID]
			if !ok {
				t = &TaskInfo{TaskID: s.TaskID, Intent: s.TaskIntent}
				tasks[s.TaskID] = t
			}
			if s.Completed() {
				completed++
				t.Completed++
				t.Changes += len(s.Changes)
			} else {
				t.Open++
			}
		}
		info.Conflicted = completed >= 2
		st.Files = append(st.Files, info)
	}

	for _, t := range tasks {
		st.Tasks = append(st.Tasks, *t)
	}
	sort.Slice(st.Tasks, func(i, j int) bool { return st.Tasks[i].TaskID < st.Tasks[j].TaskID })
	return st, nil
}
