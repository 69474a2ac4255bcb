package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

// RenderMarkdown produces a human-readable Markdown summary of a merge
// run: per-file outcomes, remaining conflicts, and run statistics.
func RenderMarkdown(report *merge.MergeReport) string {
	var sb strings.Builder

	sb.WriteString("# Merge Report\n\n")
	fmt.Fprintf(&sb, "Tasks: %s\n\n", strings.Join(report.TasksMerged, ", "))
	if report.Success {
		sb.WriteString("Result: **success**\n\n")
	} else {
		sb.WriteString("Result: **needs attention**\n\n")
	}

	fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Files processed | %d |\n", report.Stats.FilesProcessed)
	fmt.Fprintf(&sb, "| Auto-merged | %d |\n", report.Stats.FilesAutoMerged)
	fmt.Fprintf(&sb, "| AI calls | %d |\n", report.Stats.AICallsMade)
	fmt.Fprintf(&sb, "| Duration | %.2fs |\n\n", report.Stats.DurationSeconds)

	files := make([]merge.FileMergeOutcome, len(report.Files))
	copy(files, report.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	sb.WriteString("## Files\n\n")
	for _, f := range files {
		mark := "x"
		if !f.Success {
			mark = " "
		}
		fmt.Fprintf(&sb, "- [%s] `%s` (%s)", mark, f.FilePath, f.Decision)
		if f.Explanation != "" {
			fmt.Fprintf(&sb, ": %s", f.Explanation)
		}
		sb.WriteString("\n")
		for _, c := range f.Conflicts {
			fmt.Fprintf(&sb, "  - conflict at `%s`: %s (severity %s, tasks %s)\n",
				c.Location, c.Reason, c.Severity, strings.Join(c.Tasks, ", "))
		}
	}

	return sb.String()
}
