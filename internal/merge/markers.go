package merge

import (
	"fmt"
	"strings"
)

// markerContextLines is how many lines of surrounding code each parsed
// conflict carries for the prompt.
const markerContextLines = 3

// MarkedConflict is one git conflict hunk lifted out of a file containing
// standard conflict markers.
type MarkedConflict struct {
	// ID is CONFLICT_1, CONFLICT_2, ... in file order.
	ID string `json:"id"`
	// MainContent is the ours side, between <<<<<<< and =======.
	MainContent string `json:"main_content"`
	// WorktreeContent is the theirs side, between ======= and >>>>>>>.
	WorktreeContent string `json:"worktree_content"`
	ContextBefore   string `json:"context_before"`
	ContextAfter    string `json:"context_after"`
	// StartByte and EndByte delimit the whole marker block in the source,
	// end exclusive, so hunks splice back without re-parsing.
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
}

// ParseConflictMarkers extracts every conflict hunk from content with git
// conflict markers. The second return is the content with each hunk
// replaced by its worktree side, the safe fallback text when no resolution
// arrives.
func ParseConflictMarkers(content string) ([]MarkedConflict, string) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line)
	}

	var conflicts []MarkedConflict
	var fallback strings.Builder

	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(lines[i], "<<<<<<<") {
			fallback.WriteString(lines[i])
			i++
			continue
		}

		sep, closer := -1, -1
		for j := i + 1; j < len(lines); j++ {
			switch {
			case sep < 0 && strings.HasPrefix(lines[j], "======="):
				sep = j
			case sep >= 0 && strings.HasPrefix(lines[j], ">>>>>>>"):
				closer = j
			}
			if closer >= 0 {
				break
			}
		}
		if sep < 0 || closer < 0 {
			// Malformed block, keep the text as-is.
			fallback.WriteString(lines[i])
			i++
			continue
		}

		main := strings.Join(trimNewlines(lines[i+1:sep]), "\n")
		worktree := strings.Join(trimNewlines(lines[sep+1:closer]), "\n")

		conflicts = append(conflicts, MarkedConflict{
			ID:              fmt.Sprintf("CONFLICT_%d", len(conflicts)+1),
			MainContent:     main,
			WorktreeContent: worktree,
			ContextBefore:   strings.Join(trimNewlines(lines[maxInt(0, i-markerContextLines):i]), "\n"),
			ContextAfter:    strings.Join(trimNewlines(lines[closer+1:minInt(len(lines), closer+1+markerContextLines)]), "\n"),
			StartByte:       offsets[i],
			EndByte:         offsets[closer+1],
		})

		if worktree != "" {
			fallback.WriteString(worktree)
			fallback.WriteString("\n")
		}
		i = closer + 1
	}

	return conflicts, fallback.String()
}

func trimNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimRight(line, "\n")
	}
	return out
}

// BuildConflictOnlyPrompt renders a token-minimized prompt carrying only
// the conflict hunks and a few context lines, never the whole file.
func BuildConflictOnlyPrompt(filePath, language string, conflicts []MarkedConflict, intentTitle, intentDescription string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Resolve %d conflict(s) in %s.\n\n", len(conflicts), filePath)
	if intentTitle != "" {
		fmt.Fprintf(&b, "Task intent: %s\n", intentTitle)
	}
	if intentDescription != "" {
		fmt.Fprintf(&b, "%s\n", intentDescription)
	}
	b.WriteString("\n")

	for _, c := range conflicts {
		fmt.Fprintf(&b, "--- %s ---\n", c.ID)
		if c.ContextBefore != "" {
			fmt.Fprintf(&b, "CONTEXT BEFORE:\n```%s\n%s\n```\n", language, c.ContextBefore)
		}
		fmt.Fprintf(&b, "MAIN BRANCH VERSION:\n```%s\n%s\n```\n", language, c.MainContent)
		fmt.Fprintf(&b, "FEATURE BRANCH VERSION:\n```%s\n%s\n```\n", language, c.WorktreeContent)
		if c.ContextAfter != "" {
			fmt.Fprintf(&b, "CONTEXT AFTER:\n```%s\n%s\n```\n", language, c.ContextAfter)
		}
		b.WriteString("\n")
	}

	b.WriteString("For each conflict, reply with a line `--- CONFLICT_<n> RESOLVED ---` followed by one fenced code block containing the merged code for that conflict. Merge the intent of both versions; do not include conflict markers.\n")
	return b.String()
}
