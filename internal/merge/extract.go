package merge

import (
	"regexp"
	"strings"
)

var (
	resolvedMarkerRe = regexp.MustCompile(`(?i)---\s*CONFLICT[_\s]*(\d+)\s+RESOLVED\s*---`)
	fencedBlockRe    = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)\n?```")
)

// firstFencedBlock returns the body of the first fenced code block in s.
func firstFencedBlock(s string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractConflictResolutions maps conflict IDs to resolved code pulled from
// a model response. Each resolution is a `--- CONFLICT_n RESOLVED ---`
// marker followed by a fenced block. When the response carries exactly one
// fenced block, no markers, and only one conflict was asked about, the
// block is taken as that conflict's resolution.
func ExtractConflictResolutions(response string, conflictIDs []string) map[string]string {
	resolutions := make(map[string]string)

	marks := resolvedMarkerRe.FindAllStringSubmatchIndex(response, -1)
	for i, m := range marks {
		id := "CONFLICT_" + response[m[2]:m[3]]
		if !containsID(conflictIDs, id) {
			continue
		}
		segEnd := len(response)
		if i+1 < len(marks) {
			segEnd = marks[i+1][0]
		}
		if block, ok := firstFencedBlock(response[m[1]:segEnd]); ok {
			resolutions[id] = block
		}
	}

	if len(resolutions) == 0 && len(conflictIDs) == 1 {
		blocks := fencedBlockRe.FindAllStringSubmatch(response, -1)
		if len(blocks) == 1 {
			resolutions[conflictIDs[0]] = blocks[0][1]
		}
	}
	return resolutions
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if strings.EqualFold(candidate, id) {
			return true
		}
	}
	return false
}

// ReassembleWithResolutions splices resolutions back into the original
// marked-up content by byte offset, back to front so earlier offsets stay
// valid. Conflicts without a resolution fall back to their worktree side.
// The output never contains conflict markers.
func ReassembleWithResolutions(content string, conflicts []MarkedConflict, resolutions map[string]string) string {
	out := content
	for i := len(conflicts) - 1; i >= 0; i-- {
		c := conflicts[i]
		replacement, ok := resolutions[c.ID]
		if !ok {
			replacement = c.WorktreeContent
		}
		replacement = strings.TrimRight(replacement, "\n")
		if replacement != "" {
			replacement += "\n"
		}
		out = out[:c.StartByte] + replacement + out[c.EndByte:]
	}
	return out
}
