package merge

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// textualAnalysis is the degraded analysis path for files without a
// registered grammar: a line-level diff classified into coarse added and
// modified blocks. Precision is reduced, but callers can still group and
// merge whole-block changes.
func textualAnalysis(path, before, after string) FileAnalysis {
	if before == after {
		return FileAnalysis{FilePath: path}
	}

	beforeLines := splitLines(before)
	afterLines := splitLines(after)
	matcher := difflib.NewMatcher(beforeLines, afterLines)

	var changes []SemanticChange
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			changes = append(changes, SemanticChange{
				Type:         ChangeAddStatement,
				Target:       fmt.Sprintf("block_%d", op.J1+1),
				Location:     fmt.Sprintf("block:%d", op.I1),
				LineStart:    op.J1 + 1,
				LineEnd:      op.J2,
				ContentAfter: strings.Join(afterLines[op.J1:op.J2], "\n"),
			})
		case 'r', 'd':
			changes = append(changes, SemanticChange{
				Type:          ChangeModifyBlock,
				Target:        fmt.Sprintf("block_%d", op.I1+1),
				Location:      fmt.Sprintf("block:%d", op.I1),
				LineStart:     op.I1 + 1,
				LineEnd:       maxInt(op.I2, op.I1+1),
				ContentBefore: strings.Join(beforeLines[op.I1:op.I2], "\n"),
				ContentAfter:  strings.Join(afterLines[op.J1:op.J2], "\n"),
			})
		}
	}

	return FileAnalysis{FilePath: path, Changes: changes}
}

// splitLines splits content into lines without trailing newline artifacts.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
