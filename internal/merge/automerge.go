package merge

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MergeContext carries everything a deterministic strategy needs to rewrite
// one conflict region of a file.
type MergeContext struct {
	FilePath string
	// BaselineContent is the content the strategy transforms. When regions
	// apply sequentially this is the output of the previous region.
	BaselineContent string
	Changes         []TaskChange
	// StartedAt orders tasks for append strategies. Missing tasks sort last.
	StartedAt map[string]time.Time
	Conflict  ConflictRegion
}

// AutoMerger applies deterministic merge strategies with plain text
// transforms anchored on symbols, never on absolute line numbers, so the
// same strategy stays correct as earlier regions shift the file.
type AutoMerger struct{}

// NewAutoMerger creates an AutoMerger.
func NewAutoMerger() *AutoMerger {
	return &AutoMerger{}
}

// CanHandle reports whether the strategy resolves without AI or human input.
func (m *AutoMerger) CanHandle(s MergeStrategy) bool {
	return s.IsDeterministic()
}

// Merge applies the strategy to the context's content. Non-deterministic
// strategies fail; callers route those to the AI resolver instead.
func (m *AutoMerger) Merge(mctx MergeContext, strategy MergeStrategy) MergeResult {
	var (
		merged string
		err    error
	)
	switch strategy {
	case StrategyCombineImports:
		merged, err = m.combineImports(mctx)
	case StrategyAppendFunctions:
		merged, err = m.appendBlocks(mctx, m.orderedChanges(mctx))
	case StrategyAppendMethods:
		merged, err = m.appendMethods(mctx)
	case StrategyHooksFirst:
		merged, err = m.insertHooks(mctx, mctx.BaselineContent)
	case StrategyHooksThenWrap:
		merged, err = m.hooksThenWrap(mctx)
	case StrategyCombineProps:
		merged, err = m.combineProps(mctx)
	case StrategyOrderByDependency:
		merged, err = m.appendBlocks(mctx, dependencyOrder(m.orderedChanges(mctx)))
	case StrategyOrderByTime, StrategyAppendStatements:
		merged, err = m.appendBlocks(mctx, m.orderedChanges(mctx))
	default:
		return MergeResult{
			Success:     false,
			Decision:    DecisionFailed,
			Explanation: fmt.Sprintf("strategy %s cannot be applied deterministically", strategy),
		}
	}
	if err != nil {
		return MergeResult{
			Success:     false,
			Decision:    DecisionFailed,
			Explanation: err.Error(),
		}
	}
	return MergeResult{
		Success:       true,
		MergedContent: merged,
		Decision:      DecisionAutoMerged,
		Explanation:   fmt.Sprintf("applied %s to %s", strategy, mctx.Conflict.Location),
	}
}

// orderedChanges sorts the region's changes by task start time, breaking
// ties by task ID and original line, and drops duplicate targets keeping
// the earliest task's version.
func (m *AutoMerger) orderedChanges(mctx MergeContext) []TaskChange {
	changes := make([]TaskChange, len(mctx.Changes))
	copy(changes, mctx.Changes)
	sort.SliceStable(changes, func(i, j int) bool {
		ti, iok := mctx.StartedAt[changes[i].TaskID]
		tj, jok := mctx.StartedAt[changes[j].TaskID]
		switch {
		case iok && jok && !ti.Equal(tj):
			return ti.Before(tj)
		case iok != jok:
			return iok
		case changes[i].TaskID != changes[j].TaskID:
			return changes[i].TaskID < changes[j].TaskID
		default:
			return changes[i].Change.LineStart < changes[j].Change.LineStart
		}
	})

	seen := make(map[string]bool, len(changes))
	out := changes[:0]
	for _, c := range changes {
		key := string(c.Change.Type) + "\x00" + c.Change.Target
		if c.Change.Target != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// dependencyOrder moves a block after any block whose target name appears in
// its body. Single pass is enough for the shallow chains additive merges
// produce; cycles keep the time order.
func dependencyOrder(changes []TaskChange) []TaskChange {
	out := make([]TaskChange, len(changes))
	copy(out, changes)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Change.Target != "" &&
				strings.Contains(out[i].Change.ContentAfter, out[j].Change.Target) &&
				!strings.Contains(out[j].Change.ContentAfter, out[i].Change.Target) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// --- import union ---

func (m *AutoMerger) combineImports(mctx MergeContext) (string, error) {
	lines := splitLines(mctx.BaselineContent)
	lastImport := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "from ") ||
			strings.HasPrefix(t, "use ") || isQuotedImportLine(lines, i) {
			lastImport = i
		}
	}

	indent := ""
	if lastImport >= 0 {
		indent = leadingWhitespace(lines[lastImport])
	}

	var additions []string
	for _, c := range m.orderedChanges(mctx) {
		text := strings.TrimSpace(c.Change.ContentAfter)
		if text == "" || importPresent(lines, text, c.Change.Target) {
			continue
		}
		additions = append(additions, indent+text)
	}
	if len(additions) == 0 {
		return mctx.BaselineContent, nil
	}

	insertAt := lastImport + 1
	out := make([]string, 0, len(lines)+len(additions))
	out = append(out, lines[:insertAt]...)
	out = append(out, additions...)
	out = append(out, lines[insertAt:]...)
	return joinLines(out, mctx.BaselineContent), nil
}

// isQuotedImportLine matches entries inside a parenthesized import block,
// the common multi-line form in Go sources.
func isQuotedImportLine(lines []string, i int) bool {
	t := strings.TrimSpace(lines[i])
	if !strings.HasPrefix(t, `"`) || !strings.HasSuffix(t, `"`) {
		return false
	}
	for j := i - 1; j >= 0; j-- {
		prev := strings.TrimSpace(lines[j])
		if strings.HasPrefix(prev, "import (") {
			return true
		}
		if prev == ")" || prev == "" && j < i-3 {
			return false
		}
	}
	return false
}

func importPresent(lines []string, text, target string) bool {
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == text {
			return true
		}
		if target != "" && (strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "from ") ||
			strings.HasPrefix(t, "use ") || strings.HasPrefix(t, `"`)) &&
			containsToken(t, target) {
			return true
		}
	}
	return false
}

// containsToken reports whether target occurs in s as a whole identifier,
// so an existing logging_config import does not pass for logging.
func containsToken(s, target string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], target)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(target)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// --- block appends ---

func (m *AutoMerger) appendBlocks(mctx MergeContext, changes []TaskChange) (string, error) {
	content := mctx.BaselineContent
	for _, c := range changes {
		body := strings.TrimRight(c.Change.ContentAfter, "\n")
		if body == "" || blockPresent(content, body) {
			continue
		}
		content = appendBlock(content, body)
	}
	return content, nil
}

// blockPresent treats a block as already merged when its first non-empty
// line exists verbatim, which covers re-runs and overlapping tasks that
// introduced the same definition.
func blockPresent(content, body string) bool {
	for _, line := range splitLines(body) {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		for _, have := range splitLines(content) {
			if strings.TrimSpace(have) == t {
				return true
			}
		}
		return false
	}
	return false
}

func appendBlock(content, body string) string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return body + "\n"
	}
	return trimmed + "\n\n" + body + "\n"
}

// --- method insertion ---

func (m *AutoMerger) appendMethods(mctx MergeContext) (string, error) {
	content := mctx.BaselineContent
	ext := strings.ToLower(filepath.Ext(mctx.FilePath))
	for _, c := range m.orderedChanges(mctx) {
		body := strings.TrimRight(c.Change.ContentAfter, "\n")
		if body == "" || blockPresent(content, body) {
			continue
		}
		class, _, ok := strings.Cut(c.Change.Target, ".")
		if !ok {
			content = appendBlock(content, body)
			continue
		}
		var (
			next string
			err  error
		)
		switch ext {
		case ".py":
			next, err = insertIntoPythonClass(content, class, body)
		case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".rs":
			next, err = insertBeforeClosingBrace(content, classOpener(ext, class), body)
		default:
			// Methods are top level in Go, a plain append is correct.
			next = appendBlock(content, body)
		}
		if err != nil {
			return "", fmt.Errorf("merge: append method %s: %w", c.Change.Target, err)
		}
		content = next
	}
	return content, nil
}

func classOpener(ext, class string) []string {
	if ext == ".rs" {
		return []string{"impl " + class, "impl<"}
	}
	return []string{"class " + class}
}

// insertIntoPythonClass appends the method at the end of the class body,
// found by scanning for the first line dedented back to the class level.
func insertIntoPythonClass(content, class, body string) (string, error) {
	lines := splitLines(content)
	classLine := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "class "+class) {
			classLine = i
			break
		}
	}
	if classLine < 0 {
		return "", fmt.Errorf("class %s not found", class)
	}
	classIndent := leadingWhitespace(lines[classLine])
	end := len(lines)
	for i := classLine + 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if len(leadingWhitespace(lines[i])) <= len(classIndent) {
			end = i
			break
		}
	}
	// Trim trailing blank lines inside the class before inserting.
	insertAt := end
	for insertAt > classLine+1 && strings.TrimSpace(lines[insertAt-1]) == "" {
		insertAt--
	}

	methodIndent := classIndent + "    "
	block := append([]string{""}, indentBlock(body, methodIndent)...)

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:insertAt]...)
	out = append(out, block...)
	out = append(out, lines[insertAt:]...)
	return joinLines(out, content), nil
}

// insertBeforeClosingBrace inserts the body before the brace that closes the
// block opened by any of the given prefixes.
func insertBeforeClosingBrace(content string, openers []string, body string) (string, error) {
	lines := splitLines(content)
	openLine := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		for _, op := range openers {
			if strings.HasPrefix(t, op) {
				openLine = i
				break
			}
		}
		if openLine >= 0 {
			break
		}
	}
	if openLine < 0 {
		return "", fmt.Errorf("declaration %q not found", openers[0])
	}

	depth := 0
	opened := false
	closeLine := -1
	for i := openLine; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth == 0 {
			closeLine = i
			break
		}
	}
	if closeLine < 0 {
		return "", fmt.Errorf("unbalanced braces after %q", openers[0])
	}

	indent := leadingWhitespace(lines[openLine]) + "  "
	block := append([]string{""}, indentBlock(body, indent)...)

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:closeLine]...)
	out = append(out, block...)
	out = append(out, lines[closeLine:]...)
	return joinLines(out, content), nil
}

// indentBlock prefixes the first line with indent and leaves continuation
// lines alone when they already carry indentation of their own.
func indentBlock(body, indent string) []string {
	lines := splitLines(body)
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		if i == 0 || leadingWhitespace(line) == "" {
			out[i] = indent + line
		} else {
			out[i] = line
		}
	}
	return out
}

// --- hook insertion ---

func (m *AutoMerger) insertHooks(mctx MergeContext, content string) (string, error) {
	fnName := strings.TrimPrefix(mctx.Conflict.Location, "function:")
	fnName = strings.TrimPrefix(fnName, "method:")
	if i := strings.LastIndex(fnName, "."); i >= 0 {
		fnName = fnName[i+1:]
	}

	for _, c := range m.orderedChanges(mctx) {
		if c.Change.Type != ChangeAddHookCall {
			continue
		}
		stmt := strings.TrimSpace(c.Change.ContentAfter)
		if stmt == "" || strings.Contains(content, stmt) {
			continue
		}
		next, err := insertAtFunctionTop(content, fnName, stmt)
		if err != nil {
			return "", fmt.Errorf("merge: insert hook %s: %w", c.Change.Target, err)
		}
		content = next
	}
	return content, nil
}

// insertAtFunctionTop places the statement as the first line of the named
// function's body, using the indentation of the existing first statement.
func insertAtFunctionTop(content, fnName, stmt string) (string, error) {
	lines := splitLines(content)
	declLine := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "def "+fnName) ||
			strings.HasPrefix(t, "function "+fnName) ||
			strings.HasPrefix(t, "const "+fnName+" ") ||
			strings.HasPrefix(t, "export function "+fnName) ||
			strings.HasPrefix(t, "export const "+fnName+" ") ||
			strings.HasPrefix(t, "func "+fnName) {
			declLine = i
			break
		}
	}
	if declLine < 0 {
		return "", fmt.Errorf("function %s not found", fnName)
	}

	// The body starts after the line ending the signature, the ":" line in
	// Python or the "{" line elsewhere.
	bodyStart := -1
	for i := declLine; i < len(lines); i++ {
		t := strings.TrimRight(lines[i], " \t")
		if strings.HasSuffix(t, ":") || strings.Contains(t, "{") {
			bodyStart = i + 1
			break
		}
	}
	if bodyStart < 0 || bodyStart > len(lines) {
		return "", fmt.Errorf("function %s has no body", fnName)
	}

	indent := leadingWhitespace(lines[declLine]) + "    "
	for i := bodyStart; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			indent = leadingWhitespace(lines[i])
			break
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:bodyStart]...)
	out = append(out, indent+stmt)
	out = append(out, lines[bodyStart:]...)
	return joinLines(out, content), nil
}

func (m *AutoMerger) hooksThenWrap(mctx MergeContext) (string, error) {
	content := mctx.BaselineContent

	// Apply the wrapper first so hooks land inside the wrapped body.
	for _, c := range m.orderedChanges(mctx) {
		if c.Change.Type != ChangeWrapComponent {
			continue
		}
		before := strings.TrimRight(c.Change.ContentBefore, "\n")
		after := strings.TrimRight(c.Change.ContentAfter, "\n")
		if before == "" || after == "" {
			continue
		}
		if strings.Contains(content, before) {
			content = strings.Replace(content, before, after, 1)
		} else if !strings.Contains(content, after) {
			return "", fmt.Errorf("merge: wrap target for %s not found in %s", c.Change.Target, mctx.FilePath)
		}
	}
	return m.insertHooks(mctx, content)
}

// --- prop union ---

func (m *AutoMerger) combineProps(mctx MergeContext) (string, error) {
	name := strings.TrimPrefix(mctx.Conflict.Location, "interface:")
	content := mctx.BaselineContent
	for _, c := range m.orderedChanges(mctx) {
		prop := strings.TrimSpace(c.Change.ContentAfter)
		if prop == "" || strings.Contains(content, prop) {
			continue
		}
		next, err := insertBeforeClosingBrace(content, []string{
			"interface " + name,
			"export interface " + name,
			"type " + name + " ",
		}, prop)
		if err != nil {
			return "", fmt.Errorf("merge: combine props on %s: %w", name, err)
		}
		content = next
	}
	return content, nil
}

// --- shared text helpers ---

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// joinLines reassembles lines, preserving whether the original content ended
// with a newline.
func joinLines(lines []string, original string) string {
	s := strings.Join(lines, "\n")
	if strings.HasSuffix(original, "\n") && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
