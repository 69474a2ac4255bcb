package merge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// CompleteFunc produces a completion for a system and user prompt. The
// resolver is transport-agnostic; callers inject an implementation backed
// by whatever model endpoint they run.
type CompleteFunc func(ctx context.Context, system, user string) (string, error)

// ResolverStats accumulates usage across resolutions.
type ResolverStats struct {
	CallsMade       int `json:"calls_made"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// defaultContextLines bounds how much surrounding code the prompt carries
// on each side of the conflict region.
const defaultContextLines = 10

// AIResolver escalates conflict regions no deterministic strategy can
// handle to a model, sending only the region and bounded context rather
// than whole files.
type AIResolver struct {
	fn           CompleteFunc
	analyzer     *SemanticAnalyzer
	contextLines int

	mu    sync.Mutex
	stats ResolverStats
}

// NewAIResolver creates a resolver. A nil fn is valid and makes every
// resolution report for human review instead of calling out.
func NewAIResolver(fn CompleteFunc) *AIResolver {
	return &AIResolver{
		fn:           fn,
		analyzer:     NewSemanticAnalyzer(),
		contextLines: defaultContextLines,
	}
}

// CanResolve reports whether this resolver can attempt the region.
func (r *AIResolver) CanResolve(region ConflictRegion) bool {
	return r.fn != nil && !region.CanAutoMerge
}

// Stats returns the usage accumulated since the last reset.
func (r *AIResolver) Stats() ResolverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ResetStats zeroes the usage counters.
func (r *AIResolver) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = ResolverStats{}
}

func (r *AIResolver) record(system, user, response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CallsMade++
	r.stats.EstimatedTokens += estimateTokens(system, user, response)
}

// ResolveConflict sends one conflict region to the model and splices the
// resolution back into the content. Absent or failing models degrade to a
// human-review result, never an error.
func (r *AIResolver) ResolveConflict(ctx context.Context, mctx MergeContext) MergeResult {
	if r.fn == nil {
		return MergeResult{
			Success:  false,
			Decision: DecisionNeedsHumanReview,
			Explanation: fmt.Sprintf("No AI function configured; conflict at %s in %s needs human review",
				mctx.Conflict.Location, mctx.FilePath),
		}
	}

	lines := splitLines(mctx.BaselineContent)
	start, end := r.regionBounds(mctx, lines)
	region := strings.Join(lines[start:end], "\n")
	ctxBefore := strings.Join(lines[maxInt(0, start-r.contextLines):start], "\n")
	ctxAfter := strings.Join(lines[end:minInt(len(lines), end+r.contextLines)], "\n")

	fence := r.analyzer.FenceLabel(mctx.FilePath)
	user := buildResolvePrompt(mctx, fence, region, ctxBefore, ctxAfter)

	response, err := r.fn(ctx, resolverSystemPrompt, user)
	r.record(resolverSystemPrompt, user, response)
	if err != nil {
		log.Warn("AI resolution failed", "file", mctx.FilePath, "location", mctx.Conflict.Location, "err", err)
		return MergeResult{
			Success:  false,
			Decision: DecisionNeedsHumanReview,
			AICalls:  1,
			Explanation: fmt.Sprintf("AI resolution failed for %s in %s: %v",
				mctx.Conflict.Location, mctx.FilePath, err),
		}
	}

	resolved, ok := firstFencedBlock(response)
	if !ok {
		return MergeResult{
			Success:  false,
			Decision: DecisionNeedsHumanReview,
			AICalls:  1,
			Explanation: fmt.Sprintf("AI response for %s in %s contained no fenced code block",
				mctx.Conflict.Location, mctx.FilePath),
		}
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:start]...)
	out = append(out, splitLines(resolved)...)
	out = append(out, lines[end:]...)

	return MergeResult{
		Success:       true,
		MergedContent: joinLines(out, mctx.BaselineContent),
		Decision:      DecisionAIMerged,
		AICalls:       1,
		Explanation:   fmt.Sprintf("AI merged %s in %s", mctx.Conflict.Location, mctx.FilePath),
	}
}

// regionBounds locates the conflict region in the current content and
// returns half-open line indexes. Resolution order: verbatim before-content
// from any change, then the symbol named by the location, then the import
// block for file-top conflicts, then the whole file.
func (r *AIResolver) regionBounds(mctx MergeContext, lines []string) (int, int) {
	for _, c := range mctx.Changes {
		before := strings.TrimRight(c.Change.ContentBefore, "\n")
		if before == "" {
			continue
		}
		if start, end, ok := findLineSpan(lines, before); ok {
			return start, end
		}
	}

	loc := mctx.Conflict.Location
	switch {
	case loc == LocationFileTop:
		first, last := importSpan(lines)
		if last >= first {
			return first, last + 1
		}
		return 0, minInt(len(lines), r.contextLines)

	case strings.HasPrefix(loc, "function:"), strings.HasPrefix(loc, "method:"),
		strings.HasPrefix(loc, "class:"), strings.HasPrefix(loc, "interface:"):
		if start, end, ok := r.symbolSpan(mctx.FilePath, mctx.BaselineContent, loc); ok {
			return start, end
		}
	}
	return 0, len(lines)
}

func (r *AIResolver) symbolSpan(path, content, loc string) (int, int, bool) {
	out := r.analyzer.outlineOf(path, content)
	if out == nil {
		return 0, 0, false
	}
	kind, name, _ := strings.Cut(loc, ":")
	switch kind {
	case "function", "method":
		for _, fn := range out.functions {
			if fn.key() == name {
				return fn.StartLine - 1, fn.EndLine, true
			}
		}
	case "class":
		first, last := -1, -1
		for _, fn := range out.functions {
			if fn.Class == name {
				if first < 0 || fn.StartLine-1 < first {
					first = fn.StartLine - 1
				}
				if fn.EndLine > last {
					last = fn.EndLine
				}
			}
		}
		if first >= 0 {
			return first, last, true
		}
	case "interface":
		for _, iface := range out.interfaces {
			if iface.Name == name {
				return iface.StartLine - 1, iface.EndLine, true
			}
		}
	}
	return 0, 0, false
}

// findLineSpan locates a multi-line needle by matching trimmed lines.
func findLineSpan(lines []string, needle string) (int, int, bool) {
	want := splitLines(needle)
	if len(want) == 0 {
		return 0, 0, false
	}
	for i := 0; i+len(want) <= len(lines); i++ {
		match := true
		for j := range want {
			if strings.TrimSpace(lines[i+j]) != strings.TrimSpace(want[j]) {
				match = false
				break
			}
		}
		if match {
			return i, i + len(want), true
		}
	}
	return 0, 0, false
}

// importSpan returns the first and last import-like line indexes, with
// last == -1 when none exist.
func importSpan(lines []string) (int, int) {
	first, last := 0, -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "from ") ||
			strings.HasPrefix(t, "use ") || strings.HasPrefix(t, "import (") ||
			isQuotedImportLine(lines, i) {
			if last < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}
