package merge

import (
	"fmt"
	"strings"
)

// resolverSystemPrompt instructs the model to act as a merge arbiter and to
// answer with code only, keeping responses cheap to parse and to bill.
const resolverSystemPrompt = `You are a code merge assistant. Multiple autonomous tasks edited the same region of a file and their changes could not be combined mechanically. Merge the intent of every task into one coherent version.

Rules:
- Preserve the behavior each task was trying to introduce.
- Keep the surrounding code style and indentation.
- Reply with exactly one fenced code block containing the replacement for the CURRENT CONTENT section. No commentary before or after the block.`

// fragmentLimit bounds how much of any single change fragment enters the
// prompt.
const fragmentLimit = 2000

// buildResolvePrompt renders the user message for one conflict region:
// the file, the competing intents with their change fragments, and the
// current region content with a little surrounding context.
func buildResolvePrompt(mctx MergeContext, fence, region, contextBefore, contextAfter string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", mctx.FilePath)
	fmt.Fprintf(&b, "Conflict location: %s\n", mctx.Conflict.Location)
	if mctx.Conflict.Reason != "" {
		fmt.Fprintf(&b, "Why it conflicts: %s\n", mctx.Conflict.Reason)
	}
	b.WriteString("\n")

	for _, task := range mctx.Conflict.Tasks {
		fmt.Fprintf(&b, "## Task %s\n", task)
		for _, c := range mctx.Changes {
			if c.TaskID != task {
				continue
			}
			fmt.Fprintf(&b, "- %s %s\n", c.Change.Type, c.Change.Target)
			if frag := strings.TrimSpace(c.Change.ContentAfter); frag != "" {
				fmt.Fprintf(&b, "```%s\n%s\n```\n", fence, truncate(frag, fragmentLimit))
			}
		}
		b.WriteString("\n")
	}

	if contextBefore != "" {
		fmt.Fprintf(&b, "## Context before\n```%s\n%s\n```\n\n", fence, contextBefore)
	}
	fmt.Fprintf(&b, "## CURRENT CONTENT\n```%s\n%s\n```\n", fence, region)
	if contextAfter != "" {
		fmt.Fprintf(&b, "\n## Context after\n```%s\n%s\n```\n", fence, contextAfter)
	}

	b.WriteString("\nReturn the merged replacement for the CURRENT CONTENT section in one fenced code block.\n")
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}

// estimateTokens approximates token usage at four bytes per token, enough
// for budget reporting without a tokenizer dependency.
func estimateTokens(prompts ...string) int {
	total := 0
	for _, p := range prompts {
		total += len(p)
	}
	return total / 4
}
