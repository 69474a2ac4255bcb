package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMergeMCPServer creates an MCP server with all 7 merge tools registered.
func NewMergeMCPServer(svc *MergeService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "intentmerge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_baselines",
		Description: "Record the pre-task state of files a task is about to modify. Call once per task before editing starts; the shared baseline is what merges replay changes onto.",
	}, svc.CaptureBaselines)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_modification",
		Description: "Record a task's final version of one file. Extracts semantic changes (imports, functions, methods, hooks, props) against the task's baseline.",
	}, svc.RecordModification)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_merge",
		Description: "Show which files merging a set of tasks would touch and which conflict regions exist, without modifying anything.",
	}, svc.PreviewMerge)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_task",
		Description: "Merge the recorded changes of one or more tasks back onto the baseline. Compatible changes combine deterministically; true conflicts are escalated or reported for review.",
	}, svc.MergeTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "conflicting_files",
		Description: "List the files that two or more of the given tasks both modified.",
	}, svc.ConflictingFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "evolution_summary",
		Description: "Render a human-readable history of one tracked file: which tasks touched it and what each changed.",
	}, svc.EvolutionSummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_conflict_file",
		Description: "Resolve git conflict markers in a file. Sends only the conflict hunks plus a few context lines to the model; the result never contains markers.",
	}, svc.ResolveConflictFile)

	return server
}

// RunMCPServer starts an HTTP server exposing the merge MCP tools.
func RunMCPServer(ctx context.Context, svc *MergeService, addr string) error {
	server := NewMergeMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
