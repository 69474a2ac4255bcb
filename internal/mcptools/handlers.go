package mcptools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

// MergeService holds the orchestrator and resolver callback used by MCP
// tool handlers.
type MergeService struct {
	orch     *merge.Orchestrator
	analyzer *merge.SemanticAnalyzer
	complete merge.CompleteFunc
}

// NewMergeService creates a MergeService. complete may be nil, which makes
// resolve_conflict_file fall back to the worktree side of each conflict.
func NewMergeService(orch *merge.Orchestrator, complete merge.CompleteFunc) *MergeService {
	return &MergeService{
		orch:     orch,
		analyzer: merge.NewSemanticAnalyzer(),
		complete: complete,
	}
}

// CaptureBaselines records the pre-task state of the files a task is about
// to modify.
func (s *MergeService) CaptureBaselines(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CaptureBaselinesInput,
) (*mcp.CallToolResult, CaptureBaselinesOutput, error) {
	if input.TaskID == "" {
		return nil, CaptureBaselinesOutput{}, fmt.Errorf("taskId is required")
	}
	if len(input.Files) == 0 {
		return nil, CaptureBaselinesOutput{}, fmt.Errorf("files is required")
	}
	if err := s.orch.Tracker().CaptureBaselines(input.TaskID, input.Files, input.Intent); err != nil {
		return nil, CaptureBaselinesOutput{}, err
	}
	return nil, CaptureBaselinesOutput{FilesTracked: len(input.Files)}, nil
}

// RecordModification completes a task's snapshot of one file and returns
// the semantic changes it extracted.
func (s *MergeService) RecordModification(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecordModificationInput,
) (*mcp.CallToolResult, RecordModificationOutput, error) {
	if input.TaskID == "" || input.FilePath == "" {
		return nil, RecordModificationOutput{}, fmt.Errorf("taskId and filePath are required")
	}
	content := input.Content
	if content == "" && input.WorktreePath != "" {
		data, err := os.ReadFile(input.WorktreePath)
		if err != nil {
			return nil, RecordModificationOutput{}, fmt.Errorf("read worktree copy: %w", err)
		}
		content = string(data)
	}
	snap, err := s.orch.Tracker().RecordModification(input.TaskID, input.FilePath, content)
	if err != nil {
		return nil, RecordModificationOutput{}, err
	}
	return nil, RecordModificationOutput{
		Changes:     snap.Changes,
		ChangeCount: len(snap.Changes),
	}, nil
}

// PreviewMerge reports what merging the tasks would do without writing.
func (s *MergeService) PreviewMerge(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PreviewMergeInput,
) (*mcp.CallToolResult, PreviewMergeOutput, error) {
	if len(input.TaskIDs) == 0 {
		return nil, PreviewMergeOutput{}, fmt.Errorf("taskIds is required")
	}
	preview, err := s.orch.PreviewMerge(input.TaskIDs)
	if err != nil {
		return nil, PreviewMergeOutput{}, err
	}
	return nil, PreviewMergeOutput{Preview: *preview}, nil
}

// MergeTask merges the tasks' recorded changes and returns the report.
func (s *MergeService) MergeTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeTaskInput,
) (*mcp.CallToolResult, MergeTaskOutput, error) {
	if len(input.TaskIDs) == 0 {
		return nil, MergeTaskOutput{}, fmt.Errorf("taskIds is required")
	}
	run := s.orch.MergeTasks
	if input.DryRun {
		run = s.orch.MergeTasksDryRun
	}
	report, err := run(ctx, input.TaskIDs)
	if err != nil {
		return nil, MergeTaskOutput{}, err
	}
	return nil, MergeTaskOutput{Report: *report}, nil
}

// ConflictingFiles lists the files two or more of the tasks both modified.
func (s *MergeService) ConflictingFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConflictingFilesInput,
) (*mcp.CallToolResult, ConflictingFilesOutput, error) {
	if len(input.TaskIDs) < 2 {
		return nil, ConflictingFilesOutput{}, fmt.Errorf("at least two taskIds are required")
	}
	files, err := s.orch.Tracker().GetConflictingFiles(input.TaskIDs)
	if err != nil {
		return nil, ConflictingFilesOutput{}, err
	}
	return nil, ConflictingFilesOutput{Files: files}, nil
}

// EvolutionSummary renders one tracked file's history.
func (s *MergeService) EvolutionSummary(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EvolutionSummaryInput,
) (*mcp.CallToolResult, EvolutionSummaryOutput, error) {
	if input.FilePath == "" {
		return nil, EvolutionSummaryOutput{}, fmt.Errorf("filePath is required")
	}
	summary, err := s.orch.Tracker().EvolutionSummary(input.FilePath)
	if err != nil {
		return nil, EvolutionSummaryOutput{}, err
	}
	return nil, EvolutionSummaryOutput{Summary: summary}, nil
}

// ResolveConflictFile resolves git conflict markers in a file, sending only
// the conflict hunks to the model. Without a model every hunk falls back to
// its worktree side; the output never contains markers either way.
func (s *MergeService) ResolveConflictFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveConflictFileInput,
) (*mcp.CallToolResult, ResolveConflictFileOutput, error) {
	if input.Content == "" {
		return nil, ResolveConflictFileOutput{}, fmt.Errorf("content is required")
	}

	conflicts, fallback := merge.ParseConflictMarkers(input.Content)
	out := ResolveConflictFileOutput{ConflictsFound: len(conflicts)}
	if len(conflicts) == 0 {
		out.ResolvedContent = input.Content
		return nil, out, nil
	}
	if s.complete == nil {
		out.ResolvedContent = fallback
		return nil, out, nil
	}

	language := s.analyzer.FenceLabel(input.FilePath)
	prompt := merge.BuildConflictOnlyPrompt(input.FilePath, language, conflicts,
		input.IntentTitle, input.IntentDescription)
	response, err := s.complete(ctx, "You are a precise code merge assistant.", prompt)
	if err != nil {
		// Degrade rather than fail the tool call.
		out.ResolvedContent = fallback
		return nil, out, nil
	}

	ids := make([]string, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	resolutions := merge.ExtractConflictResolutions(response, ids)
	out.ConflictsResolved = len(resolutions)
	out.ResolvedContent = merge.ReassembleWithResolutions(input.Content, conflicts, resolutions)

	if strings.Contains(out.ResolvedContent, "<<<<<<<") {
		return nil, out, fmt.Errorf("reassembled content still contains conflict markers")
	}
	return nil, out, nil
}
