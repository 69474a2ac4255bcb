package mcptools

import "github.com/dusk-indust/intentmerge/internal/merge"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// CaptureBaselinesInput is the input for the capture_baselines MCP tool.
type CaptureBaselinesInput struct {
	TaskID string   `json:"taskId" jsonschema:"the unique ID of the task about to start"`
	Files  []string `json:"files" jsonschema:"project-relative paths of the files the task may modify"`
	Intent string   `json:"intent,omitempty" jsonschema:"short natural-language description of what the task is trying to achieve"`
}

// CaptureBaselinesOutput is the result of the capture_baselines MCP tool.
type CaptureBaselinesOutput struct {
	FilesTracked int `json:"filesTracked"`
}

// RecordModificationInput is the input for the record_modification MCP tool.
type RecordModificationInput struct {
	TaskID   string `json:"taskId" jsonschema:"the ID of the task that finished editing the file"`
	FilePath string `json:"filePath" jsonschema:"project-relative path of the modified file"`
	Content  string `json:"content,omitempty" jsonschema:"the new file content. When omitted, the file is read from worktreePath"`
	// WorktreePath lets agents avoid inlining large files in the call.
	WorktreePath string `json:"worktreePath,omitempty" jsonschema:"absolute path of the task's copy of the file, read when content is omitted"`
}

// RecordModificationOutput is the result of the record_modification MCP tool.
type RecordModificationOutput struct {
	Changes     []merge.SemanticChange `json:"changes"`
	ChangeCount int                    `json:"changeCount"`
}

// PreviewMergeInput is the input for the preview_merge MCP tool.
type PreviewMergeInput struct {
	TaskIDs []string `json:"taskIds" jsonschema:"the tasks whose changes would be merged together"`
}

// PreviewMergeOutput is the result of the preview_merge MCP tool.
type PreviewMergeOutput struct {
	Preview merge.MergePreview `json:"preview"`
}

// MergeTaskInput is the input for the merge_task MCP tool.
type MergeTaskInput struct {
	TaskIDs []string `json:"taskIds" jsonschema:"the tasks to merge, in any order"`
	DryRun  bool     `json:"dryRun,omitempty" jsonschema:"when true, compute the merge but do not write files"`
}

// MergeTaskOutput is the result of the merge_task MCP tool.
type MergeTaskOutput struct {
	Report merge.MergeReport `json:"report"`
}

// ConflictingFilesInput is the input for the conflicting_files MCP tool.
type ConflictingFilesInput struct {
	TaskIDs []string `json:"taskIds" jsonschema:"the tasks to check for overlapping file modifications"`
}

// ConflictingFilesOutput is the result of the conflicting_files MCP tool.
type ConflictingFilesOutput struct {
	Files []string `json:"files"`
}

// EvolutionSummaryInput is the input for the evolution_summary MCP tool.
type EvolutionSummaryInput struct {
	FilePath string `json:"filePath" jsonschema:"project-relative path of the tracked file"`
}

// EvolutionSummaryOutput is the result of the evolution_summary MCP tool.
type EvolutionSummaryOutput struct {
	Summary string `json:"summary"`
}

// ResolveConflictFileInput is the input for the resolve_conflict_file MCP tool.
type ResolveConflictFileInput struct {
	FilePath          string `json:"filePath" jsonschema:"path of the file, used to pick the language for prompts"`
	Content           string `json:"content" jsonschema:"file content containing git conflict markers"`
	IntentTitle       string `json:"intentTitle,omitempty" jsonschema:"title of the task whose branch is being merged"`
	IntentDescription string `json:"intentDescription,omitempty" jsonschema:"description of the task's intent"`
}

// ResolveConflictFileOutput is the result of the resolve_conflict_file MCP tool.
type ResolveConflictFileOutput struct {
	ResolvedContent   string `json:"resolvedContent"`
	ConflictsFound    int    `json:"conflictsFound"`
	ConflictsResolved int    `json:"conflictsResolved"`
}
