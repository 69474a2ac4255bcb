// Package merge implements the intent-aware merge engine: semantic change
// extraction, conflict classification, deterministic auto-merge strategies,
// AI-assisted arbitration for true conflicts, and a parallel per-file merge
// runner. The engine consumes task identifiers, declared intents, and
// before/after file contents; it produces merged file contents and
// structured reports. It performs no version-control operations beyond
// reading a baseline commit identifier.
package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ChangeType classifies a semantic change at a coarse granularity.
type ChangeType string

const (
	ChangeAddImport      ChangeType = "add_import"
	ChangeAddFunction    ChangeType = "add_function"
	ChangeModifyFunction ChangeType = "modify_function"
	ChangeAddMethod      ChangeType = "add_method"
	ChangeAddHookCall    ChangeType = "add_hook_call"
	ChangeAddProp        ChangeType = "add_prop"
	ChangeWrapComponent  ChangeType = "wrap_component"
	ChangeAddStatement   ChangeType = "add_statement"
	ChangeModifyBlock    ChangeType = "modify_block"
)

// IsAdditive reports whether the change only adds content. Additive changes
// from independent tasks are candidates for rule-based combination; modifying
// changes require compatibility analysis.
func (c ChangeType) IsAdditive() bool {
	switch c {
	case ChangeAddImport, ChangeAddFunction, ChangeAddMethod,
		ChangeAddHookCall, ChangeAddProp, ChangeAddStatement:
		return true
	default:
		return false
	}
}

// LocationFileTop is the symbolic location of the import block.
const LocationFileTop = "file_top"

// LocationFile is the symbolic location for whole-file additions such as new
// top-level functions, which always land at the end of the file.
const LocationFile = "file"

// SemanticChange is one classified, located edit extracted by comparing two
// versions of a file.
type SemanticChange struct {
	Type          ChangeType `json:"changeType"`
	Target        string     `json:"target"`   // symbol name (import module, function, hook, prop)
	Location      string     `json:"location"` // symbolic path, e.g. "file_top" or "function:App"
	LineStart     int        `json:"lineStart"`
	LineEnd       int        `json:"lineEnd"`
	ContentBefore string     `json:"contentBefore,omitempty"`
	ContentAfter  string     `json:"contentAfter,omitempty"`
}

// IsAdditive reports whether this change only adds content.
func (s SemanticChange) IsAdditive() bool {
	return s.Type.IsAdditive()
}

// OverlapsWith reports whether two changes touch the same symbolic location.
// Location identity, not line-range intersection, is the unit of conflict.
func (s SemanticChange) OverlapsWith(other SemanticChange) bool {
	return s.Location == other.Location
}

// linesOverlap reports whether the line ranges of two changes intersect.
// Used only for severity escalation, never for conflict grouping.
func linesOverlap(a, b SemanticChange) bool {
	return a.LineStart <= b.LineEnd && b.LineStart <= a.LineEnd
}

// FileAnalysis is the set of semantic changes extracted for one file.
type FileAnalysis struct {
	FilePath string           `json:"filePath"`
	Changes  []SemanticChange `json:"changes"`
}

// IsAdditiveOnly reports whether every extracted change is additive.
func (f FileAnalysis) IsAdditiveOnly() bool {
	for _, c := range f.Changes {
		if !c.IsAdditive() {
			return false
		}
	}
	return true
}

// ConflictSeverity orders conflicts from benign to critical.
type ConflictSeverity int

const (
	SeverityNone ConflictSeverity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity level.
func (s ConflictSeverity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MergeStrategy names a procedure for resolving a conflict region.
type MergeStrategy string

const (
	StrategyCombineImports    MergeStrategy = "combine_imports"
	StrategyHooksFirst        MergeStrategy = "hooks_first"
	StrategyHooksThenWrap     MergeStrategy = "hooks_then_wrap"
	StrategyAppendFunctions   MergeStrategy = "append_functions"
	StrategyAppendMethods     MergeStrategy = "append_methods"
	StrategyCombineProps      MergeStrategy = "combine_props"
	StrategyOrderByDependency MergeStrategy = "order_by_dependency"
	StrategyOrderByTime       MergeStrategy = "order_by_time"
	StrategyAppendStatements  MergeStrategy = "append_statements"
	StrategyAIRequired        MergeStrategy = "ai_required"
	StrategyHumanRequired     MergeStrategy = "human_required"
)

// IsDeterministic reports whether the strategy can be executed by the
// AutoMerger without arbitration.
func (m MergeStrategy) IsDeterministic() bool {
	switch m {
	case StrategyCombineImports, StrategyHooksFirst, StrategyHooksThenWrap,
		StrategyAppendFunctions, StrategyAppendMethods, StrategyCombineProps,
		StrategyOrderByDependency, StrategyOrderByTime, StrategyAppendStatements:
		return true
	default:
		return false
	}
}

// ConflictRegion is a location where two or more tasks changed the same
// symbolic spot. CanAutoMerge implies Strategy is deterministic.
type ConflictRegion struct {
	FilePath     string           `json:"filePath"`
	Location     string           `json:"location"`
	Tasks        []string         `json:"tasksInvolved"`
	ChangeTypes  []ChangeType     `json:"changeTypes"`
	Severity     ConflictSeverity `json:"severity"`
	CanAutoMerge bool             `json:"canAutoMerge"`
	Strategy     MergeStrategy    `json:"mergeStrategy,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

// TaskSnapshot records one task's declared intent and resulting semantic
// changes to one file. A snapshot is opened when the task first touches the
// file and completed when the task's modification is recorded.
type TaskSnapshot struct {
	TaskID            string
	TaskIntent        string
	StartedAt         time.Time
	CompletedAt       *time.Time
	ContentHashBefore string
	ContentHashAfter  string
	Changes           []SemanticChange
}

// Completed reports whether the task finished modifying the file.
func (s TaskSnapshot) Completed() bool {
	return s.CompletedAt != nil
}

// SnapshotRecord is the serializable form of a TaskSnapshot. Conversions are
// explicit so the nested change list round-trips exactly.
type SnapshotRecord struct {
	TaskID            string           `json:"taskId"`
	TaskIntent        string           `json:"taskIntent"`
	StartedAt         string           `json:"startedAt"`
	CompletedAt       string           `json:"completedAt,omitempty"`
	ContentHashBefore string           `json:"contentHashBefore"`
	ContentHashAfter  string           `json:"contentHashAfter,omitempty"`
	Changes           []SemanticChange `json:"semanticChanges"`
}

// Record converts the snapshot to its serializable form.
func (s TaskSnapshot) Record() SnapshotRecord {
	rec := SnapshotRecord{
		TaskID:            s.TaskID,
		TaskIntent:        s.TaskIntent,
		StartedAt:         s.StartedAt.UTC().Format(time.RFC3339Nano),
		ContentHashBefore: s.ContentHashBefore,
		ContentHashAfter:  s.ContentHashAfter,
		Changes:           s.Changes,
	}
	if s.CompletedAt != nil {
		rec.CompletedAt = s.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

// SnapshotFromRecord converts a serialized record back into a TaskSnapshot.
// Unparsable timestamps degrade to the zero time rather than failing.
func SnapshotFromRecord(rec SnapshotRecord) TaskSnapshot {
	snap := TaskSnapshot{
		TaskID:            rec.TaskID,
		TaskIntent:        rec.TaskIntent,
		ContentHashBefore: rec.ContentHashBefore,
		ContentHashAfter:  rec.ContentHashAfter,
		Changes:           rec.Changes,
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.StartedAt); err == nil {
		snap.StartedAt = t
	}
	if rec.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, rec.CompletedAt); err == nil {
			snap.CompletedAt = &t
		}
	}
	return snap
}

// FileEvolution is the tracked history of one file: its immutable baseline
// plus the ordered snapshots of every task that touched it. It grows
// monotonically until CleanupTask removes a task's entries.
type FileEvolution struct {
	FilePath        string
	BaselineCommit  string
	BaselineContent string
	Snapshots       []TaskSnapshot
}

// EvolutionRecord is the serializable form of a FileEvolution.
type EvolutionRecord struct {
	FilePath        string           `json:"filePath"`
	BaselineCommit  string           `json:"baselineCommit"`
	BaselineContent string           `json:"baselineContent"`
	Snapshots       []SnapshotRecord `json:"taskSnapshots"`
}

// Record converts the evolution to its serializable form.
func (e FileEvolution) Record() EvolutionRecord {
	rec := EvolutionRecord{
		FilePath:        e.FilePath,
		BaselineCommit:  e.BaselineCommit,
		BaselineContent: e.BaselineContent,
	}
	for _, s := range e.Snapshots {
		rec.Snapshots = append(rec.Snapshots, s.Record())
	}
	return rec
}

// EvolutionFromRecord converts a serialized record back into a FileEvolution.
func EvolutionFromRecord(rec EvolutionRecord) FileEvolution {
	ev := FileEvolution{
		FilePath:        rec.FilePath,
		BaselineCommit:  rec.BaselineCommit,
		BaselineContent: rec.BaselineContent,
	}
	for _, s := range rec.Snapshots {
		ev.Snapshots = append(ev.Snapshots, SnapshotFromRecord(s))
	}
	return ev
}

// MergeDecision records how a file's merge was resolved.
type MergeDecision string

const (
	DecisionAutoMerged       MergeDecision = "auto_merged"
	DecisionAIMerged         MergeDecision = "ai_merged"
	DecisionNeedsHumanReview MergeDecision = "needs_human_review"
	DecisionFailed           MergeDecision = "failed"
)

// MergeResult is the outcome of merging one conflict region or one file.
type MergeResult struct {
	Success       bool
	MergedContent string
	Decision      MergeDecision
	Explanation   string
	AICalls       int
}

// ContentHash returns a deterministic, truncated identity hash for file
// content: SHA-256, first 16 hex characters.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// pathSanitizer replaces the characters that make a relative path unusable
// as a flat storage key.
var pathSanitizer = strings.NewReplacer("/", "_", "\\", "_", ".", "_")

// SanitizePath converts a file path into a storage-safe key. The mapping is
// deterministic and collision-free in practice.
func SanitizePath(path string) string {
	return pathSanitizer.Replace(path)
}
