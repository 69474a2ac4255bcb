package merge

import (
	"fmt"
	"sort"
	"strings"
)

// TaskChange pairs a semantic change with the task that produced it.
type TaskChange struct {
	TaskID string
	Change SemanticChange
}

// ConflictDetector partitions the changes of multiple tasks into conflict
// regions and proposes a merge strategy per region.
type ConflictDetector struct{}

// NewConflictDetector creates a ConflictDetector.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// mergeLocation maps a change to the symbolic location used for conflict
// grouping. Imports always collide at the import block and new top-level
// functions at the end of the file; everything else uses the change's own
// location.
func mergeLocation(c SemanticChange) string {
	switch c.Type {
	case ChangeAddImport:
		return LocationFileTop
	case ChangeAddFunction:
		return LocationFile
	default:
		return c.Location
	}
}

// GroupChanges groups every task's changes by merge location. Iteration
// order of the input map does not affect the result: members are ordered by
// task ID, then by line.
func (d *ConflictDetector) GroupChanges(analyses map[string]FileAnalysis) map[string][]TaskChange {
	taskIDs := make([]string, 0, len(analyses))
	for id := range analyses {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	groups := make(map[string][]TaskChange)
	for _, id := range taskIDs {
		for _, c := range analyses[id].Changes {
			loc := mergeLocation(c)
			groups[loc] = append(groups[loc], TaskChange{TaskID: id, Change: c})
		}
	}
	return groups
}

// DetectConflicts returns one ConflictRegion per location touched by two or
// more tasks, in deterministic location order. Locations touched by a single
// task never conflict.
func (d *ConflictDetector) DetectConflicts(analyses map[string]FileAnalysis) []ConflictRegion {
	filePath := ""
	for _, a := range analyses {
		filePath = a.FilePath
		break
	}

	groups := d.GroupChanges(analyses)
	locations := make([]string, 0, len(groups))
	for loc := range groups {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	var regions []ConflictRegion
	for _, loc := range locations {
		members := groups[loc]
		if countTasks(members) < 2 {
			continue
		}
		regions = append(regions, d.classify(filePath, loc, members))
	}
	return regions
}

// classify applies the compatibility rules, in precedence order, to one
// multi-task group.
func (d *ConflictDetector) classify(filePath, location string, members []TaskChange) ConflictRegion {
	region := ConflictRegion{
		FilePath: filePath,
		Location: location,
		Tasks:    taskIDs(members),
	}
	for _, m := range members {
		region.ChangeTypes = append(region.ChangeTypes, m.Change.Type)
	}

	switch {
	case allOfType(members, ChangeAddImport):
		region.Severity = SeverityNone
		if hasDuplicateTargets(members) {
			region.Severity = SeverityLow
		}
		region.CanAutoMerge = true
		region.Strategy = StrategyCombineImports
		region.Reason = "independent import additions combine by union"

	case hookAdditions(members):
		region.Severity = SeverityLow
		region.CanAutoMerge = true
		region.Strategy = StrategyHooksFirst
		region.Reason = "hook calls insert before other body statements"
		if anyOfType(members, ChangeWrapComponent) {
			region.Strategy = StrategyHooksThenWrap
			region.Reason = "hook calls insert first, then the wrapper applies around the merged body"
		}

	case allOfType(members, ChangeAddFunction):
		if hasDuplicateTargets(members) {
			region.Severity = SeverityHigh
			region.Strategy = StrategyAIRequired
			region.Reason = "multiple tasks added a function with the same name"
		} else {
			region.Severity = SeverityNone
			region.CanAutoMerge = true
			region.Strategy = StrategyAppendFunctions
			region.Reason = "disjoint function additions append in task start order"
		}

	case allOfType(members, ChangeAddMethod):
		if hasDuplicateTargets(members) {
			region.Severity = SeverityHigh
			region.Strategy = StrategyAIRequired
			region.Reason = "multiple tasks added a method with the same name"
		} else {
			region.Severity = SeverityNone
			region.CanAutoMerge = true
			region.Strategy = StrategyAppendMethods
			region.Reason = "disjoint method additions append in task start order"
		}

	case allOfType(members, ChangeAddProp):
		region.Severity = SeverityLow
		region.CanAutoMerge = true
		region.Strategy = StrategyCombineProps
		region.Reason = "prop additions combine by union"

	case allOfType(members, ChangeAddStatement):
		region.Severity = SeverityLow
		region.CanAutoMerge = true
		region.Strategy = StrategyAppendStatements
		region.Reason = "statement additions append in task start order"

	case countNonAdditive(members) >= 2:
		region.Severity = SeverityHigh
		if substantialOverlap(members) {
			region.Severity = SeverityCritical
		}
		region.Strategy = StrategyAIRequired
		region.Reason = "multiple tasks modified the same location"

	case countNonAdditive(members) == 1:
		region.Severity = SeverityMedium
		region.Strategy = StrategyAIRequired
		region.Reason = "a modification overlaps additive changes at the same location"

	default:
		// All-additive mix that no specific rule claimed.
		region.Severity = SeverityLow
		region.CanAutoMerge = true
		region.Strategy = StrategyOrderByTime
		region.Reason = "additive changes apply in task start order"
	}

	return region
}

// ExplainConflict renders a deterministic human-readable description for
// logs and escalation surfaces.
func (d *ConflictDetector) ExplainConflict(region ConflictRegion) string {
	types := make([]string, len(region.ChangeTypes))
	for i, t := range region.ChangeTypes {
		types[i] = string(t)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Conflict in %s at %s (severity %s): tasks %s made changes [%s].",
		region.FilePath, region.Location, region.Severity,
		strings.Join(region.Tasks, ", "), strings.Join(types, ", "))
	if region.Reason != "" {
		fmt.Fprintf(&b, " %s.", upperFirst(region.Reason))
	}
	if region.CanAutoMerge {
		fmt.Fprintf(&b, " Auto-mergeable via %s.", region.Strategy)
	} else {
		fmt.Fprintf(&b, " Requires %s.", region.Strategy)
	}
	return b.String()
}

func countTasks(members []TaskChange) int {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.TaskID] = true
	}
	return len(seen)
}

func taskIDs(members []TaskChange) []string {
	seen := make(map[string]bool, len(members))
	var ids []string
	for _, m := range members {
		if !seen[m.TaskID] {
			seen[m.TaskID] = true
			ids = append(ids, m.TaskID)
		}
	}
	sort.Strings(ids)
	return ids
}

func allOfType(members []TaskChange, t ChangeType) bool {
	for _, m := range members {
		if m.Change.Type != t {
			return false
		}
	}
	return true
}

func anyOfType(members []TaskChange, t ChangeType) bool {
	for _, m := range members {
		if m.Change.Type == t {
			return true
		}
	}
	return false
}

// hookAdditions reports whether the group is hook calls, optionally with a
// wrapper insertion, and nothing else.
func hookAdditions(members []TaskChange) bool {
	hooks := 0
	for _, m := range members {
		switch m.Change.Type {
		case ChangeAddHookCall:
			hooks++
		case ChangeWrapComponent:
		default:
			return false
		}
	}
	return hooks > 0
}

func hasDuplicateTargets(members []TaskChange) bool {
	seen := make(map[string]string, len(members))
	for _, m := range members {
		if owner, ok := seen[m.Change.Target]; ok && owner != m.TaskID {
			return true
		}
		seen[m.Change.Target] = m.TaskID
	}
	return false
}

func countNonAdditive(members []TaskChange) int {
	n := 0
	for _, m := range members {
		if !m.Change.IsAdditive() && m.Change.Type != ChangeWrapComponent {
			n++
		}
	}
	return n
}

// substantialOverlap reports whether two non-additive changes from different
// tasks cover mostly the same lines, escalating severity to critical.
func substantialOverlap(members []TaskChange) bool {
	var mods []SemanticChange
	for _, m := range members {
		if !m.Change.IsAdditive() && m.Change.Type != ChangeWrapComponent {
			mods = append(mods, m.Change)
		}
	}
	for i := 0; i < len(mods); i++ {
		for j := i + 1; j < len(mods); j++ {
			a, b := mods[i], mods[j]
			if !linesOverlap(a, b) {
				continue
			}
			overlap := minInt(a.LineEnd, b.LineEnd) - maxInt(a.LineStart, b.LineStart) + 1
			shortest := minInt(a.LineEnd-a.LineStart+1, b.LineEnd-b.LineStart+1)
			if shortest > 0 && float64(overlap)/float64(shortest) >= 0.5 {
				return true
			}
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
