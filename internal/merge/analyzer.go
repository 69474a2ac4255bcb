package merge

import (
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// outline is the coarse structural view of one file version: imports,
// functions and methods, and (for the TypeScript family) interfaces. Two
// outlines are compared to produce semantic changes.
type outline struct {
	imports    []importDecl
	functions  []functionDecl
	interfaces []interfaceDecl
}

type importDecl struct {
	Target string // module/package name
	Line   int
	Text   string // the raw import line(s)
}

type functionDecl struct {
	Name      string
	Class     string // empty for free functions
	StartLine int
	EndLine   int
	Body      string // full declaration source
	Hooks     []hookCall
	JSXRoots  []string // capitalized JSX element names in document order
}

// key identifies a function across file versions.
func (f functionDecl) key() string {
	if f.Class == "" {
		return f.Name
	}
	return f.Class + "." + f.Name
}

type hookCall struct {
	Name string
	Line int
	Text string // the full statement containing the call
}

type interfaceDecl struct {
	Name      string
	StartLine int
	EndLine   int
	Body      string
	Props     []propDecl
}

type propDecl struct {
	Name string
	Line int
	Text string
}

// outlineExtractor builds an outline from a parsed tree.
type outlineExtractor interface {
	Extract(root *tree_sitter.Node, source []byte) *outline
}

// languageSpec binds a grammar, an extractor, and a markdown fence label.
type languageSpec struct {
	language  *tree_sitter.Language
	extractor outlineExtractor
	fence     string
}

// SemanticAnalyzer parses before/after file versions into classified
// semantic changes. A new tree-sitter parser is created per parse, so the
// analyzer is safe for concurrent use. Malformed source degrades to a
// best-effort or textual analysis; AnalyzeDiff never fails.
type SemanticAnalyzer struct {
	specs map[string]*languageSpec // keyed by file extension
}

// NewSemanticAnalyzer creates an analyzer with the Python, TypeScript/JS,
// Go, and Rust grammars registered.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	python := &languageSpec{
		language:  tree_sitter.NewLanguage(tree_sitter_python.Language()),
		extractor: &pyOutline{},
		fence:     "python",
	}
	ts := &languageSpec{
		language:  tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		extractor: &tsOutline{},
		fence:     "typescript",
	}
	tsx := &languageSpec{
		language:  tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		extractor: &tsOutline{},
		fence:     "typescript",
	}
	golang := &languageSpec{
		language:  tree_sitter.NewLanguage(tree_sitter_go.Language()),
		extractor: &goOutline{},
		fence:     "go",
	}
	rust := &languageSpec{
		language:  tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		extractor: &rsOutline{},
		fence:     "rust",
	}

	return &SemanticAnalyzer{
		specs: map[string]*languageSpec{
			".py":  python,
			".ts":  ts,
			".js":  ts,
			".mjs": ts,
			".tsx": tsx,
			".jsx": tsx,
			".go":  golang,
			".rs":  rust,
		},
	}
}

// IsSupported reports whether the file's extension has a registered grammar.
func (a *SemanticAnalyzer) IsSupported(path string) bool {
	_, ok := a.specs[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns the registered extensions in sorted order.
func (a *SemanticAnalyzer) SupportedExtensions() []string {
	exts := make([]string, 0, len(a.specs))
	for ext := range a.specs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FenceLabel returns the markdown fence label for the file's language,
// falling back to "text" for unsupported extensions.
func (a *SemanticAnalyzer) FenceLabel(path string) string {
	if spec, ok := a.specs[strings.ToLower(filepath.Ext(path))]; ok {
		return spec.fence
	}
	return "text"
}

// AnalyzeDiff extracts the semantic changes between two versions of a file.
// Unsupported extensions and unparsable input degrade to a coarse textual
// analysis; the result is always usable, never an error.
func (a *SemanticAnalyzer) AnalyzeDiff(path, before, after string) FileAnalysis {
	spec, ok := a.specs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return textualAnalysis(path, before, after)
	}

	outBefore := a.parse(spec, before)
	outAfter := a.parse(spec, after)
	if outAfter == nil {
		return textualAnalysis(path, before, after)
	}
	if outBefore == nil {
		outBefore = &outline{}
	}

	return FileAnalysis{
		FilePath: path,
		Changes:  diffOutlines(outBefore, outAfter),
	}
}

// AnalyzeFile baselines a file by treating its entire content as additions.
func (a *SemanticAnalyzer) AnalyzeFile(path, content string) FileAnalysis {
	return a.AnalyzeDiff(path, "", content)
}

// outlineOf parses one file version, or returns nil for unsupported
// extensions. Used by the resolver to locate symbol regions in current
// content.
func (a *SemanticAnalyzer) outlineOf(path, content string) *outline {
	spec, ok := a.specs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}
	return a.parse(spec, content)
}

// parse runs tree-sitter over source and extracts an outline. Returns nil
// when parsing produced nothing usable.
func (a *SemanticAnalyzer) parse(spec *languageSpec, source string) *outline {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(spec.language); err != nil {
		return nil
	}

	src := []byte(source)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	return spec.extractor.Extract(tree.RootNode(), src)
}

// diffOutlines compares two outlines and classifies what the after version
// added or modified relative to the before version.
func diffOutlines(before, after *outline) []SemanticChange {
	var changes []SemanticChange

	changes = append(changes, diffImports(before, after)...)
	changes = append(changes, diffFunctions(before, after)...)
	changes = append(changes, diffInterfaces(before, after)...)

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].LineStart != changes[j].LineStart {
			return changes[i].LineStart < changes[j].LineStart
		}
		return changes[i].Target < changes[j].Target
	})
	return changes
}

func diffImports(before, after *outline) []SemanticChange {
	seen := make(map[string]bool, len(before.imports))
	for _, imp := range before.imports {
		seen[imp.Target] = true
	}

	var changes []SemanticChange
	for _, imp := range after.imports {
		if seen[imp.Target] {
			continue
		}
		changes = append(changes, SemanticChange{
			Type:         ChangeAddImport,
			Target:       imp.Target,
			Location:     LocationFileTop,
			LineStart:    imp.Line,
			LineEnd:      imp.Line,
			ContentAfter: imp.Text,
		})
	}
	return changes
}

func diffFunctions(before, after *outline) []SemanticChange {
	prior := make(map[string]functionDecl, len(before.functions))
	for _, fn := range before.functions {
		prior[fn.key()] = fn
	}

	var changes []SemanticChange
	for _, fn := range after.functions {
		old, existed := prior[fn.key()]
		if !existed {
			changes = append(changes, addedFunctionChange(fn))
			continue
		}
		changes = append(changes, modifiedFunctionChanges(old, fn)...)
	}
	return changes
}

func addedFunctionChange(fn functionDecl) SemanticChange {
	if fn.Class == "" {
		return SemanticChange{
			Type:         ChangeAddFunction,
			Target:       fn.Name,
			Location:     "function:" + fn.Name,
			LineStart:    fn.StartLine,
			LineEnd:      fn.EndLine,
			ContentAfter: fn.Body,
		}
	}
	return SemanticChange{
		Type:         ChangeAddMethod,
		Target:       fn.Class + "." + fn.Name,
		Location:     "class:" + fn.Class,
		LineStart:    fn.StartLine,
		LineEnd:      fn.EndLine,
		ContentAfter: fn.Body,
	}
}

// modifiedFunctionChanges classifies edits inside a function present in both
// versions. Recognized additive edits (new hook calls, a new wrapper
// component) are reported individually; anything beyond them is a
// modify_function change.
func modifiedFunctionChanges(old, fn functionDecl) []SemanticChange {
	if normalizeBlock(old.Body) == normalizeBlock(fn.Body) {
		return nil
	}

	location := "function:" + fn.Name
	if fn.Class != "" {
		location = "method:" + fn.Class + "." + fn.Name
	}

	var changes []SemanticChange
	var addedStatements []string

	known := make(map[string]bool, len(old.Hooks))
	for _, h := range old.Hooks {
		known[h.Name] = true
	}
	for _, h := range fn.Hooks {
		if known[h.Name] {
			continue
		}
		changes = append(changes, SemanticChange{
			Type:         ChangeAddHookCall,
			Target:       h.Name,
			Location:     location,
			LineStart:    h.Line,
			LineEnd:      h.Line,
			ContentAfter: h.Text,
		})
		addedStatements = append(addedStatements, h.Text)
	}

	if wrapper := addedWrapper(old, fn); wrapper != "" {
		changes = append(changes, SemanticChange{
			Type:          ChangeWrapComponent,
			Target:        wrapper,
			Location:      location,
			LineStart:     fn.StartLine,
			LineEnd:       fn.EndLine,
			ContentBefore: old.Body,
			ContentAfter:  fn.Body,
		})
		addedStatements = append(addedStatements,
			"<"+wrapper+">", "</"+wrapper+">", "<"+wrapper, "/>")
	}

	if len(changes) == 0 || !additiveOnlyEdit(old.Body, fn.Body, addedStatements) {
		changes = append(changes, SemanticChange{
			Type:          ChangeModifyFunction,
			Target:        fn.key(),
			Location:      location,
			LineStart:     fn.StartLine,
			LineEnd:       fn.EndLine,
			ContentBefore: old.Body,
			ContentAfter:  fn.Body,
		})
	}
	return changes
}

// addedWrapper reports the name of a new root JSX component that wraps the
// previous root, or "" when no wrap happened.
func addedWrapper(old, fn functionDecl) string {
	if len(old.JSXRoots) == 0 || len(fn.JSXRoots) == 0 {
		return ""
	}
	oldRoot := old.JSXRoots[0]
	newRoot := fn.JSXRoots[0]
	if newRoot == oldRoot {
		return ""
	}
	for _, name := range fn.JSXRoots[1:] {
		if name == oldRoot {
			return newRoot
		}
	}
	return ""
}

// additiveOnlyEdit reports whether removing the recognized added statements
// from the after body yields the before body again.
func additiveOnlyEdit(beforeBody, afterBody string, added []string) bool {
	var kept []string
	for _, line := range strings.Split(afterBody, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		matched := false
		for _, a := range added {
			for _, al := range strings.Split(a, "\n") {
				if trimmed == strings.TrimSpace(al) ||
					(al != "" && strings.HasPrefix(trimmed, strings.TrimSpace(al))) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			kept = append(kept, trimmed)
		}
	}

	var original []string
	for _, line := range strings.Split(beforeBody, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			original = append(original, trimmed)
		}
	}
	return strings.Join(kept, "\n") == strings.Join(original, "\n")
}

func diffInterfaces(before, after *outline) []SemanticChange {
	prior := make(map[string]interfaceDecl, len(before.interfaces))
	for _, iface := range before.interfaces {
		prior[iface.Name] = iface
	}

	var changes []SemanticChange
	for _, iface := range after.interfaces {
		old, existed := prior[iface.Name]
		if !existed {
			changes = append(changes, SemanticChange{
				Type:         ChangeAddStatement,
				Target:       iface.Name,
				Location:     LocationFile,
				LineStart:    iface.StartLine,
				LineEnd:      iface.EndLine,
				ContentAfter: iface.Body,
			})
			continue
		}

		known := make(map[string]bool, len(old.Props))
		for _, p := range old.Props {
			known[p.Name] = true
		}
		for _, p := range iface.Props {
			if known[p.Name] {
				continue
			}
			changes = append(changes, SemanticChange{
				Type:         ChangeAddProp,
				Target:       p.Name,
				Location:     "interface:" + iface.Name,
				LineStart:    p.Line,
				LineEnd:      p.Line,
				ContentAfter: p.Text,
			})
		}
	}
	return changes
}

// normalizeBlock strips blank lines and per-line indentation so formatting
// noise does not register as a modification.
func normalizeBlock(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
