package merge

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// hookNameRe matches React-style hook identifiers.
var hookNameRe = regexp.MustCompile(`^use[A-Z]`)

// tsOutline extracts the structural outline of a TypeScript/JavaScript
// source file, including hook calls and JSX element names per function.
type tsOutline struct{}

func (e *tsOutline) Extract(root *tree_sitter.Node, source []byte) *outline {
	out := &outline{}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, out)
	return out
}

func (e *tsOutline) walk(cursor *tree_sitter.TreeCursor, source []byte, out *outline) {
	node := cursor.Node()

	switch node.Kind() {
	case "import_statement":
		if imp := e.importDecl(node, source); imp != nil {
			out.imports = append(out.imports, *imp)
		}

	case "function_declaration":
		if isTSTopLevel(node) {
			if fn := e.namedFunction(node, source, ""); fn != nil {
				out.functions = append(out.functions, *fn)
			}
		}

	case "lexical_declaration":
		if isTSTopLevel(node) {
			out.functions = append(out.functions, e.arrowFunctions(node, source)...)
		}

	case "class_declaration":
		if isTSTopLevel(node) {
			out.functions = append(out.functions, e.methods(node, source)...)
		}

	case "interface_declaration":
		if isTSTopLevel(node) {
			if iface := e.interfaceDecl(node, source); iface != nil {
				out.interfaces = append(out.interfaces, *iface)
			}
		}
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, out)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, out)
		}
		cursor.GotoParent()
	}
}

func (e *tsOutline) importDecl(node *tree_sitter.Node, source []byte) *importDecl {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "string" {
				sourceNode = child
				break
			}
		}
	}
	if sourceNode == nil {
		return nil
	}

	target := strings.Trim(sourceNode.Utf8Text(source), "\"'`")
	if target == "" {
		return nil
	}
	return &importDecl{
		Target: target,
		Line:   nodeLine(node),
		Text:   node.Utf8Text(source),
	}
}

func (e *tsOutline) namedFunction(node *tree_sitter.Node, source []byte, class string) *functionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	fn := &functionDecl{
		Name:      nameNode.Utf8Text(source),
		Class:     class,
		StartLine: nodeLine(node),
		EndLine:   nodeEndLine(node),
		Body:      node.Utf8Text(source),
	}
	e.collectBody(node, source, fn)
	return fn
}

// arrowFunctions extracts "const Foo = () => { ... }" declarations.
func (e *tsOutline) arrowFunctions(node *tree_sitter.Node, source []byte) []functionDecl {
	var result []functionDecl
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		valueNode := child.ChildByFieldName("value")
		if valueNode == nil || valueNode.Kind() != "arrow_function" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fn := functionDecl{
			Name:      nameNode.Utf8Text(source),
			StartLine: nodeLine(node),
			EndLine:   nodeEndLine(node),
			Body:      node.Utf8Text(source),
		}
		e.collectBody(valueNode, source, &fn)
		result = append(result, fn)
	}
	return result
}

func (e *tsOutline) methods(class *tree_sitter.Node, source []byte) []functionDecl {
	classNameNode := class.ChildByFieldName("name")
	if classNameNode == nil {
		return nil
	}
	className := classNameNode.Utf8Text(source)

	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var result []functionDecl
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "method_definition" {
			continue
		}
		if fn := e.namedFunction(child, source, className); fn != nil {
			result = append(result, *fn)
		}
	}
	return result
}

func (e *tsOutline) interfaceDecl(node *tree_sitter.Node, source []byte) *interfaceDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	iface := &interfaceDecl{
		Name:      nameNode.Utf8Text(source),
		StartLine: nodeLine(node),
		EndLine:   nodeEndLine(node),
		Body:      node.Utf8Text(source),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return iface
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "property_signature" {
			continue
		}
		propName := child.ChildByFieldName("name")
		if propName == nil {
			continue
		}
		iface.Props = append(iface.Props, propDecl{
			Name: propName.Utf8Text(source),
			Line: nodeLine(child),
			Text: child.Utf8Text(source),
		})
	}
	return iface
}

// collectBody walks a function subtree gathering hook calls and JSX element
// names in document order.
func (e *tsOutline) collectBody(node *tree_sitter.Node, source []byte, fn *functionDecl) {
	cursor := node.Walk()
	defer cursor.Close()
	e.walkBody(cursor, source, fn)
}

func (e *tsOutline) walkBody(cursor *tree_sitter.TreeCursor, source []byte, fn *functionDecl) {
	node := cursor.Node()

	switch node.Kind() {
	case "call_expression":
		if hook := e.hookCall(node, source); hook != nil {
			fn.Hooks = append(fn.Hooks, *hook)
		}

	case "jsx_opening_element", "jsx_self_closing_element":
		if name := e.jsxName(node, source); name != "" && isComponentName(name) {
			fn.JSXRoots = append(fn.JSXRoots, name)
		}
	}

	if cursor.GotoFirstChild() {
		e.walkBody(cursor, source, fn)
		for cursor.GotoNextSibling() {
			e.walkBody(cursor, source, fn)
		}
		cursor.GotoParent()
	}
}

func (e *tsOutline) hookCall(node *tree_sitter.Node, source []byte) *hookCall {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil || fnNode.Kind() != "identifier" {
		return nil
	}
	name := fnNode.Utf8Text(source)
	if !hookNameRe.MatchString(name) {
		return nil
	}
	return &hookCall{
		Name: name,
		Line: nodeLine(node),
		Text: strings.TrimSpace(hookStatement(node).Utf8Text(source)),
	}
}

// hookStatement climbs to the full statement containing a hook call so the
// auto-merger can insert it verbatim.
func hookStatement(node *tree_sitter.Node) *tree_sitter.Node {
	current := node
	for parent := current.Parent(); parent != nil; parent = current.Parent() {
		switch parent.Kind() {
		case "lexical_declaration", "variable_declaration", "expression_statement":
			return parent
		case "statement_block", "program", "arrow_function", "function_declaration", "method_definition":
			return current
		}
		current = parent
	}
	return current
}

func (e *tsOutline) jsxName(node *tree_sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return nameNode.Utf8Text(source)
}

// isComponentName reports whether a JSX element name refers to a component
// (uppercase first rune) rather than an intrinsic element.
func isComponentName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// isTSTopLevel reports whether a declaration sits at program scope, looking
// through an export_statement wrapper.
func isTSTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if parent.Kind() == "program" {
		return true
	}
	if parent.Kind() == "export_statement" {
		grandparent := parent.Parent()
		return grandparent != nil && grandparent.Kind() == "program"
	}
	return false
}
