package merge

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// goOutline extracts the structural outline of a Go source file. Methods are
// keyed by their receiver type so additions to the same type can be grouped.
type goOutline struct{}

func (e *goOutline) Extract(root *tree_sitter.Node, source []byte) *outline {
	out := &outline{}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, out)
	return out
}

func (e *goOutline) walk(cursor *tree_sitter.TreeCursor, source []byte, out *outline) {
	node := cursor.Node()

	switch node.Kind() {
	case "import_spec":
		if imp := e.importSpec(node, source); imp != nil {
			out.imports = append(out.imports, *imp)
		}

	case "function_declaration":
		if fn := e.function(node, source, ""); fn != nil {
			out.functions = append(out.functions, *fn)
		}

	case "method_declaration":
		if fn := e.function(node, source, e.receiverType(node, source)); fn != nil {
			out.functions = append(out.functions, *fn)
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

func (e *goOutline) importSpec(node *tree_sitter.Node, source []byte) *importDecl {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "interpreted_string_literal" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return nil
	}

	target := strings.Trim(pathNode.Utf8Text(source), "\"")
	if target == "" {
		return nil
	}
	return &importDecl{
		Target: target,
		Line:   nodeLine(node),
		Text:   node.Utf8Text(source),
	}
}

func (e *goOutline) function(node *tree_sitter.Node, source []byte, class string) *functionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &functionDecl{
		Name:      nameNode.Utf8Text(source),
		Class:     class,
		StartLine: nodeLine(node),
		EndLine:   nodeEndLine(node),
		Body:      node.Utf8Text(source),
	}
}

// receiverType returns the bare receiver type name of a method declaration,
// stripping the parameter name, pointer star, and generic arguments.
func (e *goOutline) receiverType(node *tree_sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := strings.Trim(recv.Utf8Text(source), "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimPrefix(typ, "*")
	if i := strings.IndexByte(typ, '['); i > 0 {
		typ = typ[:i]
	}
	return typ
}
