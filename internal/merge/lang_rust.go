package merge

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// rsOutline extracts the structural outline of a Rust source file. Functions
// inside impl blocks are treated as methods of the impl'd type.
type rsOutline struct{}

func (e *rsOutline) Extract(root *tree_sitter.Node, source []byte) *outline {
	out := &outline{}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, out)
	return out
}

func (e *rsOutline) walk(cursor *tree_sitter.TreeCursor, source []byte, out *outline) {
	node := cursor.Node()

	switch node.Kind() {
	case "use_declaration":
		if imp := e.useDecl(node, source); imp != nil {
			out.imports = append(out.imports, *imp)
		}

	case "function_item":
		if fn := e.function(node, source); fn != nil {
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

func (e *rsOutline) useDecl(node *tree_sitter.Node, source []byte) *importDecl {
	argNode := node.ChildByFieldName("argument")
	if argNode == nil {
		return nil
	}
	target := argNode.Utf8Text(source)
	if target == "" {
		return nil
	}
	return &importDecl{
		Target: target,
		Line:   nodeLine(node),
		Text:   node.Utf8Text(source),
	}
}

func (e *rsOutline) function(node *tree_sitter.Node, source []byte) *functionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &functionDecl{
		Name:      nameNode.Utf8Text(source),
		Class:     e.implType(node, source),
		StartLine: nodeLine(node),
		EndLine:   nodeEndLine(node),
		Body:      node.Utf8Text(source),
	}
}

// implType returns the type name of the enclosing impl block, or "" for a
// free function.
func (e *rsOutline) implType(node *tree_sitter.Node, source []byte) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Kind() != "impl_item" {
			continue
		}
		typeNode := parent.ChildByFieldName("type")
		if typeNode == nil {
			return ""
		}
		typ := typeNode.Utf8Text(source)
		if i := strings.IndexByte(typ, '<'); i > 0 {
			typ = typ[:i]
		}
		return typ
	}
	return ""
}
