package merge

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pyOutline extracts the structural outline of a Python source file.
type pyOutline struct{}

func (e *pyOutline) Extract(root *tree_sitter.Node, source []byte) *outline {
	out := &outline{}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, out)
	return out
}

func (e *pyOutline) walk(cursor *tree_sitter.TreeCursor, source []byte, out *outline) {
	node := cursor.Node()

	switch node.Kind() {
	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			kind := child.Kind()
			if kind != "dotted_name" && kind != "aliased_import" {
				continue
			}
			target := child.Utf8Text(source)
			if kind == "aliased_import" {
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					target = nameNode.Utf8Text(source)
				}
			}
			if target == "" {
				continue
			}
			out.imports = append(out.imports, importDecl{
				Target: target,
				Line:   nodeLine(node),
				Text:   node.Utf8Text(source),
			})
		}

	case "import_from_statement":
		if imp := e.fromImport(node, source); imp != nil {
			out.imports = append(out.imports, *imp)
		}

	case "function_definition":
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

func (e *pyOutline) fromImport(node *tree_sitter.Node, source []byte) *importDecl {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "dotted_name" {
				moduleNode = child
				break
			}
		}
	}
	if moduleNode == nil {
		return nil
	}

	module := moduleNode.Utf8Text(source)
	if module == "" {
		return nil
	}
	return &importDecl{
		Target: module,
		Line:   nodeLine(node),
		Text:   node.Utf8Text(source),
	}
}

// function extracts a top-level function or a method directly inside a
// top-level class. Deeper nesting is deliberately ignored.
func (e *pyOutline) function(node *tree_sitter.Node, source []byte) *functionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	class, ok := pyEnclosure(node, source)
	if !ok {
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

// pyEnclosure walks up from a function_definition and returns the enclosing
// top-level class name (or "" for a module-level function). The second
// return is false for functions nested anywhere else.
func pyEnclosure(node *tree_sitter.Node, source []byte) (string, bool) {
	parent := node.Parent()
	for parent != nil && parent.Kind() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil {
		return "", false
	}
	if parent.Kind() == "module" {
		return "", true
	}
	if parent.Kind() != "block" {
		return "", false
	}

	owner := parent.Parent()
	for owner != nil && owner.Kind() == "decorated_definition" {
		owner = owner.Parent()
	}
	if owner == nil || owner.Kind() != "class_definition" {
		return "", false
	}
	if !isTopLevelPy(owner) {
		return "", false
	}
	nameNode := owner.ChildByFieldName("name")
	if nameNode == nil {
		return "", false
	}
	return nameNode.Utf8Text(source), true
}

// isTopLevelPy reports whether a definition sits at module scope, looking
// through a decorated_definition wrapper.
func isTopLevelPy(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if parent.Kind() == "module" {
		return true
	}
	if parent.Kind() == "decorated_definition" {
		grandparent := parent.Parent()
		return grandparent != nil && grandparent.Kind() == "module"
	}
	return false
}

// nodeLine returns the 1-based start line of a node.
func nodeLine(node *tree_sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// nodeEndLine returns the 1-based end line of a node.
func nodeEndLine(node *tree_sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}
