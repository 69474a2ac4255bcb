package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	a := NewSemanticAnalyzer()

	assert.True(t, a.IsSupported("src/app.py"))
	assert.True(t, a.IsSupported("src/App.tsx"))
	assert.True(t, a.IsSupported("src/util.ts"))
	assert.True(t, a.IsSupported("main.go"))
	assert.True(t, a.IsSupported("lib.rs"))
	assert.False(t, a.IsSupported("script.rb"))
	assert.False(t, a.IsSupported("notes.txt"))
}

func TestAnalyzeDiffPythonAdditions(t *testing.T) {
	a := NewSemanticAnalyzer()

	before := `def hello():
    return "hello"
`
	after := `import logging

def hello():
    return "hello"

def goodbye():
    return "goodbye"
`
	analysis := a.AnalyzeDiff("src/app.py", before, after)
	require.Len(t, analysis.Changes, 2)

	byType := map[ChangeType]SemanticChange{}
	for _, c := range analysis.Changes {
		byType[c.Type] = c
	}

	imp, ok := byType[ChangeAddImport]
	require.True(t, ok)
	assert.Equal(t, "logging", imp.Target)
	assert.Equal(t, LocationFileTop, imp.Location)

	fn, ok := byType[ChangeAddFunction]
	require.True(t, ok)
	assert.Equal(t, "goodbye", fn.Target)
	assert.Equal(t, "function:goodbye", fn.Location)
	assert.Contains(t, fn.ContentAfter, "def goodbye")
	assert.True(t, analysis.IsAdditiveOnly())
}

func TestAnalyzeDiffPythonMethod(t *testing.T) {
	a := NewSemanticAnalyzer()

	before := `class Greeter:
    def hello(self):
        return "hello"
`
	after := `class Greeter:
    def hello(self):
        return "hello"

    def goodbye(self):
        return "goodbye"
`
	analysis := a.AnalyzeDiff("src/greeter.py", before, after)
	require.Len(t, analysis.Changes, 1)

	c := analysis.Changes[0]
	assert.Equal(t, ChangeAddMethod, c.Type)
	assert.Equal(t, "Greeter.goodbye", c.Target)
	assert.Equal(t, "class:Greeter", c.Location)
}

func TestAnalyzeDiffPythonModifiedFunction(t *testing.T) {
	a := NewSemanticAnalyzer()

	before := `def compute():
    return 1
`
	after := `def compute():
    return 2
`
	analysis := a.AnalyzeDiff("src/calc.py", before, after)
	require.Len(t, analysis.Changes, 1)

	c := analysis.Changes[0]
	assert.Equal(t, ChangeModifyFunction, c.Type)
	assert.Equal(t, "compute", c.Target)
	assert.Equal(t, "function:compute", c.Location)
	assert.Contains(t, c.ContentBefore, "return 1")
	assert.Contains(t, c.ContentAfter, "return 2")
	assert.False(t, analysis.IsAdditiveOnly())
}

func TestAnalyzeDiffUnchangedFile(t *testing.T) {
	a := NewSemanticAnalyzer()

	src := `def stable():
    return 0
`
	analysis := a.AnalyzeDiff("src/stable.py", src, src)
	assert.Empty(t, analysis.Changes)
}

func TestAnalyzeDiffTSXHookAndProps(t *testing.T) {
	a := NewSemanticAnalyzer()

	before := `interface Props {
  name: string;
}

function App() {
  return <div>hi</div>;
}
`
	after := `interface Props {
  name: string;
  age?: number;
}

function App() {
  const theme = useTheme();
  return <div>hi</div>;
}
`
	analysis := a.AnalyzeDiff("src/App.tsx", before, after)

	byType := map[ChangeType]SemanticChange{}
	for _, c := range analysis.Changes {
		byType[c.Type] = c
	}

	hook, ok := byType[ChangeAddHookCall]
	require.True(t, ok, "expected an add_hook_call change, got %v", analysis.Changes)
	assert.Equal(t, "useTheme", hook.Target)
	assert.Equal(t, "function:App", hook.Location)

	prop, ok := byType[ChangeAddProp]
	require.True(t, ok, "expected an add_prop change, got %v", analysis.Changes)
	assert.Equal(t, "age", prop.Target)
	assert.Equal(t, "interface:Props", prop.Location)
}

func TestAnalyzeDiffTextualFallback(t *testing.T) {
	a := NewSemanticAnalyzer()

	before := "line one\nline two\n"
	after := "line one\ninserted\nline two\n"
	analysis := a.AnalyzeDiff("notes.txt", before, after)

	require.Len(t, analysis.Changes, 1)
	c := analysis.Changes[0]
	assert.Equal(t, ChangeAddStatement, c.Type)
	assert.Contains(t, c.ContentAfter, "inserted")
}

func TestFenceLabel(t *testing.T) {
	a := NewSemanticAnalyzer()

	assert.Equal(t, "python", a.FenceLabel("x.py"))
	assert.Equal(t, "typescript", a.FenceLabel("x.tsx"))
	assert.Equal(t, "go", a.FenceLabel("x.go"))
	assert.Equal(t, "text", a.FenceLabel("x.txt"))
}
