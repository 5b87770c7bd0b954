package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   ValueType
		want  string
	}{
		{"int from string", "42", TypeInt, "42"},
		{"int truncates", 3.9, TypeInt, "3"},
		{"int prefix", "12px", TypeInt, "12"},
		{"int garbage", "abc", TypeInt, "0"},
		{"int nil", nil, TypeInt, "0"},
		{"float", "2.50", TypeFloat, "2.5"},
		{"bool true string", "true", TypeBool, "True"},
		{"bool false", false, TypeBool, "False"},
		{"bool other", "yes", TypeBool, "False"},
		{"str quoted", `say "hi"`, TypeStr, `"say \"hi\""`},
		{"str number", 7.0, TypeStr, `"7"`},
		{"any number string", "10", TypeAny, "10"},
		{"any true", "true", TypeAny, "True"},
		{"any text", "hello", TypeAny, `"hello"`},
		{"any empty", "", TypeAny, `""`},
		{"any nil", nil, "", `""`},
		{"any float", 1.25, "", "1.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLiteral(tt.value, tt.typ))
		})
	}
}

func TestVariableData_Render(t *testing.T) {
	d := VariableData{Variables: []Variable{
		{Name: "n", Type: TypeInt, Value: "3"},
		{Name: "", Type: TypeInt, Value: "9"},
		{Name: "m", Source: &Source{Type: SourceVar, VarName: "n"}},
		{Name: "s", Source: &Source{Type: SourceCall, Fn: "add", Args: []Arg{
			{UseVar: true, VarName: "n"},
			{Value: "2", Type: TypeInt},
			{Value: "x", Type: TypeStr},
		}}},
		{Name: "r", Type: TypeVar, Value: "m"},
	}}
	assert.Equal(t, "n = 3\nm = n\ns = add(n, 2, \"x\")\nr = m", d.Render())

	assert.Equal(t, "# (no variables)", VariableData{}.Render())
	assert.Equal(t, "# (no variables)", VariableData{Variables: []Variable{{Value: 1.0}}}.Render())
}

func TestFunctionData_Render(t *testing.T) {
	d := FunctionData{
		Name: "add",
		Params: []Param{
			{Name: "a"},
			{Name: "b", Type: TypeInt, Default: 1.0},
			{Name: "c", Default: ""},
		},
		Body: "total = a + b\nreturn total\n\n",
	}
	assert.Equal(t, "def add(a, b=1, c):\n    total = a + b\n    return total", d.Render())
	assert.Equal(t, "def fn():\n    pass", FunctionData{}.Render())
}

func TestBlockText(t *testing.T) {
	assert.Equal(t, "pass", BlockText(Node{ID: "b", Data: BodyData{Text: "   \n"}}))
	assert.Equal(t, "x = 1\ny = 2", BlockText(Node{ID: "b", Data: BodyData{Text: "x = 1\ny = 2\n\n"}}))
	assert.Equal(t, "for i in range(5):", BlockText(Node{ID: "l", Data: LoopData{}}))
	assert.Equal(t, "for k in range(n):", BlockText(Node{ID: "l", Data: LoopData{IndexVar: "k", Count: "3", CountVar: " n "}}))
	assert.Equal(t, "if True:", BlockText(Node{ID: "c", Data: ConditionData{}}))
}

func TestIndentAndLine(t *testing.T) {
	assert.Equal(t, "        a\n\n        b", Indent("a\n\nb", 2))
	assert.Equal(t, "a", Indent("a", 0))
	assert.Equal(t, "x = 1\n", Line("x = 1\n\n  "))
	assert.Equal(t, "\n", Line(""))
}
