package graph

import "strings"

// Data is the kind-specific payload of a node. The set of implementations is
// closed: VariableData, FunctionData, LoopData, ConditionData, BodyData.
type Data interface {
	Kind() Kind
	sealed()
}

// ValueType is the declared type of a variable, argument or parameter.
type ValueType string

const (
	TypeInt   ValueType = "int"
	TypeFloat ValueType = "float"
	TypeStr   ValueType = "str"
	TypeBool  ValueType = "bool"
	TypeAny   ValueType = "any"
	TypeVar   ValueType = "var"
	TypeFunc  ValueType = "func"
)

// SourceType selects where a variable gets its value from.
type SourceType string

const (
	SourceLiteral SourceType = "literal"
	SourceVar     SourceType = "var"
	SourceCall    SourceType = "call"
)

// Variable is one assignment in a variable block.
type Variable struct {
	Name   string    `json:"name"`
	Type   ValueType `json:"type,omitempty"`
	Value  any       `json:"value,omitempty"`
	Source *Source   `json:"source,omitempty"`
}

// Source references another variable or a function call.
type Source struct {
	Type    SourceType `json:"type,omitempty"`
	VarName string     `json:"varName,omitempty"`
	Fn      string     `json:"fn,omitempty"`
	Args    []Arg      `json:"args,omitempty"`
}

// Arg is a call argument, either a typed literal or a variable reference.
type Arg struct {
	Value   any       `json:"value,omitempty"`
	Type    ValueType `json:"type,omitempty"`
	UseVar  bool      `json:"useVar,omitempty"`
	VarName string    `json:"varName,omitempty"`
}

// Param is a function parameter. A nil or empty Default means no default.
type Param struct {
	Name    string    `json:"name"`
	Type    ValueType `json:"type,omitempty"`
	Default any       `json:"default,omitempty"`
}

// VariableData assigns an ordered list of variables.
type VariableData struct {
	Variables []Variable `json:"variables"`
}

// FunctionData defines a function.
type FunctionData struct {
	Name   string  `json:"name"`
	Params []Param `json:"params,omitempty"`
	Body   string  `json:"body,omitempty"`
}

// LoopData is a bounded loop. Count holds the literal trip count as text and
// CountVar an optional expression that takes precedence over it.
type LoopData struct {
	IndexVar string `json:"indexVar,omitempty"`
	Count    string `json:"count,omitempty"`
	CountVar string `json:"countVar,omitempty"`
	Body     string `json:"body,omitempty"`
}

// ConditionData is a two-way branch.
type ConditionData struct {
	Condition string `json:"condition,omitempty"`
}

// BodyData is an opaque statement block.
type BodyData struct {
	Text string `json:"body"`
}

func (VariableData) Kind() Kind  { return KindVariable }
func (FunctionData) Kind() Kind  { return KindFunction }
func (LoopData) Kind() Kind      { return KindLoop }
func (ConditionData) Kind() Kind { return KindCondition }
func (BodyData) Kind() Kind      { return KindBody }

func (VariableData) sealed()  {}
func (FunctionData) sealed()  {}
func (LoopData) sealed()      {}
func (ConditionData) sealed() {}
func (BodyData) sealed()      {}

const (
	DefaultIndexVar  = "i"
	DefaultCount     = "5"
	DefaultCondition = "True"
	DefaultFuncName  = "fn"
)

// Index returns the loop index variable, defaulting to "i".
func (d LoopData) Index() string {
	if v := strings.TrimSpace(d.IndexVar); v != "" {
		return v
	}
	return DefaultIndexVar
}

// CountExpr returns the trip count expression: CountVar when set, else the
// literal Count, else 5.
func (d LoopData) CountExpr() string {
	if v := strings.TrimSpace(d.CountVar); v != "" {
		return v
	}
	if v := strings.TrimSpace(d.Count); v != "" {
		return v
	}
	return DefaultCount
}

// Expr returns the condition expression, defaulting to "True".
func (d ConditionData) Expr() string {
	if v := strings.TrimSpace(d.Condition); v != "" {
		return v
	}
	return DefaultCondition
}
