package model

import "time"

// ActionQuery is the only step action the executor runs.
const ActionQuery = "query"

// Operator names a condition comparison.
type Operator string

// Condition operators.
const (
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpEQ       Operator = "eq"
	OpIs       Operator = "is"
	OpIsNot    Operator = "is_not"
	OpContains Operator = "contains"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpGT, OpLT, OpEQ, OpIs, OpIsNot, OpContains:
		return true
	default:
		return false
	}
}

// ValueType is the coercion target of an extract rule.
type ValueType string

// Extract rule types. The empty type behaves like TypeString.
const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

// Valid reports whether t is empty or a known type.
func (t ValueType) Valid() bool {
	switch t {
	case "", TypeString, TypeNumber, TypeBoolean:
		return true
	default:
		return false
	}
}

// Pipeline is a named, ordered list of steps. A loaded Pipeline is never
// mutated and may be shared by concurrent executions.
type Pipeline struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is one unit of pipeline work.
type Step struct {
	Action  string        `json:"action" yaml:"action"`
	If      []Condition   `json:"if,omitempty" yaml:"if,omitempty"`
	JSON    bool          `json:"json,omitempty" yaml:"json,omitempty"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Lang    string        `json:"lang,omitempty" yaml:"lang,omitempty"`
	Message *Message      `json:"message,omitempty" yaml:"message,omitempty"`
	Extract []ExtractRule `json:"extract,omitempty" yaml:"extract,omitempty"`
}

// Message holds the prompt templates of a query step. ChatHistory is
// accepted for compatibility and not sent to the backend.
type Message struct {
	ChatHistory []map[string]string `json:"chat_history,omitempty" yaml:"chat_history,omitempty"`
	System      string              `json:"system" yaml:"system"`
	User        string              `json:"user" yaml:"user"`
}

// Condition compares the context value at path A with literal B. And is
// consulted only when the comparison holds, Or only when it does not.
type Condition struct {
	A   string      `json:"a" yaml:"a"`
	Op  Operator    `json:"op" yaml:"op"`
	B   Value       `json:"b" yaml:"b"`
	And []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []Condition `json:"or,omitempty" yaml:"or,omitempty"`
}

// ExtractRule writes one value derived from a step response into the context.
type ExtractRule struct {
	Name     string    `json:"name" yaml:"name"`
	JQ       string    `json:"jq,omitempty" yaml:"jq,omitempty"`
	Fulltext bool      `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`
	Type     ValueType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Query is a resolved request for the capability dispatcher.
type Query struct {
	Model  string
	Lang   string
	JSON   bool
	System string
	User   string
}

// PipelineDefinition is the stored source of a pipeline.
type PipelineDefinition struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
