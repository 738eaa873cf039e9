package filtering

import "github.com/google/cel-go/cel"

// Rule is a compiled policy expression. A message is routed only when every
// rule evaluates to true.
type Rule struct {
	Name       string
	Expression string
	program    cel.Program
}
