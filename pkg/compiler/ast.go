// sieve/pkg/compiler/ast.go

package compiler

import (
	"regexp"

	"rgehrsitz/sieve/pkg/types"
)

// Node is a fully type-resolved syntax tree node. Every node's type is
// fixed when the parser produces it and never re-checked afterwards.
// The tree is strictly acyclic: each node is owned exclusively by its
// parent and consumed by Compile.
type Node interface {
	// ResultType is the resolved type of the value this node produces.
	ResultType() types.Type
	// Pos is the byte offset of the node's first token.
	Pos() int
}

// PathItem is one step of a field reference chained through Array or
// Map indexing, e.g. the [0] in a.b[0] or the ["host"] in
// headers["host"].
type PathItem struct {
	Index int    // array index when IsKey is false
	Key   string // map key when IsKey is true
	IsKey bool
}

// FieldExpr references a scheme field, possibly narrowed through a
// bracket path. Its resolved type is the type after path traversal.
type FieldExpr struct {
	pos   int
	Field types.Field
	Path  []PathItem
	ty    types.Type
}

func (e *FieldExpr) ResultType() types.Type { return e.ty }
func (e *FieldExpr) Pos() int               { return e.pos }

// LiteralExpr is a typed constant parsed from the expression text.
type LiteralExpr struct {
	pos   int
	Value types.Value
}

func (e *LiteralExpr) ResultType() types.Type { return e.Value.Type() }
func (e *LiteralExpr) Pos() int               { return e.pos }

// NotExpr negates a boolean operand.
type NotExpr struct {
	pos     int
	Operand Node
}

func (e *NotExpr) ResultType() types.Type { return types.Bool() }
func (e *NotExpr) Pos() int               { return e.pos }

// LogicalOp is a logical connective.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpAnd {
		return "&&"
	}
	return "||"
}

// LogicalExpr is a binary conjunction or disjunction. The compiler
// flattens runs of the same operator into n-ary short-circuit lists.
type LogicalExpr struct {
	pos         int
	Op          LogicalOp
	Left, Right Node
}

func (e *LogicalExpr) ResultType() types.Type { return types.Bool() }
func (e *LogicalExpr) Pos() int               { return e.pos }

// CompareOp is an ordering or equality operator.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (op CompareOp) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">="}[op]
}

// CompareExpr compares two same-typed operands.
type CompareExpr struct {
	pos      int
	Op       CompareOp
	Lhs, Rhs Node
}

func (e *CompareExpr) ResultType() types.Type { return types.Bool() }
func (e *CompareExpr) Pos() int               { return e.pos }

// ContainsExpr is a substring test over a Bytes operand. The search
// structure is precompiled from the literal at parse time.
type ContainsExpr struct {
	pos    int
	Lhs    Node
	Needle []byte
	search *byteSearcher
}

func (e *ContainsExpr) ResultType() types.Type { return types.Bool() }
func (e *ContainsExpr) Pos() int               { return e.pos }

// MatchesExpr is a regex test over a Bytes operand. The program is
// compiled at parse time, so compilation and evaluation cannot fail on
// a bad pattern.
type MatchesExpr struct {
	pos     int
	Lhs     Node
	Pattern string
	re      *regexp.Regexp
}

func (e *MatchesExpr) ResultType() types.Type { return types.Bool() }
func (e *MatchesExpr) Pos() int               { return e.pos }

// InCidrExpr tests an Ip operand for membership in any of the listed
// networks.
type InCidrExpr struct {
	pos int
	Lhs Node
	set *cidrSet
}

func (e *InCidrExpr) ResultType() types.Type { return types.Bool() }
func (e *InCidrExpr) Pos() int               { return e.pos }

// InSetExpr tests an Int or Bytes operand for membership in a literal
// set.
type InSetExpr struct {
	pos    int
	Lhs    Node
	Values []types.Value
}

func (e *InSetExpr) ResultType() types.Type { return types.Bool() }
func (e *InSetExpr) Pos() int               { return e.pos }

// InElementExpr tests a scalar for membership among the elements of an
// Array field or the values of a Map field.
type InElementExpr struct {
	pos      int
	Needle   Node
	Haystack Node
}

func (e *InElementExpr) ResultType() types.Type { return types.Bool() }
func (e *InElementExpr) Pos() int               { return e.pos }

// Expression is a parsed, type-checked filter bound to the scheme it
// was authored against. It is transient: produced by Parse and consumed
// by Compile within one compile call.
type Expression struct {
	Root   Node
	Text   string
	scheme *types.Scheme
}

// Scheme returns the scheme the expression was parsed against.
func (e *Expression) Scheme() *types.Scheme { return e.scheme }

// Fields returns the names of all scheme fields the expression
// references, in first-reference order.
func (e *Expression) Fields() []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *FieldExpr:
			if !seen[node.Field.Name()] {
				seen[node.Field.Name()] = true
				names = append(names, node.Field.Name())
			}
		case *LiteralExpr:
		case *NotExpr:
			walk(node.Operand)
		case *LogicalExpr:
			walk(node.Left)
			walk(node.Right)
		case *CompareExpr:
			walk(node.Lhs)
			walk(node.Rhs)
		case *ContainsExpr:
			walk(node.Lhs)
		case *MatchesExpr:
			walk(node.Lhs)
		case *InCidrExpr:
			walk(node.Lhs)
		case *InSetExpr:
			walk(node.Lhs)
		case *InElementExpr:
			walk(node.Needle)
			walk(node.Haystack)
		}
	}
	walk(e.Root)
	return names
}
