// sieve/pkg/compiler/compile.go

package compiler

import (
	"fmt"
	"regexp"
	"strconv"

	"rgehrsitz/sieve/pkg/types"
)

// Filter is the executable representation of a parsed expression. All
// fallible preprocessing happened at parse time (regex programs, CIDR
// sets, substring search tables), so compilation is total and a filter
// can only fail at evaluation time on a caller-side binding error.
//
// A Filter is immutable after Compile and safe to share across any
// number of concurrent evaluations; each evaluation supplies its own
// execution context.
type Filter struct {
	scheme *types.Scheme
	root   evalNode
	fields []string
	text   string
}

// Compile lowers a type-checked expression into its executable form:
// runs of the same logical operator are flattened into ordered
// short-circuit lists, precompiled literal resources are carried
// forward, and subtrees whose operands are all literals are folded
// into constants.
func Compile(expr *Expression) *Filter {
	root, _ := compileNode(expr.Root)
	return &Filter{
		scheme: expr.Scheme(),
		root:   root,
		fields: expr.Fields(),
		text:   expr.Text,
	}
}

// Execute evaluates the filter against one execution context. It is
// deterministic and side-effect-free; the only possible error is a
// missing binding for a field the evaluation actually reached.
func (f *Filter) Execute(ctx *types.ExecutionContext) (bool, error) {
	if ctx.Scheme() != f.scheme {
		return false, fmt.Errorf("execution context was built against a different scheme")
	}
	return f.root.eval(ctx)
}

// Scheme returns the scheme the filter was compiled against.
func (f *Filter) Scheme() *types.Scheme { return f.scheme }

// Fields returns the scheme fields the filter references. Short
// circuiting may skip some of them in any given evaluation.
func (f *Filter) Fields() []string {
	out := make([]string, len(f.fields))
	copy(out, f.fields)
	return out
}

// Text returns the source text the filter was compiled from. Source
// text plus scheme is the portable representation of a filter.
func (f *Filter) Text() string { return f.text }

// evalNode is one node of the executable tree.
type evalNode interface {
	eval(ctx *types.ExecutionContext) (bool, error)
}

// valueSource produces an operand value: either a literal captured at
// parse time or a lazy field lookup in the execution context.
type valueSource interface {
	load(ctx *types.ExecutionContext) (types.Value, error)
}

type literalSource struct {
	value types.Value
}

func (s literalSource) load(*types.ExecutionContext) (types.Value, error) {
	return s.value, nil
}

type fieldSource struct {
	field types.Field
	path  []PathItem
	ref   string
}

func (s *fieldSource) load(ctx *types.ExecutionContext) (types.Value, error) {
	v, err := ctx.FieldValue(s.field)
	if err != nil {
		return nil, err
	}
	for _, item := range s.path {
		switch cur := v.(type) {
		case *types.ArrayValue:
			elem, ok := cur.Get(item.Index)
			if !ok {
				return nil, &types.MissingFieldError{Field: s.ref}
			}
			v = elem
		case *types.MapValue:
			elem, ok := cur.Get(item.Key)
			if !ok {
				return nil, &types.MissingFieldError{Field: s.ref}
			}
			v = elem
		default:
			// Unreachable for a binding that passed the scheme check.
			return nil, &types.MissingFieldError{Field: s.ref}
		}
	}
	return v, nil
}

type constEval bool

func (c constEval) eval(*types.ExecutionContext) (bool, error) { return bool(c), nil }

// boolFieldEval is a bare boolean field used directly as an expression,
// e.g. `tcp.syn && ...`.
type boolFieldEval struct {
	src valueSource
}

func (e *boolFieldEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.src.load(ctx)
	if err != nil {
		return false, err
	}
	return bool(v.(types.BoolValue)), nil
}

type notEval struct {
	operand evalNode
}

func (e *notEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.operand.eval(ctx)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// logicalEval is a flattened n-ary conjunction or disjunction evaluated
// left to right. Operands past the point where the result is determined
// are never evaluated, so their field dependencies are never looked up.
type logicalEval struct {
	op       LogicalOp
	operands []evalNode
}

func (e *logicalEval) eval(ctx *types.ExecutionContext) (bool, error) {
	for _, operand := range e.operands {
		v, err := operand.eval(ctx)
		if err != nil {
			return false, err
		}
		if e.op == OpAnd && !v {
			return false, nil
		}
		if e.op == OpOr && v {
			return true, nil
		}
	}
	return e.op == OpAnd, nil
}

type compareEval struct {
	op       CompareOp
	lhs, rhs valueSource
}

func (e *compareEval) eval(ctx *types.ExecutionContext) (bool, error) {
	a, err := e.lhs.load(ctx)
	if err != nil {
		return false, err
	}
	b, err := e.rhs.load(ctx)
	if err != nil {
		return false, err
	}
	switch e.op {
	case CmpEq:
		return types.Equal(a, b), nil
	case CmpNe:
		return !types.Equal(a, b), nil
	default:
		c, _ := types.Compare(a, b)
		switch e.op {
		case CmpLt:
			return c < 0, nil
		case CmpLe:
			return c <= 0, nil
		case CmpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
}

type containsEval struct {
	lhs    valueSource
	search *byteSearcher
}

func (e *containsEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.lhs.load(ctx)
	if err != nil {
		return false, err
	}
	return e.search.contains(v.(types.BytesValue)), nil
}

type matchesEval struct {
	lhs valueSource
	re  *regexp.Regexp
}

func (e *matchesEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.lhs.load(ctx)
	if err != nil {
		return false, err
	}
	return e.re.Match(v.(types.BytesValue)), nil
}

type inCidrEval struct {
	lhs valueSource
	set *cidrSet
}

func (e *inCidrEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.lhs.load(ctx)
	if err != nil {
		return false, err
	}
	return e.set.contains(v.(types.IpValue).Addr()), nil
}

// inSetEval holds the literal set as hash sets keyed by the scalar
// value, precomputed at compile time.
type inSetEval struct {
	lhs   valueSource
	ints  map[int64]struct{}
	bytes map[string]struct{}
}

func (e *inSetEval) eval(ctx *types.ExecutionContext) (bool, error) {
	v, err := e.lhs.load(ctx)
	if err != nil {
		return false, err
	}
	switch val := v.(type) {
	case types.IntValue:
		_, ok := e.ints[int64(val)]
		return ok, nil
	case types.BytesValue:
		_, ok := e.bytes[string(val)]
		return ok, nil
	default:
		return false, nil
	}
}

type inElementEval struct {
	needle   valueSource
	haystack valueSource
}

func (e *inElementEval) eval(ctx *types.ExecutionContext) (bool, error) {
	needle, err := e.needle.load(ctx)
	if err != nil {
		return false, err
	}
	haystack, err := e.haystack.load(ctx)
	if err != nil {
		return false, err
	}
	switch h := haystack.(type) {
	case *types.ArrayValue:
		return h.Contains(needle), nil
	case *types.MapValue:
		return h.Contains(needle), nil
	default:
		return false, nil
	}
}

// compileNode lowers one syntax node. The second return reports whether
// the subtree references any field; a subtree without field references
// is evaluated once here and replaced by its constant result.
func compileNode(n Node) (evalNode, bool) {
	switch node := n.(type) {
	case *LiteralExpr:
		// The parser only lets a bare literal through when it is Bool.
		return constEval(bool(node.Value.(types.BoolValue))), false
	case *FieldExpr:
		return &boolFieldEval{src: newFieldSource(node)}, true
	case *NotExpr:
		operand, hasFields := compileNode(node.Operand)
		if !hasFields {
			return foldConst(&notEval{operand: operand}), false
		}
		return &notEval{operand: operand}, hasFields
	case *LogicalExpr:
		return compileLogical(node)
	case *CompareExpr:
		lhs, lhsField := toSource(node.Lhs)
		rhs, rhsField := toSource(node.Rhs)
		eval := &compareEval{op: node.Op, lhs: lhs, rhs: rhs}
		if !lhsField && !rhsField {
			return foldConst(eval), false
		}
		return eval, true
	case *ContainsExpr:
		lhs, lhsField := toSource(node.Lhs)
		eval := &containsEval{lhs: lhs, search: node.search}
		if !lhsField {
			return foldConst(eval), false
		}
		return eval, true
	case *MatchesExpr:
		lhs, lhsField := toSource(node.Lhs)
		eval := &matchesEval{lhs: lhs, re: node.re}
		if !lhsField {
			return foldConst(eval), false
		}
		return eval, true
	case *InCidrExpr:
		lhs, lhsField := toSource(node.Lhs)
		eval := &inCidrEval{lhs: lhs, set: node.set}
		if !lhsField {
			return foldConst(eval), false
		}
		return eval, true
	case *InSetExpr:
		lhs, lhsField := toSource(node.Lhs)
		eval := &inSetEval{lhs: lhs, ints: make(map[int64]struct{}), bytes: make(map[string]struct{})}
		for _, v := range node.Values {
			switch val := v.(type) {
			case types.IntValue:
				eval.ints[int64(val)] = struct{}{}
			case types.BytesValue:
				eval.bytes[string(val)] = struct{}{}
			}
		}
		if !lhsField {
			return foldConst(eval), false
		}
		return eval, true
	case *InElementExpr:
		needle, needleField := toSource(node.Needle)
		haystack, haystackField := toSource(node.Haystack)
		eval := &inElementEval{needle: needle, haystack: haystack}
		if !needleField && !haystackField {
			return foldConst(eval), false
		}
		return eval, true
	default:
		// Unreachable: the node set is closed.
		panic(fmt.Sprintf("unknown syntax node %T", n))
	}
}

// compileLogical flattens a run of the same logical operator into one
// ordered operand list, dropping neutral constants and truncating the
// list after an absorbing one. Operands before an absorbing constant
// are kept so that their binding errors still surface in order.
func compileLogical(e *LogicalExpr) (evalNode, bool) {
	flat := flattenLogical(e)

	absorbing := e.Op == OpOr // true absorbs ||, false absorbs &&
	neutral := e.Op == OpAnd

	var operands []evalNode
	hasFields := false
	for _, n := range flat {
		compiled, hf := compileNode(n)
		if c, ok := compiled.(constEval); ok {
			if bool(c) == neutral {
				continue
			}
			// Absorbing constant: nothing after it can run.
			operands = append(operands, compiled)
			break
		}
		operands = append(operands, compiled)
		hasFields = hasFields || hf
	}

	switch len(operands) {
	case 0:
		return constEval(neutral), false
	case 1:
		if c, ok := operands[0].(constEval); ok {
			return c, false
		}
		return operands[0], hasFields
	default:
		if !hasFields {
			// Only possible when the last operand is absorbing.
			return constEval(absorbing), false
		}
		return &logicalEval{op: e.Op, operands: operands}, true
	}
}

// flattenLogical collects the operands of adjacent same-operator
// logical nodes in evaluation order.
func flattenLogical(root *LogicalExpr) []Node {
	var out []Node
	var walk func(n Node)
	walk = func(n Node) {
		if le, ok := n.(*LogicalExpr); ok && le.Op == root.Op {
			walk(le.Left)
			walk(le.Right)
			return
		}
		out = append(out, n)
	}
	walk(root)
	return out
}

// foldConst evaluates a field-free node once at compile time. Such
// nodes cannot error: literal loads are infallible.
func foldConst(n evalNode) constEval {
	v, _ := n.eval(nil)
	return constEval(v)
}

// toSource converts an operand node to its value source. The second
// return reports whether it reads a field.
func toSource(n Node) (valueSource, bool) {
	switch node := n.(type) {
	case *LiteralExpr:
		return literalSource{value: node.Value}, false
	case *FieldExpr:
		return newFieldSource(node), true
	default:
		panic(fmt.Sprintf("node %T cannot be a comparison operand", n))
	}
}

func newFieldSource(node *FieldExpr) *fieldSource {
	ref := node.Field.Name()
	for _, item := range node.Path {
		if item.IsKey {
			ref += "[" + strconv.Quote(item.Key) + "]"
		} else {
			ref += "[" + strconv.Itoa(item.Index) + "]"
		}
	}
	return &fieldSource{field: node.Field, path: node.Path, ref: ref}
}
