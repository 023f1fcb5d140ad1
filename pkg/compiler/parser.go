// sieve/pkg/compiler/parser.go

package compiler

import (
	"net/netip"
	"regexp"

	"rgehrsitz/sieve/pkg/logging"
	"rgehrsitz/sieve/pkg/types"
)

// Options configures optional parser capabilities.
type Options struct {
	// EnableRegex controls the pattern-match capability. When false,
	// `matches` / `~` fails with an UnsupportedOperator error at parse
	// time; the grammar is otherwise unchanged.
	EnableRegex bool
}

// DefaultOptions enables every capability.
func DefaultOptions() Options {
	return Options{EnableRegex: true}
}

// Parse parses a filter expression against a scheme and returns a
// fully type-resolved syntax tree. Every production resolves its type
// immediately, so there is no separate type-checking pass and a
// successfully parsed expression can always be compiled.
func Parse(text string, scheme *types.Scheme) (*Expression, error) {
	return ParseWithOptions(text, scheme, DefaultOptions())
}

// ParseWithOptions is Parse with explicit capability options.
func ParseWithOptions(text string, scheme *types.Scheme, opts Options) (*Expression, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		logging.Logger.Debug().Err(err).Str("expression", text).Msg("Lexing failed")
		return nil, err
	}

	p := &parser{tokens: tokens, scheme: scheme, opts: opts}
	root, err := p.parseOr()
	if err != nil {
		logging.Logger.Debug().Err(err).Str("expression", text).Msg("Parsing failed")
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, newSyntaxError(tok.Pos, "unexpected %s after expression", tok.Kind)
	}
	if root.ResultType().Kind() != types.KindBool {
		return nil, newTypeMismatch(root.Pos(), types.Bool(), root.ResultType())
	}
	return &Expression{Root: root, Text: text, scheme: scheme}, nil
}

type parser struct {
	tokens []Token
	pos    int
	scheme *types.Scheme
	opts   Options
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return Token{}, newSyntaxError(tok.Pos, "expected %s, got %s", kind, tok.Kind)
	}
	return p.advance(), nil
}

// requireBool checks that a logical operand resolved to Bool.
func requireBool(n Node) error {
	if n.ResultType().Kind() != types.KindBool {
		return newTypeMismatch(n.Pos(), types.Bool(), n.ResultType())
	}
	return nil
}

// parseOr handles disjunction, the lowest-precedence production.
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenOr {
		p.advance()
		if err := requireBool(left); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := requireBool(right); err != nil {
			return nil, err
		}
		left = &LogicalExpr{pos: left.Pos(), Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenAnd {
		p.advance()
		if err := requireBool(left); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := requireBool(right); err != nil {
			return nil, err
		}
		left = &LogicalExpr{pos: left.Pos(), Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().Kind == TokenNot {
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := requireBool(operand); err != nil {
			return nil, err
		}
		return &NotExpr{pos: tok.Pos, Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison handles a parenthesized sub-expression or a single
// comparison/containment production.
func (p *parser) parseComparison() (Node, error) {
	if p.peek().Kind == TokenLParen {
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return node, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch p.peek().Kind {
	case TokenEq, TokenNe, TokenLt, TokenLe, TokenGt, TokenGe:
		return p.parseCompare(lhs)
	case TokenContains:
		return p.parseContains(lhs)
	case TokenMatches:
		return p.parseMatches(lhs)
	case TokenIn:
		return p.parseIn(lhs)
	default:
		// A bare operand is a valid expression only when it is boolean,
		// e.g. `tcp.syn` or `not ssl`.
		if lhs.ResultType().Kind() != types.KindBool {
			tok := p.peek()
			return nil, newSyntaxError(tok.Pos, "expected operator after %s operand", lhs.ResultType())
		}
		return lhs, nil
	}
}

var compareOps = map[TokenKind]CompareOp{
	TokenEq: CmpEq,
	TokenNe: CmpNe,
	TokenLt: CmpLt,
	TokenLe: CmpLe,
	TokenGt: CmpGt,
	TokenGe: CmpGe,
}

func (p *parser) parseCompare(lhs Node) (Node, error) {
	opTok := p.advance()
	op := compareOps[opTok.Kind]

	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	lt, rt := lhs.ResultType(), rhs.ResultType()
	if !lt.Equal(rt) {
		return nil, newTypeMismatch(rhs.Pos(), lt, rt)
	}
	switch op {
	case CmpEq, CmpNe:
		switch lt.Kind() {
		case types.KindBool, types.KindInt, types.KindBytes, types.KindIp:
		default:
			return nil, newOperatorMismatch(opTok.Pos, op.String(), lt)
		}
	default:
		switch lt.Kind() {
		case types.KindInt, types.KindBytes:
		default:
			return nil, newOperatorMismatch(opTok.Pos, op.String(), lt)
		}
	}
	return &CompareExpr{pos: lhs.Pos(), Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func (p *parser) parseContains(lhs Node) (Node, error) {
	opTok := p.advance()
	if lhs.ResultType().Kind() != types.KindBytes {
		return nil, newOperatorMismatch(opTok.Pos, "contains", lhs.ResultType())
	}
	tok := p.peek()
	if tok.Kind != TokenString {
		return nil, newSyntaxError(tok.Pos, "contains requires a byte-string literal, got %s", tok.Kind)
	}
	p.advance()
	return &ContainsExpr{
		pos:    lhs.Pos(),
		Lhs:    lhs,
		Needle: tok.Bytes,
		search: newByteSearcher(tok.Bytes),
	}, nil
}

func (p *parser) parseMatches(lhs Node) (Node, error) {
	opTok := p.advance()
	if !p.opts.EnableRegex {
		return nil, newUnsupportedOperator(opTok.Pos, "matches")
	}
	if lhs.ResultType().Kind() != types.KindBytes {
		return nil, newOperatorMismatch(opTok.Pos, "matches", lhs.ResultType())
	}
	tok := p.peek()
	if tok.Kind != TokenString {
		return nil, newSyntaxError(tok.Pos, "matches requires a pattern literal, got %s", tok.Kind)
	}
	p.advance()
	pattern := string(tok.Bytes)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, newInvalidLiteral(tok.Pos, "invalid regex %q: %v", pattern, err)
	}
	return &MatchesExpr{pos: lhs.Pos(), Lhs: lhs, Pattern: pattern, re: re}, nil
}

func (p *parser) parseIn(lhs Node) (Node, error) {
	opTok := p.advance()
	if p.peek().Kind == TokenLBrace {
		return p.parseInSet(lhs, opTok)
	}

	// `value in arrayfield` / `value in mapfield`: element membership.
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	rt := rhs.ResultType()
	elem, ok := rt.Elem()
	if !ok {
		return nil, newOperatorMismatch(opTok.Pos, "in", rt)
	}
	if !lhs.ResultType().Equal(elem) {
		return nil, newTypeMismatch(lhs.Pos(), elem, lhs.ResultType())
	}
	return &InElementExpr{pos: lhs.Pos(), Needle: lhs, Haystack: rhs}, nil
}

// parseInSet parses `lhs in { ... }`. Elements may be separated by
// whitespace or commas. The element grammar is driven by the lhs type:
// IP/CIDR literals for Ip, integers for Int, byte strings for Bytes.
func (p *parser) parseInSet(lhs Node, opTok Token) (Node, error) {
	p.advance() // {

	switch lhs.ResultType().Kind() {
	case types.KindIp:
		var prefixes []netip.Prefix
		for {
			tok := p.advance()
			switch tok.Kind {
			case TokenComma:
				continue
			case TokenRBrace:
				return &InCidrExpr{pos: lhs.Pos(), Lhs: lhs, set: newCidrSet(prefixes)}, nil
			case TokenCIDR:
				prefixes = append(prefixes, tok.Prefix)
			case TokenIP:
				// A bare address is the host network.
				prefixes = append(prefixes, netip.PrefixFrom(tok.Addr, tok.Addr.BitLen()))
			case TokenEOF:
				return nil, newSyntaxError(tok.Pos, "unterminated set literal")
			default:
				return nil, newSyntaxError(tok.Pos, "expected IP or CIDR literal in set, got %s", tok.Kind)
			}
		}
	case types.KindInt:
		var values []types.Value
		for {
			tok := p.advance()
			switch tok.Kind {
			case TokenComma:
				continue
			case TokenRBrace:
				return &InSetExpr{pos: lhs.Pos(), Lhs: lhs, Values: values}, nil
			case TokenInt:
				values = append(values, types.IntValue(tok.Int))
			case TokenEOF:
				return nil, newSyntaxError(tok.Pos, "unterminated set literal")
			default:
				return nil, newSyntaxError(tok.Pos, "expected integer literal in set, got %s", tok.Kind)
			}
		}
	case types.KindBytes:
		var values []types.Value
		for {
			tok := p.advance()
			switch tok.Kind {
			case TokenComma:
				continue
			case TokenRBrace:
				return &InSetExpr{pos: lhs.Pos(), Lhs: lhs, Values: values}, nil
			case TokenString:
				values = append(values, types.BytesValue(tok.Bytes))
			case TokenEOF:
				return nil, newSyntaxError(tok.Pos, "unterminated set literal")
			default:
				return nil, newSyntaxError(tok.Pos, "expected byte-string literal in set, got %s", tok.Kind)
			}
		}
	default:
		return nil, newOperatorMismatch(opTok.Pos, "in", lhs.ResultType())
	}
}

// parseOperand parses a field reference (with optional bracket path) or
// a literal.
func (p *parser) parseOperand() (Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokenIdent:
		p.advance()
		field, ok := p.scheme.Field(tok.Text)
		if !ok {
			return nil, newUnknownField(tok.Pos, tok.Text)
		}
		ty := field.Type()
		var path []PathItem
		for p.peek().Kind == TokenLBracket {
			lb := p.advance()
			switch ty.Kind() {
			case types.KindArray:
				idx := p.peek()
				if idx.Kind != TokenInt || idx.Int < 0 {
					return nil, newSyntaxError(idx.Pos, "array index must be a non-negative integer literal")
				}
				p.advance()
				path = append(path, PathItem{Index: int(idx.Int)})
			case types.KindMap:
				key := p.peek()
				if key.Kind != TokenString {
					return nil, newSyntaxError(key.Pos, "map key must be a byte-string literal")
				}
				p.advance()
				path = append(path, PathItem{Key: string(key.Bytes), IsKey: true})
			default:
				return nil, newOperatorMismatch(lb.Pos, "[]", ty)
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			ty, _ = ty.Elem()
		}
		return &FieldExpr{pos: tok.Pos, Field: field, Path: path, ty: ty}, nil
	case TokenInt:
		p.advance()
		return &LiteralExpr{pos: tok.Pos, Value: types.IntValue(tok.Int)}, nil
	case TokenString:
		p.advance()
		return &LiteralExpr{pos: tok.Pos, Value: types.BytesValue(tok.Bytes)}, nil
	case TokenIP:
		p.advance()
		return &LiteralExpr{pos: tok.Pos, Value: types.IpValue(tok.Addr)}, nil
	case TokenBool:
		p.advance()
		return &LiteralExpr{pos: tok.Pos, Value: types.BoolValue(tok.Bool)}, nil
	case TokenCIDR:
		return nil, newSyntaxError(tok.Pos, "CIDR literal is only valid inside an in { ... } set")
	default:
		return nil, newSyntaxError(tok.Pos, "unexpected %s", tok.Kind)
	}
}
