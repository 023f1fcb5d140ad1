// sieve/pkg/compiler/lexer.go

package compiler

import (
	"net/netip"
	"strconv"
	"strings"
)

// Tokenize splits a filter expression into tokens. It fails with a
// ParseError of kind ErrLex carrying the byte offset of the offending
// character.
//
// Literal grammar: integers are decimal or 0x-prefixed hex with an
// optional leading minus; byte strings are double-quoted with the
// escapes \" \\ \n \r \t \xHH; a bare word containing ':' must be an
// IPv6 address; a word starting with a digit and containing dots must
// be an IPv4 address; addr/prefix must be a valid CIDR. Anything
// ambiguous beyond these rules is an error rather than a guess.
func Tokenize(input string) ([]Token, error) {
	lx := &lexer{input: input}
	var tokens []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

type lexer struct {
	input string
	pos   int
}

func (lx *lexer) next() (Token, error) {
	lx.skipSpace()
	start := lx.pos
	if lx.pos >= len(lx.input) {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}

	c := lx.input[lx.pos]
	switch c {
	case '(':
		return lx.punct(TokenLParen, 1)
	case ')':
		return lx.punct(TokenRParen, 1)
	case '{':
		return lx.punct(TokenLBrace, 1)
	case '}':
		return lx.punct(TokenRBrace, 1)
	case '[':
		return lx.punct(TokenLBracket, 1)
	case ']':
		return lx.punct(TokenRBracket, 1)
	case ',':
		return lx.punct(TokenComma, 1)
	case '~':
		return lx.punct(TokenMatches, 1)
	case '=':
		if lx.peekAt(1) == '=' {
			return lx.punct(TokenEq, 2)
		}
		return Token{}, newLexError(start, "unexpected character %q (did you mean ==?)", "=")
	case '!':
		if lx.peekAt(1) == '=' {
			return lx.punct(TokenNe, 2)
		}
		return lx.punct(TokenNot, 1)
	case '<':
		if lx.peekAt(1) == '=' {
			return lx.punct(TokenLe, 2)
		}
		return lx.punct(TokenLt, 1)
	case '>':
		if lx.peekAt(1) == '=' {
			return lx.punct(TokenGe, 2)
		}
		return lx.punct(TokenGt, 1)
	case '&':
		if lx.peekAt(1) == '&' {
			return lx.punct(TokenAnd, 2)
		}
		return Token{}, newLexError(start, "unexpected character %q (did you mean &&?)", "&")
	case '|':
		if lx.peekAt(1) == '|' {
			return lx.punct(TokenOr, 2)
		}
		return Token{}, newLexError(start, "unexpected character %q (did you mean ||?)", "|")
	case '"':
		return lx.scanString()
	}

	switch {
	case c == '-' && isDigit(lx.peekAt(1)):
		return lx.scanNumeric()
	case isDigit(c) || c == ':':
		// A leading ':' can only start an IPv6 literal such as ::1.
		return lx.scanNumeric()
	case isLetter(c) || c == '_':
		return lx.scanWord()
	default:
		return Token{}, newLexError(start, "unexpected character %q", string(c))
	}
}

func (lx *lexer) punct(kind TokenKind, width int) (Token, error) {
	tok := Token{Kind: kind, Pos: lx.pos, Text: lx.input[lx.pos : lx.pos+width]}
	lx.pos += width
	return tok, nil
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.input) {
		switch lx.input[lx.pos] {
		case ' ', '\t', '\n', '\r':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) peekAt(offset int) byte {
	if lx.pos+offset >= len(lx.input) {
		return 0
	}
	return lx.input[lx.pos+offset]
}

// scanString decodes a double-quoted byte-string literal.
func (lx *lexer) scanString() (Token, error) {
	start := lx.pos
	lx.pos++ // opening quote
	var out []byte
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		switch c {
		case '"':
			lx.pos++
			return Token{Kind: TokenString, Pos: start, Text: lx.input[start:lx.pos], Bytes: out}, nil
		case '\\':
			lx.pos++
			if lx.pos >= len(lx.input) {
				return Token{}, newLexError(start, "unterminated string literal")
			}
			esc := lx.input[lx.pos]
			switch esc {
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'x':
				if lx.pos+2 >= len(lx.input) {
					return Token{}, newLexError(lx.pos-1, "truncated \\x escape")
				}
				b, err := strconv.ParseUint(lx.input[lx.pos+1:lx.pos+3], 16, 8)
				if err != nil {
					return Token{}, newLexError(lx.pos-1, "invalid \\x escape %q", lx.input[lx.pos-1:lx.pos+3])
				}
				out = append(out, byte(b))
				lx.pos += 2
			default:
				return Token{}, newLexError(lx.pos-1, "unknown escape sequence \\%s", string(esc))
			}
			lx.pos++
		default:
			out = append(out, c)
			lx.pos++
		}
	}
	return Token{}, newLexError(start, "unterminated string literal")
}

// scanNumeric handles everything that starts with a digit (or a minus
// followed by one): decimal and hex integers, IPv4/IPv6 addresses and
// CIDR prefixes. The maximal run of literal characters is consumed
// first and then classified, so a malformed run fails as a whole
// instead of splitting into surprising tokens.
func (lx *lexer) scanNumeric() (Token, error) {
	start := lx.pos
	if lx.input[lx.pos] == '-' {
		lx.pos++
	}
	for lx.pos < len(lx.input) && isNumericChar(lx.input[lx.pos]) {
		lx.pos++
	}
	text := lx.input[start:lx.pos]
	negative := strings.HasPrefix(text, "-")

	switch {
	case strings.ContainsRune(text, '/'):
		if negative {
			return Token{}, newLexError(start, "malformed CIDR literal %q", text)
		}
		prefix, err := netip.ParsePrefix(text)
		if err != nil {
			return Token{}, newLexError(start, "malformed CIDR literal %q", text)
		}
		return Token{Kind: TokenCIDR, Pos: start, Text: text, Prefix: prefix}, nil
	case strings.ContainsRune(text, ':'), strings.ContainsRune(text, '.'):
		if negative {
			return Token{}, newLexError(start, "malformed numeric literal %q", text)
		}
		addr, err := netip.ParseAddr(text)
		if err != nil {
			return Token{}, newLexError(start, "malformed IP or numeric literal %q", text)
		}
		return Token{Kind: TokenIP, Pos: start, Text: text, Addr: addr}, nil
	default:
		digits := strings.TrimPrefix(text, "-")
		base := 10
		if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
			digits = digits[2:]
			base = 16
		}
		n, err := strconv.ParseInt(digits, base, 64)
		if err != nil {
			return Token{}, newLexError(start, "malformed numeric literal %q", text)
		}
		if negative {
			n = -n
		}
		return Token{Kind: TokenInt, Pos: start, Text: text, Int: n}, nil
	}
}

// scanWord handles identifiers, keywords, bool literals and IPv6
// addresses that begin with a hex letter (e.g. fe80::1).
func (lx *lexer) scanWord() (Token, error) {
	start := lx.pos
	for lx.pos < len(lx.input) && isIdentChar(lx.input[lx.pos]) {
		lx.pos++
	}

	// A ':' right after a hex-looking word means this is an IPv6
	// address, not an identifier.
	if lx.pos < len(lx.input) && lx.input[lx.pos] == ':' && isHexWord(lx.input[start:lx.pos]) {
		for lx.pos < len(lx.input) && isNumericChar(lx.input[lx.pos]) {
			lx.pos++
		}
		text := lx.input[start:lx.pos]
		if strings.ContainsRune(text, '/') {
			prefix, err := netip.ParsePrefix(text)
			if err != nil {
				return Token{}, newLexError(start, "malformed CIDR literal %q", text)
			}
			return Token{Kind: TokenCIDR, Pos: start, Text: text, Prefix: prefix}, nil
		}
		addr, err := netip.ParseAddr(text)
		if err != nil {
			return Token{}, newLexError(start, "malformed IP literal %q", text)
		}
		return Token{Kind: TokenIP, Pos: start, Text: text, Addr: addr}, nil
	}

	text := lx.input[start:lx.pos]
	switch text {
	case "and":
		return Token{Kind: TokenAnd, Pos: start, Text: text}, nil
	case "or":
		return Token{Kind: TokenOr, Pos: start, Text: text}, nil
	case "not":
		return Token{Kind: TokenNot, Pos: start, Text: text}, nil
	case "in":
		return Token{Kind: TokenIn, Pos: start, Text: text}, nil
	case "contains":
		return Token{Kind: TokenContains, Pos: start, Text: text}, nil
	case "matches":
		return Token{Kind: TokenMatches, Pos: start, Text: text}, nil
	case "true":
		return Token{Kind: TokenBool, Pos: start, Text: text, Bool: true}, nil
	case "false":
		return Token{Kind: TokenBool, Pos: start, Text: text, Bool: false}, nil
	}

	if !isValidIdent(text) {
		return Token{}, newLexError(start, "malformed identifier %q", text)
	}
	return Token{Kind: TokenIdent, Pos: start, Text: text}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// isNumericChar covers every character that can appear in an integer,
// IP address or CIDR literal.
func isNumericChar(c byte) bool {
	return isHexDigit(c) || c == '.' || c == ':' || c == '/' || c == 'x' || c == 'X'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '.'
}

func isHexWord(s string) bool {
	if s == "" || len(s) > 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

// isValidIdent accepts dotted field paths: non-empty segments of
// letters, digits and underscores, each starting with a letter or
// underscore.
func isValidIdent(s string) bool {
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return false
		}
		if !isLetter(seg[0]) && seg[0] != '_' {
			return false
		}
		for i := 1; i < len(seg); i++ {
			if !isLetter(seg[i]) && !isDigit(seg[i]) && seg[i] != '_' {
				return false
			}
		}
	}
	return true
}
