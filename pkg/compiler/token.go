// sieve/pkg/compiler/token.go

package compiler

import (
	"fmt"
	"net/netip"
)

// TokenKind identifies a lexical token class.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenInt
	TokenString
	TokenIP
	TokenCIDR
	TokenBool
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenIn
	TokenContains
	TokenMatches
	TokenAnd
	TokenOr
	TokenNot
)

func (k TokenKind) String() string {
	names := [...]string{
		"EOF", "identifier", "integer", "string", "IP", "CIDR", "bool",
		"(", ")", "{", "}", "[", "]", ",",
		"==", "!=", "<", "<=", ">", ">=",
		"in", "contains", "matches", "&&", "||", "not",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
	return names[k]
}

// Token is one lexical unit with its decoded payload. Pos is the byte
// offset of the token's first character in the expression text.
type Token struct {
	Kind TokenKind
	Pos  int
	Text string

	Int    int64        // TokenInt
	Bytes  []byte       // TokenString, unescaped
	Bool   bool         // TokenBool
	Addr   netip.Addr   // TokenIP
	Prefix netip.Prefix // TokenCIDR
}
