package header

import "fmt"

// TokenKind identifies a lexical token class.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenStar
	TokenComma
	TokenSemicolon
	TokenPunct
)

var tokenNames = map[TokenKind]string{
	TokenEOF:       "EOF",
	TokenIdent:     "identifier",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenStar:      "*",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenPunct:     "punctuation",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a lexical token with its source position.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
	Offset int // byte offset of Text in the source
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Kind, t.Text, t.Line, t.Column)
}

// is reports whether t is the identifier or punctuation text s.
func (t Token) is(s string) bool {
	return t.Text == s && t.Kind != TokenString
}
