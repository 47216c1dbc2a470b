package header

// Lexer tokenizes C header text. It understands just enough C to find
// declaration boundaries: comments and preprocessor lines are skipped, string
// and character literals are kept whole.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, len(source)/4+16),
	}
}

// Tokenize returns all tokens from the source, terminated by TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	atLineStart := true
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == '\n':
			l.advance()
			atLineStart = true
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance()
			continue
		case c == '#' && atLineStart:
			l.skipDirective()
			continue
		case c == '/' && l.peekNext() == '/':
			l.skipLineComment()
			continue
		case c == '/' && l.peekNext() == '*':
			if err := l.skipBlockComment(); err != nil {
				return nil, err
			}
			continue
		}

		atLineStart = false
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}

	l.tokens = append(l.tokens, Token{Kind: TokenEOF, Line: l.line, Column: l.column, Offset: l.pos})
	return l.tokens, nil
}

func (l *Lexer) scanToken() error {
	line, col, start := l.line, l.column, l.pos
	c := l.advance()

	emit := func(kind TokenKind) {
		l.tokens = append(l.tokens, Token{Kind: kind, Text: l.source[start:l.pos], Line: line, Column: col, Offset: start})
	}

	switch {
	case c == '(':
		emit(TokenLParen)
	case c == ')':
		emit(TokenRParen)
	case c == '{':
		emit(TokenLBrace)
	case c == '}':
		emit(TokenRBrace)
	case c == '*':
		emit(TokenStar)
	case c == ',':
		emit(TokenComma)
	case c == ';':
		emit(TokenSemicolon)
	case c == '"' || c == '\'':
		if err := l.skipQuoted(c, line, col); err != nil {
			return err
		}
		emit(TokenString)
	case isIdentStart(c):
		for !l.isAtEnd() && isIdentPart(l.peek()) {
			l.advance()
		}
		emit(TokenIdent)
	case isDigit(c):
		for !l.isAtEnd() && (isIdentPart(l.peek()) || l.peek() == '.') {
			l.advance()
		}
		emit(TokenNumber)
	default:
		emit(TokenPunct)
	}
	return nil
}

func (l *Lexer) skipDirective() {
	for !l.isAtEnd() {
		c := l.peek()
		if c == '\\' && l.peekNext() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		if c == '\n' {
			return
		}
		if c == '/' && l.peekNext() == '*' {
			// A block comment may continue the directive across lines.
			_ = l.skipBlockComment()
			continue
		}
		l.advance()
	}
}

func (l *Lexer) skipLineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) skipBlockComment() error {
	line, col := l.line, l.column
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return &ParseError{Line: line, Column: col, Message: "unterminated block comment"}
}

func (l *Lexer) skipQuoted(quote byte, line, col int) error {
	for !l.isAtEnd() {
		c := l.advance()
		switch c {
		case '\\':
			if !l.isAtEnd() {
				l.advance()
			}
		case quote:
			return nil
		case '\n':
			return &ParseError{Line: line, Column: col, Message: "unterminated literal"}
		}
	}
	return &ParseError{Line: line, Column: col, Message: "unterminated literal"}
}

func (l *Lexer) advance() byte {
	c := l.source[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) peek() byte {
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
