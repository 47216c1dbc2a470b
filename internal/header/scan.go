package header

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EntryPrefix is the symbol prefix of every exported entry point.
const EntryPrefix = "futhark_entry_"

// ArrayDecl is a captured opaque array forward declaration.
type ArrayDecl struct {
	Name string // full identifier including the rank suffix
	Line int
}

// RawParam is one comma-separated parameter of an entry point prototype.
type RawParam struct {
	Text   string  // parameter text with whitespace normalized
	Tokens []Token // identifier and star tokens of the parameter
	Line   int
	Column int
}

// EntryDecl is a captured entry point prototype.
type EntryDecl struct {
	Name    string     // entry name without the futhark_entry_ prefix
	Text    string     // the full statement, verbatim
	Context RawParam   // the leading context parameter
	Params  []RawParam // parameters after the context, in header order
	Line    int
}

// Declarations holds everything the scanner captured from one header.
type Declarations struct {
	File        string
	ArrayTypes  []ArrayDecl
	EntryPoints []EntryDecl
}

// ScanFile reads and scans the header at path.
func ScanFile(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return Scan(path, string(data))
}

// Scan extracts array type and entry point declarations from header text.
// A header without entry points is an error, never an empty result.
func Scan(file, src string) (*Declarations, error) {
	s := &scanner{file: file, src: src, lines: strings.Split(src, "\n")}

	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, s.annotate(err)
	}

	decls := &Declarations{File: file}
	s.decls = decls
	if err := s.scanStatements(tokens); err != nil {
		return nil, s.annotate(err)
	}

	if len(decls.EntryPoints) == 0 {
		if len(tokens) == 1 {
			return nil, &ParseError{File: file, Message: "header is empty"}
		}
		return nil, &ParseError{
			File: file,
			Message: "no entry points found: expected prototypes of the form " +
				"int " + EntryPrefix + "<name>(struct futhark_context *ctx, ...); " +
				"the compiler output format may have changed",
		}
	}
	return decls, nil
}

type scanner struct {
	file  string
	src   string
	lines []string
	decls *Declarations
}

// annotate attaches the file name and the offending source line.
func (s *scanner) annotate(err error) error {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return err
	}
	pe.File = s.file
	if pe.Line > 0 && pe.Line <= len(s.lines) && pe.Source == "" {
		pe.Source = strings.TrimSpace(s.lines[pe.Line-1])
	}
	return pe
}

// scanStatements splits the token stream into top-level statements. A
// statement ends at ';' outside parentheses; braces (extern "C" blocks,
// struct bodies) are statement boundaries.
func (s *scanner) scanStatements(tokens []Token) error {
	var stmt []Token
	depth := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenEOF:
			if depth != 0 {
				return &ParseError{Line: tok.Line, Column: tok.Column, Message: "unbalanced parentheses at end of header"}
			}
			return nil
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
			if depth < 0 {
				return &ParseError{Line: tok.Line, Column: tok.Column, Message: "unexpected ')'"}
			}
		case TokenLBrace, TokenRBrace:
			if depth == 0 {
				if err := s.checkDangling(stmt); err != nil {
					return err
				}
				stmt = stmt[:0]
				continue
			}
		case TokenSemicolon:
			if depth == 0 {
				if err := s.statement(stmt, tok); err != nil {
					return err
				}
				stmt = stmt[:0]
				continue
			}
		}
		stmt = append(stmt, tok)
	}
	return nil
}

// checkDangling rejects an entry point prototype cut off by a brace.
func (s *scanner) checkDangling(stmt []Token) error {
	if i := entryIndex(stmt); i >= 0 {
		return &ParseError{Line: stmt[i].Line, Column: stmt[i].Column, Message: "unrecognized entry point declaration: missing ';'"}
	}
	return nil
}

func (s *scanner) statement(stmt []Token, end Token) error {
	if len(stmt) == 0 {
		return nil
	}

	// Grammar (a): struct <ident>_<digits>d ;
	if len(stmt) == 2 && stmt[0].is("struct") && stmt[1].Kind == TokenIdent && HasRankSuffix(stmt[1].Text) {
		s.decls.ArrayTypes = append(s.decls.ArrayTypes, ArrayDecl{Name: stmt[1].Text, Line: stmt[1].Line})
		return nil
	}

	// Grammar (b): int futhark_entry_<name>(struct futhark_context *ctx, ...);
	i := entryIndex(stmt)
	if i < 0 {
		return nil
	}
	decl, err := s.entry(stmt, i, end)
	if err != nil {
		return err
	}
	s.decls.EntryPoints = append(s.decls.EntryPoints, *decl)
	return nil
}

// entryIndex returns the index of an entry point name followed by '(' or -1.
func entryIndex(stmt []Token) int {
	for i := 0; i+1 < len(stmt); i++ {
		if stmt[i].Kind == TokenIdent && strings.HasPrefix(stmt[i].Text, EntryPrefix) && stmt[i+1].Kind == TokenLParen {
			return i
		}
	}
	return -1
}

func (s *scanner) entry(stmt []Token, i int, end Token) (*EntryDecl, error) {
	nameTok := stmt[i]
	fail := func(tok Token, format string, args ...any) error {
		return &ParseError{
			Line:    tok.Line,
			Column:  tok.Column,
			Message: "unrecognized entry point declaration: " + fmt.Sprintf(format, args...),
		}
	}

	if i != 1 || !stmt[0].is("int") {
		return nil, fail(stmt[0], "expected return type int before %s", nameTok.Text)
	}
	name := strings.TrimPrefix(nameTok.Text, EntryPrefix)
	if name == "" {
		return nil, fail(nameTok, "empty entry point name")
	}

	last := stmt[len(stmt)-1]
	if last.Kind != TokenRParen {
		return nil, fail(last, "expected ')' before ';', found %q", last.Text)
	}

	inner := stmt[i+2 : len(stmt)-1]
	groups, err := splitParams(inner, stmt[i+1])
	if err != nil {
		return nil, err
	}

	ctxParam, err := rawParam(groups[0])
	if err != nil {
		return nil, err
	}
	if !isContextParam(ctxParam) {
		return nil, fail(groups[0][0], "first parameter must be struct futhark_context *ctx, found %q", ctxParam.Text)
	}

	decl := &EntryDecl{
		Name:    name,
		Text:    s.src[stmt[0].Offset : end.Offset+1],
		Context: ctxParam,
		Line:    stmt[0].Line,
	}
	for _, g := range groups[1:] {
		p, err := rawParam(g)
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, p)
	}
	return decl, nil
}

// splitParams splits parameter tokens on top-level commas. The grammar has
// no nested parentheses, so any '(' inside is an error.
func splitParams(inner []Token, open Token) ([][]Token, error) {
	if len(inner) == 0 {
		return nil, &ParseError{Line: open.Line, Column: open.Column, Message: "unrecognized entry point declaration: missing context parameter"}
	}
	var groups [][]Token
	var cur []Token
	for _, tok := range inner {
		switch tok.Kind {
		case TokenLParen, TokenRParen:
			return nil, &ParseError{Line: tok.Line, Column: tok.Column, Message: "unrecognized entry point declaration: nested parentheses in parameter list"}
		case TokenComma:
			if len(cur) == 0 {
				return nil, &ParseError{Line: tok.Line, Column: tok.Column, Message: "unrecognized entry point declaration: empty parameter"}
			}
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) == 0 {
		last := inner[len(inner)-1]
		return nil, &ParseError{Line: last.Line, Column: last.Column, Message: "unrecognized entry point declaration: trailing comma"}
	}
	return append(groups, cur), nil
}

// rawParam checks a parameter against [const] [struct] <type> [*]* <ident>.
func rawParam(toks []Token) (RawParam, error) {
	first := toks[0]
	bad := func(tok Token) (RawParam, error) {
		return RawParam{}, &ParseError{
			Line:    tok.Line,
			Column:  tok.Column,
			Message: fmt.Sprintf("unrecognized entry point declaration: malformed parameter %q", joinTokens(toks)),
		}
	}

	i := 0
	if i < len(toks) && toks[i].is("const") {
		i++
	}
	if i < len(toks) && toks[i].is("struct") {
		i++
	}
	if i >= len(toks) || toks[i].Kind != TokenIdent || isQualifier(toks[i].Text) {
		return bad(first)
	}
	i++
	for i < len(toks) && toks[i].Kind == TokenStar {
		i++
	}
	if i != len(toks)-1 || toks[i].Kind != TokenIdent || isQualifier(toks[i].Text) {
		if i < len(toks) {
			return bad(toks[i])
		}
		return bad(first)
	}

	return RawParam{
		Text:   joinTokens(toks),
		Tokens: toks,
		Line:   first.Line,
		Column: first.Column,
	}, nil
}

func isContextParam(p RawParam) bool {
	t := p.Tokens
	return len(t) == 4 && t[0].is("struct") && t[1].is("futhark_context") && t[2].Kind == TokenStar
}

func isQualifier(s string) bool {
	switch s {
	case "const", "struct", "volatile", "restrict", "unsigned", "signed":
		return true
	}
	return false
}

// joinTokens renders tokens as normalized text: single spaces between words,
// stars attached to what follows them.
func joinTokens(toks []Token) string {
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && toks[i-1].Kind != TokenStar {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

// HasRankSuffix reports whether name ends in _<digits>d with a non-empty prefix.
func HasRankSuffix(name string) bool {
	_, _, ok := SplitRankSuffix(name)
	return ok
}

// SplitRankSuffix splits "futhark_i32_2d" into ("futhark_i32", "2").
func SplitRankSuffix(name string) (prefix, digits string, ok bool) {
	if !strings.HasSuffix(name, "d") {
		return "", "", false
	}
	us := strings.LastIndexByte(name, '_')
	if us <= 0 {
		return "", "", false
	}
	digits = name[us+1 : len(name)-1]
	if digits == "" {
		return "", "", false
	}
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return "", "", false
		}
	}
	return name[:us], digits, true
}
