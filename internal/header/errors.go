package header

import (
	"fmt"
	"strings"
)

// ParseError reports header text that does not match the expected grammar.
type ParseError struct {
	File    string
	Line    int // 1-based; 0 when the error concerns the whole header
	Column  int
	Message string
	Source  string // the offending source line, if known
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(":")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:%d:", e.Line, e.Column)
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(e.Message)
	if e.Source != "" {
		fmt.Fprintf(&b, "\n\t%s", e.Source)
	}
	return b.String()
}
