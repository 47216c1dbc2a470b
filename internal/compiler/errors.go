package compiler

import "fmt"

// CompileError reports a declaration that cannot be turned into an ABI model.
type CompileError struct {
	Field   string // "element", "rank", "param", "entry", ...
	Message string
	File    string
	Line    int
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Field, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
