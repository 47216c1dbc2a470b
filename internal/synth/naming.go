package synth

import (
	"fmt"
	"go/token"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.Und, cases.NoLower)

// exportedName converts a snake_case entry point name to an exported Go
// identifier: sum_rows becomes SumRows. Names that would not start with a
// letter get an "Entry" prefix.
func exportedName(snake string) string {
	var b strings.Builder
	for _, part := range strings.Split(snake, "_") {
		if part == "" {
			continue
		}
		b.WriteString(title.String(part))
	}
	name := b.String()
	if name == "" || !isLetter(name[0]) {
		name = "Entry" + name
	}
	return name
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// namer hands out identifiers that are unique within one scope.
type namer struct {
	used map[string]bool
}

func newNamer(reserved ...string) *namer {
	n := &namer{used: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		n.used[r] = true
	}
	return n
}

// claim returns name, or name+suffix, or name+suffix+N, whichever is free
// first, and marks it used. Go keywords are never returned.
func (n *namer) claim(name, suffix string) string {
	candidate := name
	if n.used[candidate] || token.IsKeyword(candidate) {
		candidate = name + suffix
	}
	for i := 2; n.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s%s%d", name, suffix, i)
	}
	n.used[candidate] = true
	return candidate
}
