package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/genfut/internal/abi"
)

// Kind classifies a pipeline failure. Every kind is fatal.
type Kind int

const (
	// KindInternal is a generator bug, such as a template that renders
	// invalid Go.
	KindInternal Kind = iota
	// KindEnvironment is a missing or failing external tool.
	KindEnvironment
	// KindFilesystem is a directory, copy, read or write failure.
	KindFilesystem
	// KindParse is a header that does not match the expected format.
	KindParse
	// KindConsistency is a disagreement between backend models.
	KindConsistency
	// KindLedger is a failure reading or writing the generation ledger.
	KindLedger
)

var kindNames = map[Kind]string{
	KindInternal:    "internal",
	KindEnvironment: "environment",
	KindFilesystem:  "filesystem",
	KindParse:       "parse",
	KindConsistency: "consistency",
	KindLedger:      "ledger",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a failed pipeline step.
type Error struct {
	Kind    Kind
	Backend abi.Backend // empty for steps not tied to one backend
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
