package cli

import (
	"errors"
	"io/fs"

	"github.com/roach88/genfut/internal/compiler"
	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/header"
	"github.com/roach88/genfut/internal/pipeline"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeEnvironment = "E002" // AOT compiler missing or failed
	ErrCodeFilesystem  = "E003" // Directory, read, copy or write failure
	ErrCodeParse       = "E004" // Header does not match the expected format
	ErrCodeElement     = "E005" // Unrecognized element type
	ErrCodeConsistency = "E006" // Backends disagree on the API
	ErrCodeConfig      = "E007" // Invalid flags or config file
	ErrCodeLedger      = "E008" // Generation ledger failure
)

// classify maps an error to its E-code and exit code.
func classify(err error) (code string, exit int) {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ErrCodeConfig, ExitCommandError
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) && compileErr.Field == "element" {
		return ErrCodeElement, ExitAbort
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case pipeline.KindEnvironment:
			return ErrCodeEnvironment, ExitFailure
		case pipeline.KindFilesystem:
			return ErrCodeFilesystem, ExitFailure
		case pipeline.KindParse:
			return ErrCodeParse, ExitAbort
		case pipeline.KindConsistency:
			return ErrCodeConsistency, ExitAbort
		case pipeline.KindLedger:
			return ErrCodeLedger, ExitFailure
		}
		return ErrCodeGeneric, ExitFailure
	}

	var (
		mismatch   *compiler.MismatchError
		parseErr   *header.ParseError
		validation compiler.ValidationError
		pathErr    *fs.PathError
	)
	switch {
	case errors.As(err, &mismatch):
		return ErrCodeConsistency, ExitAbort
	case errors.As(err, &compileErr), errors.As(err, &parseErr), errors.As(err, &validation):
		return ErrCodeParse, ExitAbort
	case errors.As(err, &pathErr):
		return ErrCodeFilesystem, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// fail renders err through the formatter and returns the ExitError the
// command should return.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	_ = f.Error(code, message+": "+err.Error(), nil)
	return WrapExitError(exit, message, err)
}
