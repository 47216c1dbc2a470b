package bindgen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"modernc.org/cc/v4"
)

// VerifyError reports a header the C front end could not translate.
type VerifyError struct {
	Header string
	Err    error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: %v", e.Header, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// ConfigError reports that the host C configuration could not be probed,
// usually because no C compiler is installed.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("probe host C configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Declarations translates header with the host C configuration and returns
// the sorted names of the futhark_ functions it declares.
func Declarations(header, includeDir string) ([]string, error) {
	cfg, err := cc.NewConfig("", "")
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg.IncludePaths = append(cfg.IncludePaths, filepath.Dir(header))
	if includeDir != "" {
		cfg.SysIncludePaths = append(cfg.SysIncludePaths, includeDir)
	}

	ast, err := cc.Translate(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: header},
	})
	if err != nil {
		return nil, &VerifyError{Header: header, Err: err}
	}

	seen := make(map[string]bool)
	for tu := ast.TranslationUnit; tu != nil; tu = tu.TranslationUnit {
		ed := tu.ExternalDeclaration
		if ed == nil || ed.Case != cc.ExternalDeclarationDecl || ed.Declaration == nil {
			continue
		}
		for l := ed.Declaration.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
			if l.InitDeclarator == nil {
				continue
			}
			d := l.InitDeclarator.Declarator
			if d == nil || d.DirectDeclarator == nil || d.DirectDeclarator.Case != cc.DirectDeclaratorFuncParam {
				continue
			}
			if name := d.Name(); strings.HasPrefix(name, "futhark_") {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
