package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Field    string   // expect field that failed
	Expected string   // human-readable expected outcome
	Actual   string   // human-readable actual outcome
	Trace    []string // compiler trace for context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nCompiler trace:\n")
		for i, call := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, call)
		}
	}
	return buf.String()
}

// Check evaluates the scenario's expect block against res and returns one
// error per failed expectation.
func Check(s *Scenario, res *Result) []error {
	var errs []error
	fail := func(field, expected, actual string) {
		errs = append(errs, &AssertionError{Field: field, Expected: expected, Actual: actual, Trace: res.Trace})
	}

	want := s.Expect
	if got := res.Kind(); got != want.Error {
		actual := "success"
		if res.Err != nil {
			actual = fmt.Sprintf("%s failure: %v", got, res.Err)
		}
		expected := "success"
		if want.Error != "" {
			expected = want.Error + " failure"
		}
		fail("error", expected, actual)
	}

	if err := checkOrder(res.Trace, want.Calls); err != "" {
		fail("calls", fmt.Sprintf("%q in order", want.Calls), err)
	}

	if res.Model == nil {
		if len(want.ArrayTypes) > 0 || len(want.EntryPoints) > 0 || len(want.Files) > 0 {
			fail("model", "a generated library", "no model")
		}
		return errs
	}

	if want.ArrayTypes != nil {
		got := make([]string, len(res.Model.ArrayTypes))
		for i, a := range res.Model.ArrayTypes {
			got[i] = a.Name
		}
		if !slices.Equal(got, want.ArrayTypes) {
			fail("array_types", fmt.Sprintf("%q", want.ArrayTypes), fmt.Sprintf("%q", got))
		}
	}

	if want.EntryPoints != nil {
		got := make([]string, len(res.Model.EntryPoints))
		for i, e := range res.Model.EntryPoints {
			got[i] = e.Name
		}
		if !slices.Equal(got, want.EntryPoints) {
			fail("entry_points", fmt.Sprintf("%q", want.EntryPoints), fmt.Sprintf("%q", got))
		}
	}

	for _, f := range want.Files {
		if !slices.Contains(res.Files, f) {
			fail("files", fmt.Sprintf("file %s written", f), fmt.Sprintf("files %q", res.Files))
		}
	}
	return errs
}

// checkOrder reports whether want appears in trace as a subsequence. It
// returns a description of the first missing call, or "".
func checkOrder(trace, want []string) string {
	i := 0
	for _, call := range trace {
		if i < len(want) && call == want[i] {
			i++
		}
	}
	if i < len(want) {
		if slices.Contains(trace, want[i]) {
			return fmt.Sprintf("%q out of order", want[i])
		}
		return fmt.Sprintf("%q not called", want[i])
	}
	return ""
}
