// Package harness runs generation scenarios end to end.
//
// A scenario is a YAML file naming a kernel, the backends to generate and,
// per backend, the header the compiler should emit. The harness stands a
// fake compiler in for futhark, runs the real pipeline in a scratch
// directory and records what happened: the compiler invocations, the
// canonical model and the files written, or the kind of failure.
//
// Results are checked two ways. Each scenario's expect block is evaluated
// by Check, and the normalized trace is compared against a golden file
// under testdata/golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
