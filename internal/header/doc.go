// Package header scans Futhark-generated C headers.
//
// The scanner tokenizes the header and matches two declaration shapes: opaque
// array forward declarations (struct futhark_i32_2d;) and entry point
// prototypes (int futhark_entry_<name>(struct futhark_context *ctx, ...);).
// Everything else is skipped. Text that looks like an entry point but does not
// fit the grammar is reported as a ParseError with the offending source line,
// so a change in the compiler's output format fails loudly instead of silently
// yielding fewer entry points.
package header
