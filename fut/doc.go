// Package fut is the runtime support imported by packages that genfut
// generates. It owns the parts of a typed Futhark binding that do not need
// cgo: array handle lifecycle, shape validation, status code mapping and
// the host element types.
//
// Generated code supplies an ArrayBackend per array type that performs the
// actual C calls. Nothing in this package is safe for concurrent use; a
// Futhark context and every array created from it belong to one goroutine
// at a time.
package fut
