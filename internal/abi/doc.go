// Package abi provides the structured description of a Futhark library's
// exported C ABI as recovered from generated header text.
//
// This package contains type definitions only. All other internal packages
// import abi; abi imports nothing internal.
//
// Key design constraints:
//   - Parameter and declaration order is the header's text order
//   - Every element type maps one-to-one to a C type and a Go host type
//   - Models are compared structurally; the backend name is not part of the ABI
//   - All JSON tags use snake_case
package abi
