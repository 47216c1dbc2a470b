package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/genfut/internal/abi"
)

// HeaderBuilder renders C headers shaped like the ones the Futhark compiler
// emits with --library, for scanner and pipeline tests.
//
// Array types get the full set of lifecycle prototypes, so a built header
// exercises the same noise the scanner sees in real output.
type HeaderBuilder struct {
	arrays  []abi.ArrayType
	entries []string
}

// NewHeader returns an empty builder.
func NewHeader() *HeaderBuilder {
	return &HeaderBuilder{}
}

// Array declares futhark_<elem>_<rank>d. It panics on an unknown element.
func (b *HeaderBuilder) Array(elem string, rank int) *HeaderBuilder {
	e, err := abi.ParseElement(elem)
	if err != nil {
		panic(err)
	}
	b.arrays = append(b.arrays, abi.ArrayType{
		Name:    fmt.Sprintf("futhark_%s_%dd", elem, rank),
		Element: e,
		Rank:    rank,
	})
	return b
}

// Entry declares futhark_entry_<name> with params following the context.
// An empty params string declares a context-only entry point.
func (b *HeaderBuilder) Entry(name, params string) *HeaderBuilder {
	proto := fmt.Sprintf("int futhark_entry_%s(struct futhark_context *ctx", name)
	if params != "" {
		proto += ", " + params
	}
	b.entries = append(b.entries, proto+");")
	return b
}

// String renders the header.
func (b *HeaderBuilder) String() string {
	var sb strings.Builder
	sb.WriteString(headerPreamble)

	sb.WriteString("\n// Arrays\n\n")
	for _, a := range b.arrays {
		suffix := a.Suffix()
		ct := a.Element.CType()
		dims := make([]string, a.Rank)
		for i := range dims {
			dims[i] = fmt.Sprintf("int64_t dim%d", i)
		}
		fmt.Fprintf(&sb, "struct %s;\n", a.Name)
		fmt.Fprintf(&sb, "struct %s *futhark_new_%s(struct futhark_context *ctx, const %s *data, %s);\n", a.Name, suffix, ct, strings.Join(dims, ", "))
		fmt.Fprintf(&sb, "int futhark_free_%s(struct futhark_context *ctx, struct %s *arr);\n", suffix, a.Name)
		fmt.Fprintf(&sb, "int futhark_values_%s(struct futhark_context *ctx, struct %s *arr, %s *data);\n", suffix, a.Name, ct)
		fmt.Fprintf(&sb, "const int64_t *futhark_shape_%s(struct futhark_context *ctx, struct %s *arr);\n", suffix, a.Name)
	}

	sb.WriteString("\n// Entry points\n")
	for _, e := range b.entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}

	sb.WriteString(headerEpilogue)
	return sb.String()
}

// AddHeader is the header of a kernel exporting add(x: i32, y: i32): i32.
func AddHeader() string {
	return NewHeader().
		Entry("add", "int32_t *out0, const int32_t in0, const int32_t in1").
		String()
}

// MatmulHeader is the header of a kernel with two array types and three
// entry points covering array outputs, array inputs, scalar inputs and
// scalar outputs.
func MatmulHeader() string {
	return NewHeader().
		Array("f32", 2).
		Array("i64", 1).
		Entry("matmul", "struct futhark_f32_2d **out0, const struct futhark_f32_2d *in0, const struct futhark_f32_2d *in1").
		Entry("scale", "struct futhark_f32_2d **out0, const float in0, const struct futhark_f32_2d *in1").
		Entry("sum", "int64_t *out0, const struct futhark_i64_1d *in0").
		String()
}

const headerPreamble = `#pragma once

// Headers

#include <stdint.h>
#include <stddef.h>
#include <stdbool.h>
#include <stdio.h>
#include <float.h>

#ifdef __cplusplus
extern "C" {
#endif

// Initialisation

struct futhark_context_config;
struct futhark_context_config *futhark_context_config_new(void);
void futhark_context_config_free(struct futhark_context_config *cfg);
void futhark_context_config_set_debugging(struct futhark_context_config *cfg, int flag);
struct futhark_context;
struct futhark_context *futhark_context_new(struct futhark_context_config *cfg);
void futhark_context_free(struct futhark_context *ctx);
int futhark_context_sync(struct futhark_context *ctx);
char *futhark_context_get_error(struct futhark_context *ctx);
`

const headerEpilogue = `
// Miscellaneous
#define FUTHARK_SUCCESS 0
#define FUTHARK_PROGRAM_ERROR 2
#define FUTHARK_OUT_OF_MEMORY 3

#ifdef __cplusplus
}
#endif
`
