package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportedName(t *testing.T) {
	tests := map[string]string{
		"add":        "Add",
		"sum_rows":   "SumRows",
		"matmul":     "Matmul",
		"_private":   "Private",
		"a__b":       "AB",
		"camelCase":  "CamelCase",
		"to_RGB":     "ToRGB",
		"__":         "Entry",
		"x_y_z_long": "XYZLong",
	}
	for in, want := range tests {
		assert.Equal(t, want, exportedName(in), in)
	}
}

func TestNamerClaim(t *testing.T) {
	n := newNamer("ctx")
	assert.Equal(t, "in0", n.claim("in0", "Arg"))
	assert.Equal(t, "in0Arg", n.claim("in0", "Arg"))
	assert.Equal(t, "in0Arg2", n.claim("in0", "Arg"))
	assert.Equal(t, "ctxArg", n.claim("ctx", "Arg"))
	assert.Equal(t, "funcArg", n.claim("func", "Arg"), "keywords are never returned")
}
