package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genfut/internal/abi"
)

func validModel() *abi.Model {
	return &abi.Model{
		Backend:    abi.BackendC,
		ArrayTypes: []abi.ArrayType{{Name: "futhark_i32_1d", Element: abi.I32, Rank: 1}},
		EntryPoints: []abi.EntryPoint{{
			Name: "sum",
			Params: []abi.Param{
				{Name: "ctx", Direction: abi.In, Kind: abi.KindContext, CType: "struct futhark_context *"},
				{Name: "out0", Direction: abi.Out, Kind: abi.KindScalar, CType: "int32_t *", Element: abi.I32},
				{Name: "in0", Direction: abi.In, Kind: abi.KindArray, CType: "const struct futhark_i32_1d *", Element: abi.I32, ArrayType: "futhark_i32_1d"},
			},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidModel(t *testing.T) {
	assert.Empty(t, Validate(validModel()))
}

func TestValidateNilModel(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNilModel, errs[0].Code)
}

func TestValidateNoEntryPoints(t *testing.T) {
	m := validModel()
	m.EntryPoints = nil
	assert.Equal(t, []string{ErrNoEntryPoints}, codes(Validate(m)))
}

func TestValidateArrayTypes(t *testing.T) {
	m := validModel()
	m.ArrayTypes = append(m.ArrayTypes,
		abi.ArrayType{Name: "futhark_i32_1d", Element: abi.I32, Rank: 1},
		abi.ArrayType{Name: "futhark_x_0d", Element: "x", Rank: 0},
	)
	errs := Validate(m)
	assert.ElementsMatch(t, []string{ErrDuplicateArray, ErrInvalidRank, ErrInvalidElement}, codes(errs))
}

func TestValidateContextMustBeFirst(t *testing.T) {
	m := validModel()
	ps := m.EntryPoints[0].Params
	ps[0], ps[1] = ps[1], ps[0]
	errs := Validate(m)
	assert.Contains(t, codes(errs), ErrContextNotFirst)
}

func TestValidateUnknownArrayRef(t *testing.T) {
	m := validModel()
	m.EntryPoints[0].Params[2].ArrayType = "futhark_i32_9d"
	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownArrayRef, errs[0].Code)
	assert.Equal(t, "entry_points[0].params[2].array_type", errs[0].Field)
}

func TestValidateElementMismatch(t *testing.T) {
	m := validModel()
	m.EntryPoints[0].Params[2].Element = abi.I64
	assert.Equal(t, []string{ErrElementMismatch}, codes(Validate(m)))
}

func TestValidateDuplicates(t *testing.T) {
	m := validModel()
	m.EntryPoints = append(m.EntryPoints, m.EntryPoints[0])
	m.EntryPoints[0].Params = append(m.EntryPoints[0].Params, m.EntryPoints[0].Params[1])
	errs := Validate(m)
	assert.Contains(t, codes(errs), ErrDuplicateEntry)
	assert.Contains(t, codes(errs), ErrDuplicateParam)
}

func TestValidateEntryNames(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"sum", true},
		{"sum_rows", true},
		{"_private", true},
		{"type", true},
		{"range", true},
		{"", false},
		{"1st", false},
		{"sum-rows", false},
		{"naïve", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			m.EntryPoints[0].Name = tt.name
			errs := Validate(m)
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.Equal(t, []string{ErrInvalidEntryName}, codes(errs))
			}
		})
	}
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "entry_points[0].name", Message: "bad", Code: ErrInvalidEntryName}
	assert.Equal(t, "[E115] entry_points[0].name: bad", e.Error())
	e.Line = 7
	assert.Equal(t, "[E115] line 7: entry_points[0].name: bad", e.Error())
}
