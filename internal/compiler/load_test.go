package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/ir"
)

const labDialects = `
dialect: "gcm-lab": {
	profile: "amortized-gcm"
	rules: [
		{kind: "KeygenStart", contains: ["Generating keys"]},
		{kind: "SessionSetupEnd", contains: ["session up"]},
	]
}
dialect: "bp-lab": {
	profile: "basepaper-amortized"
	rules: [{kind: "VerifyEnd", contains: ["verified"]}]
	renewal_threshold: 5
}
`

func writeCUE(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadDialects_File(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "lab.cue", labDialects)

	res, errs := LoadDialects(path, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, res.Dialects, 2)
	assert.Equal(t, 1, res.FileCount)

	assert.Equal(t, "bp-lab", res.Dialects[0].Dialect.Name, "sorted by name")
	assert.Equal(t, "gcm-lab", res.Dialects[1].Dialect.Name)

	spec, ok := res.Lookup("bp-lab")
	require.True(t, ok)
	assert.Equal(t, ir.VariantBasepaper, spec.Profile)
	assert.Equal(t, 5, spec.RenewalThreshold)

	_, ok = res.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadResult_Select(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "lab.cue", labDialects)
	res, errs := LoadDialects(path, LoadModeFailFast)
	require.Empty(t, errs)

	spec, err := res.Select("gcm-lab")
	require.NoError(t, err)
	assert.Equal(t, ir.VariantAmortizedGCM, spec.Profile)

	_, err = res.Select("")
	assert.ErrorContains(t, err, "2 dialects loaded")

	_, err = res.Select("missing")
	assert.ErrorContains(t, err, `dialect "missing" not found`)

	single := &LoadResult{Dialects: res.Dialects[:1]}
	spec, err = single.Select("")
	require.NoError(t, err)
	assert.Equal(t, "bp-lab", spec.Dialect.Name)
}

func TestLoadDialects_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", `
dialect: one: {
	profile: "amortized-gcm"
	rules: [{kind: "KeygenStart", contains: ["keys"]}]
}
`)
	writeCUE(t, dir, "b.cue", `
dialect: two: {
	profile: "unamortized-baseline"
	rules: [{kind: "AuthTimeout", contains: ["timed out"]}]
}
`)

	res, errs := LoadDialects(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)
	require.Len(t, res.Dialects, 2)
	assert.Equal(t, "one", res.Dialects[0].Dialect.Name)
	assert.Equal(t, "two", res.Dialects[1].Dialect.Name)
}

func TestLoadDialects_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing path",
			setup:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.cue") },
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "empty directory",
			setup:    func(t *testing.T) string { return t.TempDir() },
			wantCode: ErrCodeNoFiles,
		},
		{
			name: "syntax error",
			setup: func(t *testing.T) string {
				return writeCUE(t, t.TempDir(), "bad.cue", "dialect: {")
			},
			wantCode: ErrCodeBuildFailed,
		},
		{
			name: "no dialect struct",
			setup: func(t *testing.T) string {
				return writeCUE(t, t.TempDir(), "other.cue", `profile: "amortized-gcm"`)
			},
			wantCode: ErrCodeGeneric,
		},
		{
			name: "unknown profile",
			setup: func(t *testing.T) string {
				return writeCUE(t, t.TempDir(), "p.cue", `
dialect: x: {
	profile: "nope"
	rules: [{kind: "KeygenStart", contains: ["keys"]}]
}
`)
			},
			wantCode: ErrCodeCompileProfile,
		},
		{
			name: "shadowed rule",
			setup: func(t *testing.T) string {
				return writeCUE(t, t.TempDir(), "r.cue", `
dialect: x: {
	profile: "amortized-gcm"
	rules: [
		{kind: "VerifyStart", contains: ["Verifying"]},
		{kind: "VerifyEnd", contains: ["Verifying signature done"]},
	]
}
`)
			},
			wantCode: ErrShadowedRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadDialects(tt.setup(t), LoadModeFailFast)
			require.NotEmpty(t, errs)

			var le *LoadError
			require.True(t, errors.As(errs[0], &le), "got %T: %v", errs[0], errs[0])
			assert.Equal(t, tt.wantCode, le.Code, le.Error())
		})
	}
}

func TestLoadDialects_CollectAll(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "mixed.cue", `
dialect: bad1: {
	profile: "nope"
	rules: [{kind: "KeygenStart", contains: ["keys"]}]
}
dialect: bad2: {
	profile: "amortized-gcm"
	rules: [{kind: "NotAKind", contains: ["x"]}]
}
dialect: good: {
	profile: "amortized-gcm"
	rules: [{kind: "KeygenStart", contains: ["keys"]}]
}
`)

	res, errs := LoadDialects(path, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	require.NotNil(t, res)
	require.Len(t, res.Dialects, 1)
	assert.Equal(t, "good", res.Dialects[0].Dialect.Name)

	_, errs = LoadDialects(path, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"profile", ErrCodeCompileProfile},
		{"rules", ErrCodeCompileRule},
		{"rules[2].kind", ErrCodeCompileRule},
		{"rules[0].default_bytes", ErrCodeCompileType},
		{"thresholds.min_received", ErrCodeCompileType},
		{"renewal_threshold", ErrCodeCompileType},
		{"cue", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeGeneric, Message: "boom"}
	assert.Equal(t, "E001: boom", err.Error())
}
