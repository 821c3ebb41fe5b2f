package papyrus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/papyrus"
)

func TestParseFile_SimpleBinary(t *testing.T) {
	src := `
cpp_binary(
    name = "hi",
    srcs = ["main.cpp"],
    deps = [],
)
`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)
	require.Len(t, file.Elems, 1)

	obj := file.Elems[0]
	assert.Equal(t, papyrus.ObjectKind, obj.Kind)
	assert.Equal(t, "cpp_binary", obj.Str)
	assert.Equal(t, "hi", obj.Field("name").Str)

	srcs := obj.Field("srcs")
	require.Equal(t, papyrus.ArrayKind, srcs.Kind)
	require.Len(t, srcs.Elems, 1)
	assert.Equal(t, "main.cpp", srcs.Elems[0].Str)

	deps := obj.Field("deps")
	require.Equal(t, papyrus.ArrayKind, deps.Kind)
	assert.Empty(t, deps.Elems)
}

func TestParseFile_MultipleObjectsPreserveOrder(t *testing.T) {
	src := `
mode(name = "a", vars = {})
mode(name = "b", vars = {})
mode(name = "c", vars = {})
`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)
	require.Len(t, file.Elems, 3)
	assert.Equal(t, "a", file.Elems[0].Field("name").Str)
	assert.Equal(t, "b", file.Elems[1].Field("name").Str)
	assert.Equal(t, "c", file.Elems[2].Field("name").Str)
}

func TestParseFile_MissingName(t *testing.T) {
	_, err := papyrus.ParseFile(`cpp_binary(srcs = ["x.cpp"])`, "ANUBIS")
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestParseFile_DuplicateName(t *testing.T) {
	src := `
cpp_binary(name = "hi", srcs = ["a.cpp"])
cpp_binary(name = "hi", srcs = ["b.cpp"])
`
	_, err := papyrus.ParseFile(src, "ANUBIS")
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestParseFile_ConcatChain(t *testing.T) {
	src := `rule(name = "x", flags = ["-O2"] + ["-g"] + ["-Wall"])`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	flags := file.Elems[0].Field("flags")
	// Left-associative: ((a + b) + c).
	require.Equal(t, papyrus.ConcatKind, flags.Kind)
	assert.Equal(t, papyrus.ConcatKind, flags.Left.Kind)
	assert.Equal(t, papyrus.ArrayKind, flags.Right.Kind)
}

func TestParseFile_Select(t *testing.T) {
	src := `
rule(
    name = "x",
    flags = select((target_platform, target_arch) => {
        (windows, x64) = ["-DWIN64"],
        (linux | macos, _) = ["-DPOSIX"],
        default = [],
    }),
)
`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	sel := file.Elems[0].Field("flags")
	require.Equal(t, papyrus.CallKind, sel.Kind)
	assert.Equal(t, "select", sel.Str)
	require.Len(t, sel.Elems, 2)

	keys := sel.Elems[0]
	require.Equal(t, papyrus.TupleKind, keys.Kind)
	require.Len(t, keys.Elems, 2)
	assert.Equal(t, "target_platform", keys.Elems[0].Str)

	m := sel.Elems[1]
	require.Equal(t, papyrus.MapKind, m.Kind)
	require.Len(t, m.Entries, 3)

	assert.Equal(t, []papyrus.KeyTerm{{Alts: []string{"windows"}}, {Alts: []string{"x64"}}}, m.Entries[0].Key.Terms)
	assert.Equal(t, []papyrus.KeyTerm{{Alts: []string{"linux", "macos"}}, {Any: true}}, m.Entries[1].Key.Terms)
	assert.True(t, m.Entries[2].Key.Default)
}

func TestParseFile_GlobCall(t *testing.T) {
	src := `rule(name = "x", srcs = glob(includes = ["**/*.cpp"], excludes = ["**/*_test.cpp"]))`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	g := file.Elems[0].Field("srcs")
	require.Equal(t, papyrus.CallKind, g.Kind)
	assert.Equal(t, "glob", g.Str)
	require.Len(t, g.Fields, 2)
	assert.Equal(t, "includes", g.Fields[0].Name)
	assert.Equal(t, "excludes", g.Fields[1].Name)
}

func TestParseFile_NestedObject(t *testing.T) {
	src := `
toolchain(
    name = "default",
    cpp = CcToolchain(
        compiler = "/opt/zig/zig",
        compiler_flags = ["c++"],
    ),
)
`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	cpp := file.Elems[0].Field("cpp")
	require.Equal(t, papyrus.CallKind, cpp.Kind)
	assert.Equal(t, "CcToolchain", cpp.Str)
	assert.Equal(t, "/opt/zig/zig", cpp.Fields[0].Value.Str)
}

func TestParseFile_TrailingCommasEverywhere(t *testing.T) {
	src := `
rule(
    name = "x",
    srcs = ["a.cpp", "b.cpp",],
    vars = {alpha = "1", beta = "2",},
    pair = ("one", "two",),
)
`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	obj := file.Elems[0]
	assert.Len(t, obj.Field("srcs").Elems, 2)
	assert.Len(t, obj.Field("vars").Entries, 2)
	assert.Len(t, obj.Field("pair").Elems, 2)
}

func TestParseFile_MapKeysPreserveDeclarationOrder(t *testing.T) {
	src := `rule(name = "x", vars = {zulu = "1", alpha = "2", mike = "3"})`
	file, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	entries := file.Elems[0].Field("vars").Entries
	require.Len(t, entries, 3)
	assert.Equal(t, "(zulu)", entries[0].Key.String())
	assert.Equal(t, "(alpha)", entries[1].Key.String())
	assert.Equal(t, "(mike)", entries[2].Key.String())
}

func TestParseFile_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"top-level positional arg", `cpp_binary("hi")`},
		{"unclosed call", `cpp_binary(name = "hi"`},
		{"missing equals", `cpp_binary(name "hi")`},
		{"stray token", `42`},
		{"bad map key", `rule(name = "x", m = {42 = "v"})`},
		{"duplicate argument", `rule(name = "x", srcs = [], srcs = [])`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := papyrus.ParseFile(tc.src, "ANUBIS")
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	src := `
cpp_binary(
    name = "hi",
    srcs = ["main.cpp", "util.cpp"],
    deps = [":core"],
    flags = ["-O2"] + ["-g"],
    count = 3,
    fast = true,
)
`
	first, err := papyrus.ParseFile(src, "ANUBIS")
	require.NoError(t, err)

	printed := papyrus.FormatFile(first)
	second, err := papyrus.ParseFile(printed, "printed")
	require.NoError(t, err)

	assert.True(t, papyrus.Equal(first, second), "pretty-printed file did not round-trip:\n%s", printed)
}
