package rules_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anubis-build/anubis/internal/core/ports"
)

func TestNasmObjects_AssemblesInParallelAndFeedsLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "asm/ANUBIS", `
nasm_objects(
    name = "mathops",
    srcs = ["add.asm", "mul.asm"],
)
`)
	p.write(t, "ANUBIS", `cpp_binary(name = "hi", srcs = ["main.cpp"], deps = ["//asm:mathops"])`)

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			log.add(argv)
			return ports.ToolResult{}, nil
		}).AnyTimes()

	require.NoError(t, p.build(t, "//mode:linux_dev", "//:hi", 4))

	assembles := 0
	var link []string
	for _, argv := range log.snapshot() {
		switch {
		case argv[0] == "/opt/nasm":
			assembles++
			assert.True(t, hasArg(argv, "-f"), "assembler gets the output format")
			assert.True(t, hasArg(argv, "win64"))
		case argv[0] == "/opt/cc" && !isCompile(argv):
			link = argv
		}
	}
	assert.Equal(t, 2, assembles, "one assemble job per source")

	require.NotNil(t, link)
	addObj := filepath.Join(p.root, ".anubis-build", "linux_dev", "asm", "add.o")
	mulObj := filepath.Join(p.root, ".anubis-build", "linux_dev", "asm", "mul.o")
	assert.True(t, hasArg(link, addObj), "nasm objects are link inputs")
	assert.True(t, hasArg(link, mulObj))
}
