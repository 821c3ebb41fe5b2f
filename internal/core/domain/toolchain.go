package domain

// Toolchain bundles the per-language tool records, each field already
// resolved under the active mode.
type Toolchain struct {
	Name string        `papyrus:"name,required"`
	Cpp  CcToolchain   `papyrus:"cpp,type=CcToolchain"`
	Nasm NasmToolchain `papyrus:"nasm,type=NasmToolchain"`

	// Target is the address the toolchain was loaded from; set by the
	// registry, never by projection.
	Target Target `papyrus:"-"`
}

// CcToolchain describes how to drive a C/C++ compiler family.
type CcToolchain struct {
	Compiler          string   `papyrus:"compiler"`
	CompilerFlags     []string `papyrus:"compiler_flags"`
	Linker            string   `papyrus:"linker"`
	LinkerFlags       []string `papyrus:"linker_flags"`
	Archiver          string   `papyrus:"archiver"`
	SystemIncludeDirs []string `papyrus:"system_include_dirs"`
	LibraryDirs       []string `papyrus:"library_dirs"`
	Libraries         []string `papyrus:"libraries"`
	Defines           []string `papyrus:"defines"`
}

// LinkDriver returns the executable used for the link step. Toolchains
// that drive linking through the compiler front-end leave Linker empty.
func (c *CcToolchain) LinkDriver() string {
	if c.Linker != "" {
		return c.Linker
	}
	return c.Compiler
}

// NasmToolchain describes a NASM-style assembler.
type NasmToolchain struct {
	Assembler    string `papyrus:"assembler"`
	OutputFormat string `papyrus:"output_format"`
}
