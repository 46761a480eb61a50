package linker

import (
	"os"

	"github.com/soldlinker/sold/pkg/utils"
	"github.com/spf13/afero"
)

type ContextArg struct {
	Output string

	LibraryPaths []string

	Shared        bool
	Pie           bool
	ExportDynamic bool

	AllowMultipleDefinition bool
	FatalWarnings           bool

	TraceSymbols []string
	PrintMap     bool
}

// Context owns everything belonging to one link session: the symbol table,
// the input files, the diagnostics sink, and the synthesized-symbol
// registry. There is no ambient global state; two sessions never share a
// cell.
type Context struct {
	Arg ContextArg

	FS    afero.Fs
	Diags *Diags

	Symtab *SymbolTable

	Objs        []*ObjectFile
	SharedFiles []*SharedFile
	Archives    []*ArchiveFile
	LazyObjs    []*LazyObjectFile

	Synthetic *SyntheticSymbols

	FilePriority uint32
	Visited      utils.MapSet[string]

	DefaultVersion uint16
}

func NewContext() *Context {
	return &Context{
		Arg: ContextArg{
			Output: "a.out",
		},
		FS:             afero.NewOsFs(),
		Diags:          NewDiags(os.Stderr),
		Symtab:         NewSymbolTable(),
		Visited:        utils.NewMapSet[string](),
		FilePriority:   10000,
		DefaultVersion: VER_NDX_GLOBAL,
	}
}
