package linker

import (
	"debug/elf"

	"github.com/soldlinker/sold/pkg/utils"
)

// SymbolKind tags the variant payload a Symbol currently carries. A cell
// starts as PlaceholderKind when it is inserted before any occurrence has
// been applied (e.g. by --trace-symbol).
type SymbolKind uint8

const (
	PlaceholderKind SymbolKind = iota
	DefinedKind
	UndefinedKind
	SharedKind
	LazyArchiveKind
	LazyObjectKind
)

func (k SymbolKind) String() string {
	switch k {
	case PlaceholderKind:
		return "placeholder"
	case DefinedKind:
		return "defined"
	case UndefinedKind:
		return "undefined"
	case SharedKind:
		return "shared"
	case LazyArchiveKind:
		return "lazy-archive"
	case LazyObjectKind:
		return "lazy-object"
	}
	return "unknown"
}

// UnknownType means no non-lazy occurrence has told us the symbol's type
// yet. Lazy symbols normally carry it, unless a weak undefined was seen
// first, in which case the original type is kept so later occurrences can
// still be checked for mismatches.
const UnknownType elf.SymType = 255

// Defined is the payload of a symbol defined in the output. Section is nil
// for absolute and common symbols.
type Defined struct {
	Value   uint64
	Size    uint64
	Section *InputSection
}

// Shared is the payload of a symbol that originates in a shared library.
type Shared struct {
	Value        uint64
	Size         uint64
	Alignment    uint32
	VerdefIndex  uint32
	CopyRelSec   *InputSection
	NeedsPltAddr bool
}

// LazyArchive points at an archive member that would define the symbol if
// it were fetched.
type LazyArchive struct {
	Member *ArchiveMember
}

// LazyObject points at a deferred object collected between --start-lib and
// --end-lib.
type LazyObject struct {
	File *LazyObjectFile
}

// Symbol is the address-stable cell holding one name's resolution state.
// A cell is created the first time its name is seen and lives for the whole
// link; resolution changes its kind and payload in place, never its address.
// Fields above the kind tag survive every kind transition.
type Symbol struct {
	Name string

	// The file of the current winning occurrence. Overwritten on each
	// kind transition; nil for placeholders and synthesized symbols.
	File *File

	Binding    elf.SymBind
	Type       elf.SymType
	Visibility elf.SymVis // minimum over all non-shared-library sightings

	VerIdx uint16

	UsedInRegularObj bool
	ExportDynamic    bool
	CanInline        bool
	Traced           bool
	InVersionScript  bool

	DynsymIdx OptIndex
	GotIdx    OptIndex
	GotPltIdx OptIndex
	PltIdx    OptIndex
	TlsGotIdx OptIndex

	kind        SymbolKind
	defined     Defined
	shared      Shared
	lazyArchive LazyArchive
	lazyObject  LazyObject

	// Set for cells created by the linker itself. A reserved cell may not
	// be redefined by an input file.
	synthetic bool
	reserved  bool
}

func NewSymbol(name string) *Symbol {
	return &Symbol{
		Name:       name,
		Binding:    elf.STB_GLOBAL,
		Type:       UnknownType,
		Visibility: elf.STV_DEFAULT,
		CanInline:  true,
		kind:       PlaceholderKind,
	}
}

func (s *Symbol) Kind() SymbolKind { return s.kind }

func (s *Symbol) IsPlaceholder() bool { return s.kind == PlaceholderKind }
func (s *Symbol) IsDefined() bool     { return s.kind == DefinedKind }
func (s *Symbol) IsUndefined() bool   { return s.kind == UndefinedKind }
func (s *Symbol) IsShared() bool      { return s.kind == SharedKind }

func (s *Symbol) IsLazy() bool {
	return s.kind == LazyArchiveKind || s.kind == LazyObjectKind
}

func (s *Symbol) IsWeak() bool  { return s.Binding == elf.STB_WEAK }
func (s *Symbol) IsLocal() bool { return s.Binding == elf.STB_LOCAL }

// IsUndefWeak reports whether this is a weak undefined symbol. A lazy
// symbol whose binding has been forced to weak counts: it records that a
// weak undefined and a lazy candidate were both seen, and must not satisfy
// a definedness check on its own.
func (s *Symbol) IsUndefWeak() bool {
	return s.IsWeak() && (s.IsUndefined() || s.IsLazy())
}

func (s *Symbol) Defined() *Defined {
	utils.Assert(s.kind == DefinedKind)
	return &s.defined
}

func (s *Symbol) Shared() *Shared {
	utils.Assert(s.kind == SharedKind)
	return &s.shared
}

func (s *Symbol) LazyArchive() *LazyArchive {
	utils.Assert(s.kind == LazyArchiveKind)
	return &s.lazyArchive
}

func (s *Symbol) LazyObject() *LazyObject {
	utils.Assert(s.kind == LazyObjectKind)
	return &s.lazyObject
}

// replaceVariant is the single transition point for a cell's kind. It
// rebuilds the payload over the same storage and leaves the accumulated
// resolution state (visibility, version id, flags, index slots) untouched,
// so every reference held to the cell observes the new kind afterwards.
func (s *Symbol) replaceVariant(ctx *Context, kind SymbolKind, file *File,
	binding elf.SymBind, typ elf.SymType) {
	old := s.kind

	s.kind = kind
	s.File = file
	s.Binding = binding
	s.Type = typ

	s.defined = Defined{}
	s.shared = Shared{}
	s.lazyArchive = LazyArchive{}
	s.lazyObject = LazyObject{}

	if s.Traced {
		printTraceSymbol(ctx, s, old)
	}
}

func (s *Symbol) ReplaceWithDefined(ctx *Context, file *File,
	binding elf.SymBind, typ elf.SymType, d Defined) {
	s.replaceVariant(ctx, DefinedKind, file, binding, typ)
	s.defined = d
}

func (s *Symbol) ReplaceWithUndefined(ctx *Context, file *File,
	binding elf.SymBind, typ elf.SymType) {
	s.replaceVariant(ctx, UndefinedKind, file, binding, typ)
}

// ReplaceWithShared retypes GNU ifunc symbols to plain functions: a DSO
// ifunc is always called through its PLT slot, so within resolution it
// behaves like any other function.
func (s *Symbol) ReplaceWithShared(ctx *Context, file *File,
	binding elf.SymBind, typ elf.SymType, sh Shared) {
	if typ == STT_GNU_IFUNC {
		typ = elf.STT_FUNC
		sh.NeedsPltAddr = true
	}
	s.replaceVariant(ctx, SharedKind, file, binding, typ)
	s.shared = sh
}

func (s *Symbol) ReplaceWithLazyArchive(ctx *Context, file *File,
	typ elf.SymType, member *ArchiveMember) {
	s.replaceVariant(ctx, LazyArchiveKind, file, elf.STB_GLOBAL, typ)
	s.lazyArchive = LazyArchive{Member: member}
}

func (s *Symbol) ReplaceWithLazyObject(ctx *Context, file *File,
	typ elf.SymType, lobj *LazyObjectFile) {
	s.replaceVariant(ctx, LazyObjectKind, file, elf.STB_GLOBAL, typ)
	s.lazyObject = LazyObject{File: lobj}
}

// ComputeBinding is the binding written to the output symbol table. It is
// independent of the resolution kind and only meaningful once resolution
// has reached its fixed point.
func (s *Symbol) ComputeBinding() elf.SymBind {
	if s.Visibility != elf.STV_DEFAULT && s.Visibility != elf.STV_PROTECTED {
		return elf.STB_LOCAL
	}
	if s.VerIdx == VER_NDX_LOCAL && s.IsDefined() {
		return elf.STB_LOCAL
	}
	if s.Binding == elf.STB_WEAK {
		return elf.STB_WEAK
	}
	return s.Binding
}

// IncludeInDynsym reports whether the symbol must appear in the dynamic
// symbol table. Consulted only after the fixed point.
func (s *Symbol) IncludeInDynsym(ctx *Context) bool {
	if s.Visibility == elf.STV_HIDDEN || s.Visibility == elf.STV_INTERNAL {
		return false
	}
	if s.ExportDynamic || ctx.Arg.ExportDynamic || s.IsShared() {
		return true
	}
	return (ctx.Arg.Shared || ctx.Arg.Pie) && s.UsedInRegularObj
}

func (s *Symbol) fileName() string {
	if s.File == nil {
		return "<internal>"
	}
	return s.File.DisplayName()
}
