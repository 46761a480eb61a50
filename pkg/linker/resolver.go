package linker

import (
	"debug/elf"
	"fmt"
)

// Occurrence is one sighting of a name in an input file, as produced by
// the file parsers. Occurrences are applied to the table strictly in link
// order; only the fields matching Kind are meaningful.
type Occurrence struct {
	Name       string
	Kind       SymbolKind
	Binding    elf.SymBind
	Type       elf.SymType
	Visibility elf.SymVis
	File       *File

	// DefinedKind, SharedKind
	Value   uint64
	Size    uint64
	Section *InputSection

	// SharedKind
	Alignment   uint32
	VerdefIndex uint32

	// LazyArchiveKind
	Member *ArchiveMember

	// LazyObjectKind
	Lazy *LazyObjectFile
}

type deferredDiag struct {
	msg     string
	warning bool
}

// SymbolTable maps names to their stable cells. Cells are created on first
// sighting and never removed, so a pointer obtained from Insert stays valid
// for the whole link. Resolution conflicts are accumulated here and flushed
// once scanning is done, so one run reports every conflict in the build.
type SymbolTable struct {
	symbols map[string]*Symbol
	order   []*Symbol

	deferred []deferredDiag
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

func (t *SymbolTable) Insert(name string) *Symbol {
	if s, ok := t.symbols[name]; ok {
		return s
	}
	s := NewSymbol(name)
	t.symbols[name] = s
	t.order = append(t.order, s)
	return s
}

func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.symbols[name]
}

func (t *SymbolTable) Len() int { return len(t.order) }

// ForEach visits cells in insertion order, which is deterministic for a
// given link line.
func (t *SymbolTable) ForEach(fn func(*Symbol)) {
	for _, s := range t.order {
		fn(s)
	}
}

// TraceSymbol marks a name for transition tracing before any input file
// mentions it.
func (t *SymbolTable) TraceSymbol(name string) *Symbol {
	s := t.Insert(name)
	s.Traced = true
	return s
}

// Resolve applies one occurrence. Fetch failures are returned immediately;
// every other conflict is accumulated for the final report.
func (t *SymbolTable) Resolve(ctx *Context, o *Occurrence) error {
	switch o.Kind {
	case DefinedKind:
		t.AddDefined(ctx, o.File, o.Name, o.Binding, o.Visibility, o.Type,
			Defined{Value: o.Value, Size: o.Size, Section: o.Section})
		return nil
	case UndefinedKind:
		_, err := t.AddUndefined(ctx, o.File, o.Name, o.Binding, o.Visibility, o.Type)
		return err
	case SharedKind:
		t.AddShared(ctx, o.File, o.Name, o.Binding, o.Type, Shared{
			Value:       o.Value,
			Size:        o.Size,
			Alignment:   o.Alignment,
			VerdefIndex: o.VerdefIndex,
		})
		return nil
	case LazyArchiveKind:
		_, err := t.AddLazyArchive(ctx, o.File, o.Name, o.Member)
		return err
	case LazyObjectKind:
		_, err := t.AddLazyObject(ctx, o.File, o.Name, o.Lazy)
		return err
	}
	return fmt.Errorf("%s: bad occurrence kind for %s", o.File.DisplayName(), o.Name)
}

// ResolveFile feeds every occurrence of a freshly parsed file through the
// table. Used both for files on the link line and for fetched members.
func (t *SymbolTable) ResolveFile(ctx *Context, obj *ObjectFile) error {
	for i := range obj.Occs {
		if err := t.Resolve(ctx, &obj.Occs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *SymbolTable) AddDefined(ctx *Context, file *File, name string,
	binding elf.SymBind, vis elf.SymVis, typ elf.SymType, d Defined) *Symbol {
	s := t.Insert(name)
	mergeVisibility(s, vis)
	s.UsedInRegularObj = true

	replace := func() {
		t.checkType(ctx, s, file, typ)
		s.ReplaceWithDefined(ctx, file, binding, typ, d)
		if !s.InVersionScript {
			s.VerIdx = ctx.DefaultVersion
		}
		s.synthetic = false
	}

	if !s.IsDefined() {
		replace()
		return s
	}

	oldWeak := s.IsWeak()
	newWeak := binding == elf.STB_WEAK
	switch {
	case oldWeak && !newWeak:
		if s.reserved {
			t.reportDuplicate(ctx, s, file)
			return s
		}
		replace()
	case !oldWeak && !newWeak:
		// Between two weak definitions or a kept strong and a new weak,
		// the first occurrence wins. Two strongs are a user error.
		t.reportDuplicate(ctx, s, file)
	}
	return s
}

func (t *SymbolTable) AddUndefined(ctx *Context, file *File, name string,
	binding elf.SymBind, vis elf.SymVis, typ elf.SymType) (*Symbol, error) {
	s := t.Insert(name)
	mergeVisibility(s, vis)

	if s.IsPlaceholder() {
		s.ReplaceWithUndefined(ctx, file, binding, typ)
		s.UsedInRegularObj = true
		return s, nil
	}

	s.UsedInRegularObj = true

	switch {
	case s.IsUndefined():
		// A strict reference upgrades a weak one; weak never downgrades.
		if s.IsWeak() && binding != elf.STB_WEAK {
			s.Binding = binding
			s.File = file
		}
		if s.Type == UnknownType {
			s.Type = typ
		}
	case s.IsShared():
		if binding != elf.STB_WEAK {
			s.Binding = binding
		}
	case s.IsLazy():
		if binding == elf.STB_WEAK {
			// A weak undefined reference alone must not pull in an
			// archive member, but the lazy candidate is remembered with
			// its binding forced to weak.
			s.Binding = elf.STB_WEAK
		} else if err := t.fetchLazy(ctx, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// AddShared records a definition coming from a shared library. Regular and
// archive definitions always outrank dynamic ones, so an existing Defined
// or Lazy cell is left alone.
func (t *SymbolTable) AddShared(ctx *Context, file *File, name string,
	binding elf.SymBind, typ elf.SymType, sh Shared) *Symbol {
	s := t.Insert(name)

	if s.IsPlaceholder() || s.IsUndefined() {
		bind := binding
		if s.IsUndefined() && s.IsWeak() {
			// An undefined weak is still weak when it resolves to a
			// shared library.
			bind = elf.STB_WEAK
		}
		t.checkType(ctx, s, file, typ)
		s.ReplaceWithShared(ctx, file, bind, typ, sh)
	}
	return s
}

func (t *SymbolTable) AddLazyArchive(ctx *Context, file *File, name string,
	m *ArchiveMember) (*Symbol, error) {
	s := t.Insert(name)

	if s.IsPlaceholder() {
		s.ReplaceWithLazyArchive(ctx, file, UnknownType, m)
		return s, nil
	}
	if s.IsUndefined() {
		if s.IsWeak() {
			// Keep the type observed on the weak undefined so later
			// occurrences can still be checked against it.
			typ := s.Type
			s.ReplaceWithLazyArchive(ctx, file, typ, m)
			s.Binding = elf.STB_WEAK
			return s, nil
		}
		// A strict reference is already waiting. The cell stays
		// Undefined; the member's own definition replaces it when its
		// occurrences are fed back through the table.
		return s, t.fetchMember(ctx, m)
	}
	// First lazy candidate wins; an existing definition, shared or
	// regular, always wins.
	return s, nil
}

func (t *SymbolTable) AddLazyObject(ctx *Context, file *File, name string,
	lobj *LazyObjectFile) (*Symbol, error) {
	s := t.Insert(name)

	if s.IsPlaceholder() {
		s.ReplaceWithLazyObject(ctx, file, UnknownType, lobj)
		return s, nil
	}
	if s.IsUndefined() {
		if s.IsWeak() {
			typ := s.Type
			s.ReplaceWithLazyObject(ctx, file, typ, lobj)
			s.Binding = elf.STB_WEAK
			return s, nil
		}
		return s, t.fetchLazyObject(ctx, lobj)
	}
	return s, nil
}

// AddSynthetic creates one linker-defined cell. The value is filled in by
// layout; resolution only fixes the identity. Synthesized definitions are
// weak so an explicit strong user definition wins, except for reserved
// names, which may not be redefined at all.
func (t *SymbolTable) AddSynthetic(ctx *Context, name string,
	vis elf.SymVis, reserved bool) *Symbol {
	s := t.Insert(name)

	if s.IsDefined() && !s.synthetic {
		if reserved {
			t.deferError(fmt.Sprintf(
				"duplicate symbol: %s\n>>> %s is reserved for the linker\n>>> defined in %s",
				s.Name, s.Name, s.fileName()))
		}
		// The user definition stands.
		return s
	}

	s.ReplaceWithDefined(ctx, nil, elf.STB_WEAK, elf.STT_NOTYPE, Defined{})
	mergeVisibility(s, vis)
	s.VerIdx = ctx.DefaultVersion
	s.synthetic = true
	s.reserved = reserved
	return s
}

func (t *SymbolTable) fetchLazy(ctx *Context, s *Symbol) error {
	switch s.kind {
	case LazyArchiveKind:
		return t.fetchMember(ctx, s.lazyArchive.Member)
	case LazyObjectKind:
		return t.fetchLazyObject(ctx, s.lazyObject.File)
	}
	return nil
}

func (t *SymbolTable) fetchMember(ctx *Context, m *ArchiveMember) error {
	obj, err := m.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s: could not load archive member %s: %w",
			m.Parent.File.Name, m.Name, err)
	}
	if obj == nil {
		// Already fetched; its definitions are in the table.
		return nil
	}
	return t.ResolveFile(ctx, obj)
}

func (t *SymbolTable) fetchLazyObject(ctx *Context, lobj *LazyObjectFile) error {
	obj, err := lobj.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s: could not load deferred object: %w",
			lobj.File.Name, err)
	}
	if obj == nil {
		return nil
	}
	return t.ResolveFile(ctx, obj)
}

func (t *SymbolTable) reportDuplicate(ctx *Context, s *Symbol, file *File) {
	msg := fmt.Sprintf("duplicate symbol: %s\n>>> defined in %s\n>>> defined in %s",
		s.Name, s.fileName(), file.DisplayName())
	if ctx.Arg.AllowMultipleDefinition {
		t.deferWarning(msg)
		return
	}
	t.deferError(msg)
}

// checkType flags a symbol whose type changes between occurrences. Unknown
// and untyped sightings are exempt; changing TLS-ness is never benign.
func (t *SymbolTable) checkType(ctx *Context, s *Symbol, file *File, typ elf.SymType) {
	old := s.Type
	if old == UnknownType || typ == UnknownType || old == typ {
		return
	}
	if old == elf.STT_NOTYPE || typ == elf.STT_NOTYPE {
		return
	}

	msg := fmt.Sprintf("symbol type mismatch: %s\n>>> %s in %s\n>>> %s in %s",
		s.Name, old, s.fileName(), typ, file.DisplayName())
	if (old == elf.STT_TLS) != (typ == elf.STT_TLS) {
		t.deferError(msg)
		return
	}
	t.deferWarning(msg)
}

func (t *SymbolTable) deferError(msg string) {
	t.deferred = append(t.deferred, deferredDiag{msg: msg})
}

func (t *SymbolTable) deferWarning(msg string) {
	t.deferred = append(t.deferred, deferredDiag{msg: msg, warning: true})
}

// FlushDeferred replays the accumulated resolution diagnostics, in the
// deterministic order scanning produced them.
func (t *SymbolTable) FlushDeferred(ctx *Context) {
	for _, d := range t.deferred {
		if d.warning && !ctx.Arg.FatalWarnings {
			ctx.Diags.Warnf("%s", d.msg)
		} else {
			ctx.Diags.Errorf("%s", d.msg)
		}
	}
	t.deferred = nil
}

// ReportUnresolved collects every name still strictly undefined once no
// further input or fetch can change it, and reports them together.
func (t *SymbolTable) ReportUnresolved(ctx *Context) {
	for _, s := range t.order {
		if s.IsUndefined() && !s.IsWeak() && s.UsedInRegularObj {
			ctx.Diags.Errorf("undefined symbol: %s\n>>> referenced by %s",
				s.Name, s.fileName())
		}
	}
}

// ClaimUnresolved turns the remaining weak undefined (and remembered-lazy)
// cells into absolute zero definitions. Runs after the unresolved report,
// never before: it must not mask a missing strict definition.
func (t *SymbolTable) ClaimUnresolved(ctx *Context) {
	for _, s := range t.order {
		if s.IsUndefWeak() {
			s.ReplaceWithDefined(ctx, s.File, elf.STB_WEAK, s.Type, Defined{})
		}
	}
}

func mergeVisibility(s *Symbol, vis elf.SymVis) {
	if vis == elf.STV_INTERNAL {
		vis = elf.STV_HIDDEN
	}
	if visPriority(vis) < visPriority(s.Visibility) {
		s.Visibility = vis
	}
}

func visPriority(vis elf.SymVis) int {
	switch vis {
	case elf.STV_HIDDEN:
		return 1
	case elf.STV_PROTECTED:
		return 2
	default:
		return 3
	}
}
