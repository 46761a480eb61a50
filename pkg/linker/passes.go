package linker

import (
	"debug/elf"
	"fmt"
	"io"
)

// Link runs the resolution phases in order: trace marks, input scan to the
// fetch fixed point, synthesized symbols, then the deferred diagnostics and
// the unresolved-reference report. Later phases (layout, relocation,
// output) read the table only after this returns.
func Link(ctx *Context, inputs []InputSpec) error {
	for _, name := range ctx.Arg.TraceSymbols {
		ctx.Symtab.TraceSymbol(name)
	}

	if err := ReadInputFiles(ctx, inputs); err != nil {
		return err
	}

	AddSyntheticSymbols(ctx)

	ctx.Symtab.FlushDeferred(ctx)
	ctx.Symtab.ReportUnresolved(ctx)
	if ctx.Diags.HasErrors() {
		return fmt.Errorf("link failed with %d error(s)", ctx.Diags.ErrorCount())
	}

	ctx.Symtab.ClaimUnresolved(ctx)
	return nil
}

// PrintSymbolMap writes one line per resolved global, in first-seen order.
func PrintSymbolMap(ctx *Context, w io.Writer) {
	fmt.Fprintf(w, "%-12s %-6s %-7s %s\n", "kind", "bind", "dynsym", "symbol")
	ctx.Symtab.ForEach(func(s *Symbol) {
		if s.IsPlaceholder() {
			return
		}
		dynsym := ""
		if s.IncludeInDynsym(ctx) {
			dynsym = "dynsym"
		}
		fmt.Fprintf(w, "%-12s %-6s %-7s %s\t%s\n",
			s.Kind(), bindName(s), dynsym, s.Name, s.fileName())
	})
}

func bindName(s *Symbol) string {
	switch s.ComputeBinding() {
	case elf.STB_LOCAL:
		return "local"
	case elf.STB_WEAK:
		return "weak"
	default:
		return "global"
	}
}
