package linker

import "debug/elf"

// SyntheticSymbols is the fixed registry of symbols the output file itself
// defines. The cells live in the ordinary table under ordinary resolution
// rules; layout fills in their values once addresses are known.
type SyntheticSymbols struct {
	BssStart *Symbol

	Etext  *Symbol
	Etext2 *Symbol
	Edata  *Symbol
	Edata2 *Symbol
	End    *Symbol
	End2   *Symbol

	GlobalOffsetTable *Symbol
	GlobalPointer     *Symbol
}

// AddSyntheticSymbols populates the registry. Called once per session,
// after all input files have been resolved, so a user definition seen
// during scanning keeps its win.
func AddSyntheticSymbols(ctx *Context) *SyntheticSymbols {
	add := func(name string, vis elf.SymVis, reserved bool) *Symbol {
		return ctx.Symtab.AddSynthetic(ctx, name, vis, reserved)
	}

	ctx.Synthetic = &SyntheticSymbols{
		BssStart: add("__bss_start", elf.STV_DEFAULT, false),

		Etext:  add("etext", elf.STV_DEFAULT, false),
		Etext2: add("_etext", elf.STV_DEFAULT, false),
		Edata:  add("edata", elf.STV_DEFAULT, false),
		Edata2: add("_edata", elf.STV_DEFAULT, false),
		End:    add("end", elf.STV_DEFAULT, false),
		End2:   add("_end", elf.STV_DEFAULT, false),

		GlobalOffsetTable: add("_GLOBAL_OFFSET_TABLE_", elf.STV_HIDDEN, true),
		GlobalPointer:     add("__global_pointer$", elf.STV_DEFAULT, true),
	}
	return ctx.Synthetic
}
