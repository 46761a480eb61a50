package linker

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"

	"github.com/soldlinker/sold/pkg/utils"
)

// SharedFile is a parsed shared library. Only its exported definitions
// matter here; the library's own undefined references are the dynamic
// loader's problem, not this link's.
type SharedFile struct {
	File     *File
	SoName   string
	Priority uint32

	Occs []Occurrence

	// Interned version-definition names; a symbol's VerdefIndex points
	// into this slice. Indices 0 and 1 are the usual local/global ones.
	Versions []string
}

func NewSharedFile(file *File) (*SharedFile, error) {
	f := &SharedFile{File: file, Versions: []string{"*local*", "*global*"}}
	if err := f.parse(); err != nil {
		return nil, fmt.Errorf("%s: %w", file.DisplayName(), err)
	}
	return f, nil
}

func (f *SharedFile) parse() error {
	ef, err := elf.NewFile(bytes.NewReader(f.File.Contents))
	if err != nil {
		return err
	}
	defer ef.Close()

	if ef.Type != elf.ET_DYN {
		return fmt.Errorf("not a shared library (type %s)", ef.Type)
	}

	f.SoName = f.File.Name
	if names, err := ef.DynString(elf.DT_SONAME); err == nil && len(names) > 0 {
		f.SoName = names[0]
	}

	syms, err := ef.DynamicSymbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil
		}
		return err
	}

	for i := range syms {
		esym := &syms[i]
		bind := elf.ST_BIND(esym.Info)
		if bind == elf.STB_LOCAL || esym.Section == elf.SHN_UNDEF {
			continue
		}

		f.Occs = append(f.Occs, Occurrence{
			Name:        esym.Name,
			Kind:        SharedKind,
			Binding:     bind,
			Type:        elf.ST_TYPE(esym.Info),
			Visibility:  elf.STV_DEFAULT,
			File:        f.File,
			Value:       esym.Value,
			Size:        esym.Size,
			Alignment:   f.symAlignment(ef, esym),
			VerdefIndex: f.internVersion(esym.Version),
		})
	}
	return nil
}

// symAlignment is what a copy relocation for the symbol would have to
// honor: the owning section's alignment, tightened by the symbol's offset.
func (f *SharedFile) symAlignment(ef *elf.File, esym *elf.Symbol) uint32 {
	align := uint64(1)
	if shndx := int(esym.Section); shndx > 0 && shndx < len(ef.Sections) {
		if a := ef.Sections[shndx].Addralign; a != 0 {
			align = a
		}
	}
	if esym.Value != 0 {
		if v := uint64(1) << utils.CountrZero(esym.Value); v < align {
			align = v
		}
	}
	if align > 1<<31 {
		align = 1 << 31
	}
	return uint32(align)
}

func (f *SharedFile) internVersion(name string) uint32 {
	if name == "" {
		return uint32(VER_NDX_GLOBAL)
	}
	for i, v := range f.Versions {
		if v == name {
			return uint32(i)
		}
	}
	f.Versions = append(f.Versions, name)
	return uint32(len(f.Versions) - 1)
}

func (f *SharedFile) register(ctx *Context) {
	f.Priority = ctx.FilePriority
	ctx.FilePriority++
	ctx.SharedFiles = append(ctx.SharedFiles, f)
}
