package linker

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
)

// ObjectFile is a parsed relocatable object. Parsing is pure: it turns the
// file's global symbols into occurrence tuples and leaves applying them to
// the resolution pass, so files can be parsed concurrently and still
// resolve in link order.
type ObjectFile struct {
	File     *File
	Priority uint32

	Sections []*InputSection
	Occs     []Occurrence
}

func NewObjectFile(file *File) (*ObjectFile, error) {
	o := &ObjectFile{File: file}
	if err := o.parse(); err != nil {
		return nil, fmt.Errorf("%s: %w", file.DisplayName(), err)
	}
	return o, nil
}

func (o *ObjectFile) parse() error {
	ef, err := elf.NewFile(bytes.NewReader(o.File.Contents))
	if err != nil {
		return err
	}
	defer ef.Close()

	if ef.Type != elf.ET_REL {
		return fmt.Errorf("not a relocatable object (type %s)", ef.Type)
	}

	o.Sections = make([]*InputSection, len(ef.Sections))
	for i, sec := range ef.Sections {
		o.Sections[i] = &InputSection{
			File:      o,
			Name:      sec.Name,
			Shndx:     i,
			Type:      sec.Type,
			Flags:     sec.Flags,
			AddrAlign: sec.Addralign,
		}
	}

	syms, err := ef.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil
		}
		return err
	}

	for i := range syms {
		esym := &syms[i]
		bind := elf.ST_BIND(esym.Info)
		if bind == elf.STB_LOCAL {
			// Locals never enter the global table.
			continue
		}

		occ := Occurrence{
			Name:       esym.Name,
			Binding:    bind,
			Type:       elf.ST_TYPE(esym.Info),
			Visibility: elf.ST_VISIBILITY(esym.Other),
			File:       o.File,
			Value:      esym.Value,
			Size:       esym.Size,
		}

		switch esym.Section {
		case elf.SHN_UNDEF:
			occ.Kind = UndefinedKind
		case elf.SHN_ABS, elf.SHN_COMMON:
			occ.Kind = DefinedKind
		default:
			shndx := int(esym.Section)
			if shndx < 0 || shndx >= len(o.Sections) {
				return fmt.Errorf("invalid section index %d for symbol %s",
					shndx, esym.Name)
			}
			occ.Kind = DefinedKind
			occ.Section = o.Sections[shndx]
		}

		o.Occs = append(o.Occs, occ)
	}
	return nil
}

// register assigns the object its place in link order. Called from the
// serial resolution path only.
func (o *ObjectFile) register(ctx *Context) {
	o.Priority = ctx.FilePriority
	ctx.FilePriority++
	ctx.Objs = append(ctx.Objs, o)
}
