package linker

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
)

// LazyObjectFile is an object collected between --start-lib and --end-lib.
// Only its symbol table is read up front; the file joins the link when one
// of its definitions is actually needed.
type LazyObjectFile struct {
	File *File

	Occs []Occurrence

	fetched bool
}

func NewLazyObjectFile(file *File) (*LazyObjectFile, error) {
	f := &LazyObjectFile{File: file}
	if err := f.parse(); err != nil {
		return nil, fmt.Errorf("%s: %w", file.DisplayName(), err)
	}
	return f, nil
}

func (f *LazyObjectFile) parse() error {
	ef, err := elf.NewFile(bytes.NewReader(f.File.Contents))
	if err != nil {
		return err
	}
	defer ef.Close()

	if ef.Type != elf.ET_REL {
		return fmt.Errorf("not a relocatable object (type %s)", ef.Type)
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
		if elf.ST_BIND(esym.Info) == elf.STB_LOCAL || esym.Section == elf.SHN_UNDEF {
			continue
		}
		f.Occs = append(f.Occs, Occurrence{
			Name: esym.Name,
			Kind: LazyObjectKind,
			File: f.File,
			Lazy: f,
		})
	}
	return nil
}

// Fetch materializes the deferred object, once. A second call reports
// "already fetched" with a nil file.
func (f *LazyObjectFile) Fetch(ctx *Context) (*ObjectFile, error) {
	if f.fetched {
		return nil, nil
	}
	f.fetched = true

	obj, err := NewObjectFile(f.File)
	if err != nil {
		return nil, err
	}
	obj.register(ctx)
	return obj, nil
}

func (f *LazyObjectFile) Fetched() bool { return f.fetched }

func (f *LazyObjectFile) register(ctx *Context) {
	ctx.LazyObjs = append(ctx.LazyObjs, f)
}
