package linker

import (
	"bytes"
	"debug/elf"
	"fmt"
	"sync"
)

// InputSpec is one entry of the link line, in order. Lib entries came from
// -l and are resolved against the search path; Lazy entries were grouped
// between --start-lib and --end-lib.
type InputSpec struct {
	Path string
	Lib  bool
	Lazy bool
}

// parsedInput is what the concurrent parse stage hands the serial
// resolution stage for one link-line entry.
type parsedInput struct {
	err error

	obj     *ObjectFile
	shared  *SharedFile
	archive *ArchiveFile
	lazy    *LazyObjectFile
}

func (p *parsedInput) occurrences() []Occurrence {
	switch {
	case p.obj != nil:
		return p.obj.Occs
	case p.shared != nil:
		return p.shared.Occs
	case p.archive != nil:
		return p.archive.Occs
	case p.lazy != nil:
		return p.lazy.Occs
	}
	return nil
}

// ReadInputFiles scans the link line. File contents parse concurrently,
// one goroutine per file, but their occurrence batches are delivered to
// the table strictly in link order through this single loop: which
// definition wins and which member gets fetched must not depend on parse
// timing.
func ReadInputFiles(ctx *Context, inputs []InputSpec) error {
	files := make([]*File, len(inputs))
	for i, in := range inputs {
		var err error
		if in.Lib {
			files[i], err = FindLibrary(ctx, in.Path)
		} else {
			files[i], err = NewFile(ctx.FS, in.Path)
		}
		if err != nil {
			return err
		}
	}

	parsed := make([]parsedInput, len(inputs))
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parsed[i] = parseInput(files[i], inputs[i].Lazy)
		}(i)
	}
	wg.Wait()

	for i := range parsed {
		p := &parsed[i]
		if p.err != nil {
			return p.err
		}

		switch {
		case p.obj != nil:
			p.obj.register(ctx)
		case p.shared != nil:
			if !ctx.Visited.AddNew(p.shared.SoName) {
				continue
			}
			p.shared.register(ctx)
		case p.archive != nil:
			p.archive.register(ctx)
		case p.lazy != nil:
			p.lazy.register(ctx)
		}

		occs := p.occurrences()
		for j := range occs {
			if err := ctx.Symtab.Resolve(ctx, &occs[j]); err != nil {
				return err
			}
		}
	}

	if len(ctx.Objs) == 0 && len(ctx.LazyObjs) == 0 && len(ctx.Archives) == 0 {
		return fmt.Errorf("no input files")
	}
	return nil
}

func parseInput(file *File, lazy bool) parsedInput {
	var p parsedInput
	switch {
	case IsArchive(file.Contents):
		p.archive, p.err = ReadArchive(file)
	case isElf(file.Contents, elf.ET_DYN):
		p.shared, p.err = NewSharedFile(file)
	case lazy:
		p.lazy, p.err = NewLazyObjectFile(file)
	default:
		p.obj, p.err = NewObjectFile(file)
	}
	return p
}

func isElf(contents []byte, typ elf.Type) bool {
	ef, err := elf.NewFile(bytes.NewReader(contents))
	if err != nil {
		return false
	}
	defer ef.Close()
	return ef.Type == typ
}
