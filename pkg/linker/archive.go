package linker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/soldlinker/sold/pkg/utils"
)

const (
	arMagic     = "!<arch>\n"
	arThinMagic = "!<thin>\n"
	arHdrSize   = 60
)

// ArchiveFile is a static archive whose members stay unparsed until the
// resolver asks for them. The armap (ranlib index) supplies the name to
// member mapping, so building the lazy occurrences touches no member data.
type ArchiveFile struct {
	File    *File
	Members []*ArchiveMember
	Occs    []Occurrence

	byOffset map[uint64]*ArchiveMember
}

// ArchiveMember is one member descriptor. Offset is the member header's
// position inside the archive, the same number the armap stores.
type ArchiveMember struct {
	Parent *ArchiveFile
	Name   string
	Offset uint64
	File   *File

	fetched bool
}

func IsArchive(contents []byte) bool {
	return bytes.HasPrefix(contents, []byte(arMagic)) ||
		bytes.HasPrefix(contents, []byte(arThinMagic))
}

func ReadArchive(file *File) (*ArchiveFile, error) {
	a := &ArchiveFile{File: file, byOffset: make(map[uint64]*ArchiveMember)}
	if err := a.parse(); err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	return a, nil
}

func (a *ArchiveFile) parse() error {
	contents := a.File.Contents
	if bytes.HasPrefix(contents, []byte(arThinMagic)) {
		return fmt.Errorf("thin archives are not supported")
	}
	if !bytes.HasPrefix(contents, []byte(arMagic)) {
		return fmt.Errorf("not an archive")
	}

	var armap, strtab []byte
	pos := len(arMagic)
	for {
		// Members start on even offsets.
		if pos%2 == 1 {
			pos++
		}
		if pos+arHdrSize > len(contents) {
			break
		}
		hdr := contents[pos : pos+arHdrSize]
		if hdr[58] != 0x60 || hdr[59] != 0x0a {
			return fmt.Errorf("malformed member header at offset %d", pos)
		}

		size, err := strconv.Atoi(strings.TrimSpace(string(hdr[48:58])))
		if err != nil || size < 0 {
			return fmt.Errorf("malformed member size at offset %d", pos)
		}
		body := pos + arHdrSize
		end := body + size
		if end > len(contents) {
			return fmt.Errorf("member at offset %d is truncated", pos)
		}

		name := strings.TrimRight(string(hdr[0:16]), " ")
		switch {
		case name == "/":
			armap = contents[body:end]
		case name == "//":
			strtab = contents[body:end]
		case name == "__.SYMDEF" || name == "__.SYMDEF SORTED":
			// BSD-style index; treated like a missing one below.
		default:
			memberName, err := memberName(name, strtab)
			if err != nil {
				return err
			}
			m := &ArchiveMember{
				Parent: a,
				Name:   memberName,
				Offset: uint64(pos),
				File: &File{
					Name:     memberName,
					Contents: contents[body:end],
					Parent:   a.File,
				},
			}
			a.Members = append(a.Members, m)
			a.byOffset[m.Offset] = m
		}
		pos = end
	}

	if armap == nil {
		if len(a.Members) == 0 {
			return nil
		}
		return fmt.Errorf("archive has no symbol index; run ranlib")
	}
	return a.parseArmap(armap)
}

// parseArmap reads the GNU index: a big-endian count, that many header
// offsets, then NUL-terminated names in matching order.
func (a *ArchiveFile) parseArmap(armap []byte) error {
	if len(armap) < 4 {
		return fmt.Errorf("malformed symbol index")
	}
	count := int(binary.BigEndian.Uint32(armap))
	if len(armap) < 4+4*count {
		return fmt.Errorf("malformed symbol index")
	}

	names := armap[4+4*count:]
	for i := 0; i < count; i++ {
		offset := uint64(binary.BigEndian.Uint32(armap[4+4*i:]))

		nul := bytes.IndexByte(names, 0)
		if nul < 0 {
			return fmt.Errorf("malformed symbol index")
		}
		name := string(names[:nul])
		names = names[nul+1:]

		m, ok := a.byOffset[offset]
		if !ok {
			return fmt.Errorf("symbol index references a missing member at offset %d", offset)
		}

		a.Occs = append(a.Occs, Occurrence{
			Name:   name,
			Kind:   LazyArchiveKind,
			File:   a.File,
			Member: m,
		})
	}
	return nil
}

func memberName(raw string, strtab []byte) (string, error) {
	if rest, ok := utils.RemovePrefix(raw, "/"); ok {
		// "/N": long name at offset N in the name table.
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 || idx >= len(strtab) {
			return "", fmt.Errorf("malformed long member name %q", raw)
		}
		name := string(strtab[idx:])
		if i := strings.IndexAny(name, "/\n"); i >= 0 {
			name = name[:i]
		}
		return name, nil
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// Fetch loads the member as an object file, at most once across the whole
// link. The second and later calls return a nil file: the member's
// definitions are already in the table.
func (m *ArchiveMember) Fetch(ctx *Context) (*ObjectFile, error) {
	if m.fetched {
		return nil, nil
	}
	m.fetched = true

	obj, err := NewObjectFile(m.File)
	if err != nil {
		return nil, err
	}
	obj.register(ctx)
	return obj, nil
}

func (m *ArchiveMember) Fetched() bool { return m.fetched }

func (a *ArchiveFile) register(ctx *Context) {
	ctx.Archives = append(ctx.Archives, a)
}
