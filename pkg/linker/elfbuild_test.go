package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// Minimal ELF64 little-endian image builders for test fixtures. Only what
// debug/elf needs to hand the front-ends a symbol table.

type testSym struct {
	Name  string
	Bind  elf.SymBind
	Type  elf.SymType
	Vis   elf.SymVis
	Shndx elf.SectionIndex // SHN_UNDEF, SHN_ABS, or 1 for .text
	Value uint64
	Size  uint64
}

func defSym(name string, value uint64) testSym {
	return testSym{Name: name, Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC,
		Shndx: 1, Value: value}
}

func weakSym(name string, value uint64) testSym {
	s := defSym(name, value)
	s.Bind = elf.STB_WEAK
	return s
}

func undefSym(name string) testSym {
	return testSym{Name: name, Bind: elf.STB_GLOBAL, Shndx: elf.SHN_UNDEF}
}

type ehdr64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type shdr64 struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type sym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

func makeObject(t *testing.T, syms ...testSym) []byte {
	t.Helper()
	return makeElf(t, elf.ET_REL, elf.SHT_SYMTAB, syms)
}

func makeSharedLib(t *testing.T, syms ...testSym) []byte {
	t.Helper()
	return makeElf(t, elf.ET_DYN, elf.SHT_DYNSYM, syms)
}

func makeElf(t *testing.T, etype elf.Type, symSecType elf.SectionType, syms []testSym) []byte {
	t.Helper()

	symSecName, strSecName := ".symtab", ".strtab"
	if symSecType == elf.SHT_DYNSYM {
		symSecName, strSecName = ".dynsym", ".dynstr"
	}

	strtab := []byte{0}
	nameOff := func(name string) uint32 {
		off := uint32(len(strtab))
		strtab = append(strtab, name...)
		strtab = append(strtab, 0)
		return off
	}

	symtab := &bytes.Buffer{}
	require.NoError(t, binary.Write(symtab, binary.LittleEndian, sym64{}))
	for _, s := range syms {
		require.NoError(t, binary.Write(symtab, binary.LittleEndian, sym64{
			Name:  nameOff(s.Name),
			Info:  uint8(s.Bind)<<4 | uint8(s.Type)&0xf,
			Other: uint8(s.Vis),
			Shndx: uint16(s.Shndx),
			Value: s.Value,
			Size:  s.Size,
		}))
	}

	shstrtab := []byte{0}
	shstrOff := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		return off
	}

	const ehSize = 64
	symtabOff := uint64(ehSize)
	strtabOff := symtabOff + uint64(symtab.Len())
	shstrtabOff := strtabOff + uint64(len(strtab))

	shdrs := []shdr64{
		{},
		{Name: shstrOff(".text"), Type: uint32(elf.SHT_PROGBITS),
			Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addralign: 16},
		{Name: shstrOff(symSecName), Type: uint32(symSecType),
			Offset: symtabOff, Size: uint64(symtab.Len()),
			Link: 3, Info: 1, Addralign: 8, Entsize: 24},
		{Name: shstrOff(strSecName), Type: uint32(elf.SHT_STRTAB),
			Offset: strtabOff, Size: uint64(len(strtab)), Addralign: 1},
		{Name: shstrOff(".shstrtab"), Type: uint32(elf.SHT_STRTAB),
			Offset: shstrtabOff, Size: uint64(len(shstrtab)), Addralign: 1},
	}

	// The header table sits after the section data, so the name table must
	// be fully interned before the offset is taken.
	shoff := shstrtabOff + uint64(len(shstrtab))

	eh := ehdr64{
		Type:      uint16(etype),
		Machine:   uint16(elf.EM_X86_64),
		Version:   1,
		Shoff:     shoff,
		Ehsize:    ehSize,
		Shentsize: 64,
		Shnum:     uint16(len(shdrs)),
		Shstrndx:  4,
	}
	copy(eh.Ident[:], elf.ELFMAG)
	eh.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	eh.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	eh.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	out := &bytes.Buffer{}
	require.NoError(t, binary.Write(out, binary.LittleEndian, eh))
	out.Write(symtab.Bytes())
	out.Write(strtab)
	out.Write(shstrtab)
	for _, sh := range shdrs {
		require.NoError(t, binary.Write(out, binary.LittleEndian, sh))
	}
	return out.Bytes()
}

type arMember struct {
	Name     string
	Contents []byte
	Symbols  []string // names the armap advertises for this member
}

// makeArchive builds a GNU-format archive with a symbol index.
func makeArchive(t *testing.T, members ...arMember) []byte {
	t.Helper()

	writeHdr := func(out *bytes.Buffer, name string, size int) {
		require.LessOrEqual(t, len(name), 16, "use short member names in tests")
		hdr := make([]byte, arHdrSize)
		for i := range hdr {
			hdr[i] = ' '
		}
		copy(hdr, name)
		copy(hdr[28:], "0")  // mode
		copy(hdr[48:], strconv.Itoa(size))
		hdr[58] = 0x60
		hdr[59] = 0x0a
		out.Write(hdr)
	}

	// The armap size must be known before member offsets are, and the
	// offsets go inside the armap. Sizes are position independent, so
	// lay out sizes first, then fill in offsets.
	nsyms := 0
	armapSize := 4
	for _, m := range members {
		nsyms += len(m.Symbols)
		for _, s := range m.Symbols {
			armapSize += 4 + len(s) + 1
		}
	}

	offset := len(arMagic) + arHdrSize + armapSize
	if offset%2 == 1 {
		offset++
	}
	memberOffsets := make([]int, len(members))
	for i, m := range members {
		memberOffsets[i] = offset
		offset += arHdrSize + len(m.Contents)
		if offset%2 == 1 {
			offset++
		}
	}

	armap := &bytes.Buffer{}
	require.NoError(t, binary.Write(armap, binary.BigEndian, uint32(nsyms)))
	for i, m := range members {
		for range m.Symbols {
			require.NoError(t, binary.Write(armap, binary.BigEndian, uint32(memberOffsets[i])))
		}
	}
	for _, m := range members {
		for _, s := range m.Symbols {
			armap.WriteString(s)
			armap.WriteByte(0)
		}
	}
	require.Equal(t, armapSize, armap.Len())

	out := &bytes.Buffer{}
	out.WriteString(arMagic)
	writeHdr(out, "/", armap.Len())
	out.Write(armap.Bytes())
	for i, m := range members {
		if out.Len()%2 == 1 {
			out.WriteByte('\n')
		}
		require.Equal(t, memberOffsets[i], out.Len())
		writeHdr(out, m.Name+"/", len(m.Contents))
		out.Write(m.Contents)
	}
	return out.Bytes()
}

// The builders must emit images debug/elf accepts; everything else in the
// suite sits on top of them.
func TestElfImageRoundTrips(t *testing.T) {
	img := makeObject(t, defSym("foo", 1))
	ef, err := elf.NewFile(bytes.NewReader(img))
	require.NoError(t, err)
	defer ef.Close()

	require.Len(t, ef.Sections, 5)
	require.Equal(t, ".shstrtab", ef.Sections[4].Name)
	syms, err := ef.Symbols()
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Equal(t, "foo", syms[0].Name)
}
