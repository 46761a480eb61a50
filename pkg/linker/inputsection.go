package linker

import "debug/elf"

// InputSection is the handle a Defined symbol carries to the section that
// owns it. Layout and relocation of section contents happen in later
// phases; resolution only needs a stable identity.
type InputSection struct {
	File  *ObjectFile
	Name  string
	Shndx int

	Type      elf.SectionType
	Flags     elf.SectionFlag
	AddrAlign uint64
}

func (isec *InputSection) IsTls() bool {
	return isec.Flags&elf.SHF_TLS != 0
}
