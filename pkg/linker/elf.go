package linker

import "debug/elf"

// Symbol version indices. debug/elf does not export these.
const (
	VER_NDX_LOCAL  uint16 = 0
	VER_NDX_GLOBAL uint16 = 1
)

// GNU indirect function, missing from debug/elf's SymType set.
const STT_GNU_IFUNC elf.SymType = 10
