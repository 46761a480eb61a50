package linker

import "github.com/soldlinker/sold/pkg/utils"

// OptIndex is a slot into a linker-assigned table (dynsym, GOT, GOT-PLT,
// PLT, TLS-GOT). The zero value is unassigned; zero is a valid index, so
// unassigned is tracked explicitly instead of with an all-ones sentinel.
type OptIndex struct {
	idx      uint32
	assigned bool
}

func AssignedIndex(n uint32) OptIndex {
	return OptIndex{idx: n, assigned: true}
}

func (i OptIndex) Assigned() bool { return i.assigned }

func (i OptIndex) Value() uint32 {
	utils.Assert(i.assigned)
	return i.idx
}

func (i *OptIndex) Assign(n uint32) {
	i.idx = n
	i.assigned = true
}

func (i *OptIndex) Clear() {
	*i = OptIndex{}
}
