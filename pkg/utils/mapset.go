package utils

type MapSet[K comparable] struct {
	m map[K]struct{}
}

func NewMapSet[K comparable]() MapSet[K] {
	return MapSet[K]{
		m: make(map[K]struct{}),
	}
}

// AddNew inserts val and reports whether it was absent.
func (s MapSet[K]) AddNew(val K) bool {
	if _, ok := s.m[val]; ok {
		return false
	}
	s.m[val] = struct{}{}
	return true
}

func (s MapSet[K]) Contains(val K) bool {
	_, ok := s.m[val]
	return ok
}

func (s MapSet[K]) Len() int {
	return len(s.m)
}
