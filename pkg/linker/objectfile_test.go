package linker

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectFileOccurrences(t *testing.T) {
	img := makeObject(t,
		defSym("globalfn", 0x10),
		weakSym("weakfn", 0x20),
		undefSym("needed"),
		testSym{Name: "local_helper", Bind: elf.STB_LOCAL, Type: elf.STT_FUNC, Shndx: 1},
		testSym{Name: "absolute", Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT,
			Shndx: elf.SHN_ABS, Value: 0xdead},
	)

	obj, err := NewObjectFile(&File{Name: "a.o", Contents: img})
	require.NoError(t, err)

	require.Len(t, obj.Occs, 4, "locals never become occurrences")

	byName := map[string]*Occurrence{}
	for i := range obj.Occs {
		byName[obj.Occs[i].Name] = &obj.Occs[i]
	}

	g := byName["globalfn"]
	require.NotNil(t, g)
	assert.Equal(t, DefinedKind, g.Kind)
	assert.Equal(t, elf.STB_GLOBAL, g.Binding)
	assert.Equal(t, uint64(0x10), g.Value)
	require.NotNil(t, g.Section)
	assert.Equal(t, ".text", g.Section.Name)

	w := byName["weakfn"]
	require.NotNil(t, w)
	assert.Equal(t, DefinedKind, w.Kind)
	assert.Equal(t, elf.STB_WEAK, w.Binding)

	u := byName["needed"]
	require.NotNil(t, u)
	assert.Equal(t, UndefinedKind, u.Kind)

	abs := byName["absolute"]
	require.NotNil(t, abs)
	assert.Equal(t, DefinedKind, abs.Kind)
	assert.Nil(t, abs.Section, "absolute symbols own no section")
}

func TestObjectFileRejectsSharedLibrary(t *testing.T) {
	img := makeSharedLib(t, defSym("foo", 1))
	_, err := NewObjectFile(&File{Name: "not-an-object.so", Contents: img})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a relocatable object")
}

func TestObjectFileRejectsGarbage(t *testing.T) {
	_, err := NewObjectFile(&File{Name: "junk", Contents: []byte("hello world")})
	require.Error(t, err)
}

func TestLazyObjectFileDefersParsing(t *testing.T) {
	ctx, _ := newTestContext()
	img := makeObject(t, defSym("foo", 7), undefSym("bar"))

	lobj, err := NewLazyObjectFile(&File{Name: "foo.o", Contents: img})
	require.NoError(t, err)

	// Only definitions are advertised; the undefined reference stays
	// private until the file is fetched.
	require.Len(t, lobj.Occs, 1)
	assert.Equal(t, "foo", lobj.Occs[0].Name)
	assert.Equal(t, LazyObjectKind, lobj.Occs[0].Kind)

	obj, err := lobj.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Len(t, obj.Occs, 2)

	again, err := lobj.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "second fetch reports already-fetched")
}

func TestLazyObjectResolution(t *testing.T) {
	ctx, _ := newTestContext()
	lobj, err := NewLazyObjectFile(&File{Name: "foo.o",
		Contents: makeObject(t, defSym("foo", 7))})
	require.NoError(t, err)

	addUndef(ctx, "main.o", "foo", elf.STB_GLOBAL)
	for i := range lobj.Occs {
		require.NoError(t, ctx.Symtab.Resolve(ctx, &lobj.Occs[i]))
	}

	s := ctx.Symtab.Lookup("foo")
	require.True(t, s.IsDefined())
	assert.Equal(t, uint64(7), s.Defined().Value)
	assert.True(t, lobj.Fetched())
}
