package linker

import (
	"fmt"

	"github.com/spf13/afero"
)

// File is one loaded input image: an object file, a shared library, an
// archive, or an archive member (Parent set to the archive).
type File struct {
	Name     string
	Contents []byte

	Parent *File
}

func NewFile(fs afero.Fs, name string) (*File, error) {
	contents, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	return &File{Name: name, Contents: contents}, nil
}

func (f *File) DisplayName() string {
	if f.Parent != nil {
		return fmt.Sprintf("%s(%s)", f.Parent.Name, f.Name)
	}
	return f.Name
}

func openLibrary(fs afero.Fs, path string) *File {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil
	}
	return &File{Name: path, Contents: contents}
}

// FindLibrary resolves -lfoo against the -L search path, preferring a
// shared library over a static archive like the usual ld search order.
func FindLibrary(ctx *Context, name string) (*File, error) {
	for _, dir := range ctx.Arg.LibraryPaths {
		stem := dir + "/lib" + name
		if f := openLibrary(ctx.FS, stem+".so"); f != nil {
			return f, nil
		}
		if f := openLibrary(ctx.FS, stem+".a"); f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("library not found: -l%s", name)
}
