package watch

// File watches a single named file by watching its parent directory and
// filtering the stream down to one entry name.
type File struct {
	dir  *Dir
	name string
}

// NewFile starts watching the file at path. The path is split at its last
// separator; a path without separators watches the working directory.
func NewFile(path string, pool Pool) *File {
	dir, name := SplitPath(path)
	return NewFileInDir(dir, name, pool)
}

// NewFileInDir starts watching the file called name inside dir.
func NewFileInDir(dir, name string, pool Pool) *File {
	return &File{
		dir:  NewDir(dir, pool),
		name: name,
	}
}

// SplitPath splits a path at its last separator, accepting both slash and
// backslash regardless of platform. The separator stays with the directory
// part. A separator-free path yields "." as the directory.
func SplitPath(path string) (dir, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i+1], path[i+1:]
		}
	}
	return ".", path
}

// PollEvent returns the next event concerning the watched file, or false
// when none is available right now. Events for other entries in the same
// directory are discarded, not buffered. Note that this includes DirGone
// events from the parent watch: their empty name never matches.
func (f *File) PollEvent() (Event, bool) {
	for {
		ev, ok := f.dir.PollEvent()
		if !ok {
			return Event{}, false
		}
		if ev.Name == f.name {
			return ev, true
		}
	}
}

// Filename returns the watched entry name.
func (f *File) Filename() string {
	return f.name
}

// Close releases the underlying directory watch.
func (f *File) Close() {
	f.dir.Close()
}
