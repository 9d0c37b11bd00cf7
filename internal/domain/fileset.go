package domain

// FileSet is an ordered mapping from relative file path to file content.
// Duplicate paths keep their first position but take the latest content
// (last-write-wins), matching how the generation model re-emits corrected
// files later in the same response.
type FileSet struct {
	paths    []string
	contents map[string]string
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{contents: make(map[string]string)}
}

// Put inserts or overwrites the content for a path. A path that already
// exists keeps its original position.
func (fs *FileSet) Put(path, content string) {
	if _, ok := fs.contents[path]; !ok {
		fs.paths = append(fs.paths, path)
	}
	fs.contents[path] = content
}

// Get returns the content for a path.
func (fs *FileSet) Get(path string) (string, bool) {
	content, ok := fs.contents[path]
	return content, ok
}

// Len returns the number of entries.
func (fs *FileSet) Len() int {
	return len(fs.paths)
}

// Paths returns the paths in insertion order.
func (fs *FileSet) Paths() []string {
	out := make([]string, len(fs.paths))
	copy(out, fs.paths)
	return out
}

// Map returns a plain path->content map for serialization.
func (fs *FileSet) Map() map[string]string {
	out := make(map[string]string, len(fs.contents))
	for path, content := range fs.contents {
		out[path] = content
	}
	return out
}
