package domain

import (
	"testing"
)

func TestFileSetLastWriteWinsKeepsPosition(t *testing.T) {
	t.Parallel()

	fs := NewFileSet()
	fs.Put("a.txt", "one")
	fs.Put("b.txt", "two")
	fs.Put("a.txt", "three")

	if fs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", fs.Len())
	}

	content, ok := fs.Get("a.txt")
	if !ok || content != "three" {
		t.Errorf("expected a.txt=three, got %q (ok=%v)", content, ok)
	}

	paths := fs.Paths()
	if paths[0] != "a.txt" || paths[1] != "b.txt" {
		t.Errorf("expected order [a.txt b.txt], got %v", paths)
	}
}

func TestFileSetMapIsACopy(t *testing.T) {
	t.Parallel()

	fs := NewFileSet()
	fs.Put("a.txt", "one")

	m := fs.Map()
	m["a.txt"] = "mutated"

	content, _ := fs.Get("a.txt")
	if content != "one" {
		t.Errorf("Map mutation leaked into the file set: %q", content)
	}
}

func TestProjectArchiveName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"My Cool App", "my-cool-app"},
		{"todo!!", "todo"},
		{"", "project"},
		{"---", "project"},
	}

	for _, tt := range tests {
		p := &Project{Name: tt.name}
		if got := p.ArchiveName(); got != tt.want+".zip" {
			t.Errorf("ArchiveName(%q) = %q, want %q", tt.name, got, tt.want+".zip")
		}
	}
}
