// Package archive packages a virtual file set into a zip byte stream.
package archive

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/pzero-labs/pzero/internal/domain"
)

// WriteZip writes every entry of the file set as one deflated archive
// member named by its path key. Directories are implied by path separators.
// An empty file set produces a valid empty archive.
func WriteZip(w io.Writer, files *domain.FileSet) error {
	zw := zip.NewWriter(w)

	for _, path := range files.Paths() {
		content, _ := files.Get(path)
		member, err := zw.Create(path)
		if err != nil {
			return fmt.Errorf("create archive member %s: %w", path, err)
		}
		if _, err := member.Write([]byte(content)); err != nil {
			return fmt.Errorf("write archive member %s: %w", path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}
