// Package attachments stores attachment files inside a data directory.
// Stored names are generated, so user-supplied filenames never reach the
// filesystem.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rtodo/rtodo/internal/paths"
)

// MaxFileSize is the largest file accepted by Save.
const MaxFileSize = 50 << 20

// Errors returned by Save.
var (
	ErrSourceMissing = errors.New("source file does not exist")
	ErrTooLarge      = errors.New("file exceeds the 50 MiB limit")
	ErrNotRegular    = errors.New("source is not a regular file")
)

// Stored describes a file copied into the attachments directory.
type Stored struct {
	// RelPath is relative to the data directory, e.g. "attachments/<uuid>.pdf".
	RelPath  string
	Size     int64
	MimeType *string
}

// Dir manages the attachments directory under a data directory.
type Dir struct {
	Root string // data directory
}

// Path returns the attachments directory.
func (d Dir) Path() string {
	return paths.AttachmentsPath(d.Root)
}

// Save copies src into the attachments directory under a generated name
// that keeps the extension of name.
func (d Dir) Save(src, name string) (*Stored, error) {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, src)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, src, info.Size())
	}

	if err := os.MkdirAll(d.Path(), 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	stored := uuid.NewString() + ext
	dst := filepath.Join(d.Path(), stored)

	n, err := copyFile(src, dst)
	if err != nil {
		os.Remove(dst)
		return nil, err
	}

	out := &Stored{
		RelPath: filepath.ToSlash(filepath.Join(paths.AttachmentsDirName, stored)),
		Size:    n,
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		out.MimeType = &mt
	}
	return out, nil
}

// Abs resolves a stored relative path against the data directory.
func (d Dir) Abs(rel string) string {
	return filepath.Join(d.Root, filepath.FromSlash(rel))
}

// Remove deletes a stored file. A file that is already gone is not an
// error; paths outside the attachments directory are refused.
func (d Dir) Remove(rel string) error {
	abs := d.Abs(rel)
	within, err := filepath.Rel(d.Path(), abs)
	if err != nil || within == "." || strings.HasPrefix(within, "..") {
		return fmt.Errorf("refusing to remove %q outside the attachments directory", rel)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}
