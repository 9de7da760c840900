package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// UnpackOptions controls how an artifact lands in its install directory.
type UnpackOptions struct {
	// StripSingleRoot hoists the contents of a lone top-level directory,
	// so "go/bin/go.exe" in the archive becomes "<dest>/bin/go.exe".
	StripSingleRoot bool
	// Rename sets the file name for FormatNone artifacts.
	Rename string
}

// Unpack materialises a into dest. The archive is extracted to a staging
// directory first and moved into place only on success, so dest is either
// fully populated or untouched. On extraction failure the cache entry is
// invalidated.
func (f *Fetcher) Unpack(ctx context.Context, a Artifact, dest string, opts UnpackOptions) error {
	if err := unpack(ctx, a, dest, opts); err != nil {
		f.Invalidate(a)
		return err
	}
	return nil
}

func unpack(ctx context.Context, a Artifact, dest string, opts UnpackOptions) error {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: prepare %s: %v", ErrExtractFailed, parent, err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("%w: create staging dir: %v", ErrExtractFailed, err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	switch a.Format {
	case FormatZip:
		err = extractZip(ctx, a.Path, staging)
	case FormatTarGz:
		err = extractTarGz(ctx, a.Path, staging)
	case FormatNone, "":
		name := opts.Rename
		if name == "" {
			name = filepath.Base(a.Path)
		}
		err = copyFile(a.Path, filepath.Join(staging, name), 0o755)
	default:
		err = fmt.Errorf("unsupported archive format %q", a.Format)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtractFailed, filepath.Base(a.Path), err)
	}

	root := staging
	if opts.StripSingleRoot {
		root, err = singleRoot(staging)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrExtractFailed, err)
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("%w: clear %s: %v", ErrExtractFailed, dest, err)
	}
	if err := os.Rename(root, dest); err != nil {
		return fmt.Errorf("%w: move into %s: %v", ErrExtractFailed, dest, err)
	}
	return nil
}

func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// Locate returns the first file under root whose slash-separated relative
// path matches pattern, for example "**/bin/go{,.exe}".
func Locate(root, pattern string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("locate %s under %s: %w", pattern, root, fs.ErrNotExist)
	}
	return filepath.Join(root, filepath.FromSlash(matches[0])), nil
}

// safeJoin rejects entries that would escape dest.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("prepare file %s: %w", target, err)
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		err = writeFile(target, rc, file.Mode().Perm()|0o600)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("prepare file %s: %w", target, err)
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()|0o600); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("archive link %q is absolute", header.Name)
			}
			if _, err := safeJoin(dest, path.Join(path.Dir(header.Name), header.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("prepare link %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create link %s: %w", target, err)
			}
		default:
			// Ignore other entry types.
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return writeFile(dst, in, mode)
}
