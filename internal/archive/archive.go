package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/zhyee/zipstream"

	"github.com/oshokin/formula-resolver/internal/logger"
)

// Format is a release archive layout.
type Format string

// Supported formats.
const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatTarXz  Format = "tar.xz"
	FormatTar    Format = "tar"
	FormatRaw    Format = "raw"
)

const (
	// maxBinarySize caps a single extracted file.
	maxBinarySize = 1 << 30

	extractedFileMode = 0o700
	extractedDirMode  = 0o750
)

var (
	// ErrBinaryNotInArchive is returned when a requested file is absent from the archive.
	ErrBinaryNotInArchive = errors.New("binary not found in archive")
	// ErrUnsafePath is returned for entries or names escaping the extraction directory.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrTooLarge is returned for entries bigger than the extraction limit.
	ErrTooLarge = errors.New("archive entry too large")
	// errNothingRequested is returned when no file names were passed.
	errNothingRequested = errors.New("no binaries requested")
	// errRawNeedsOneBinary is returned when a bare binary download is asked for several files.
	errRawNeedsOneBinary = errors.New("a bare binary download can only provide one file")
)

// DetectFormat infers the archive layout from a file name or URL.
func DetectFormat(name string) Format {
	if u, _, ok := strings.Cut(name, "?"); ok {
		name = u
	}

	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZst
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	default:
		return FormatRaw
	}
}

// Extract copies each wanted file from the archive at src into destDir.
// It returns a map from wanted name to the extracted path.
func Extract(ctx context.Context, src string, format Format, wanted []string, destDir string) (map[string]string, error) {
	if len(wanted) == 0 {
		return nil, errNothingRequested
	}

	for _, name := range wanted {
		if !isSafe(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}

	file, err := os.Open(filepath.Clean(src))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	x := &extractor{
		wanted:  wanted,
		destDir: destDir,
		found:   make(map[string]string, len(wanted)),
		nested:  make(map[string]string, len(wanted)),
	}

	defer func() {
		_ = os.RemoveAll(x.nestedDir())
	}()

	switch format {
	case FormatZip:
		err = x.zip(file)
	case FormatTarGz:
		err = x.gzip(file)
	case FormatTarZst:
		err = x.zstd(file)
	case FormatTarXz:
		err = x.xz(file)
	case FormatTar:
		err = x.tar(file)
	case FormatRaw:
		err = x.raw(file)
	default:
		err = fmt.Errorf("unknown archive format %q", format)
	}

	if err != nil {
		return nil, err
	}

	if err = x.promoteNested(); err != nil {
		return nil, err
	}

	for _, name := range wanted {
		if _, ok := x.found[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotInArchive, name)
		}
	}

	logger.DebugKV(ctx, "extracted binaries", "archive", filepath.Base(src), "format", format, "files", len(x.found))

	return x.found, nil
}

// extractor streams an archive once. Entries matching a wanted name at the
// archive root land in found; entries matching only below a top-level
// directory are parked in nested and used when no root entry shows up.
type extractor struct {
	wanted  []string
	destDir string
	found   map[string]string
	nested  map[string]string
}

func (x *extractor) zip(r io.Reader) error {
	zr := zipstream.NewReader(r)

	for {
		entry, err := zr.GetNextEntry()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read zip entry: %w", err)
		}

		if strings.HasSuffix(entry.Name, "/") {
			continue
		}

		name, nested, err := x.match(entry.Name)
		if err != nil {
			return err
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}

		// The stream has no index, so skipped entries are drained.
		if name == "" {
			_, err = io.Copy(io.Discard, rc)
		} else {
			err = x.write(name, nested, rc)
		}

		_ = rc.Close()

		if err != nil {
			return err
		}

		if x.done() {
			return nil
		}
	}
}

func (x *extractor) gzip(r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	return x.tar(gz)
}

func (x *extractor) zstd(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("open zstd stream: %w", err)
	}

	defer zr.Close()

	return x.tar(zr)
}

func (x *extractor) xz(r io.Reader) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}

	return x.tar(xr)
}

func (x *extractor) tar(r io.Reader) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name, nested, err := x.match(hdr.Name)
		if err != nil {
			return err
		}

		if name == "" {
			continue
		}

		if err = x.write(name, nested, tr); err != nil {
			return err
		}

		if x.done() {
			return nil
		}
	}
}

func (x *extractor) raw(r io.Reader) error {
	if len(x.wanted) != 1 {
		return errRawNeedsOneBinary
	}

	return x.write(x.wanted[0], false, r)
}

// match maps an archive entry onto a wanted name. A root entry wins over
// one nested below a top-level directory; nested reports the latter.
func (x *extractor) match(entry string) (string, bool, error) {
	if !isSafe(entry) {
		return "", false, fmt.Errorf("%w: %q", ErrUnsafePath, entry)
	}

	clean := path.Clean(strings.TrimPrefix(entry, "./"))

	for _, name := range x.wanted {
		if _, seen := x.found[name]; !seen && clean == name {
			return name, false, nil
		}
	}

	_, stripped, hasDir := strings.Cut(clean, "/")
	if !hasDir {
		return "", false, nil
	}

	for _, name := range x.wanted {
		_, seen := x.found[name]
		_, parked := x.nested[name]

		if !seen && !parked && stripped == name {
			return name, true, nil
		}
	}

	return "", false, nil
}

func (x *extractor) write(name string, nested bool, r io.Reader) error {
	root := x.destDir
	if nested {
		root = x.nestedDir()
	}

	dest := filepath.Join(root, filepath.FromSlash(name))

	if err := copyEntry(dest, name, r); err != nil {
		return err
	}

	if nested {
		x.nested[name] = dest
	} else {
		x.found[name] = dest
	}

	return nil
}

// promoteNested moves parked entries into place for names the archive
// root did not provide.
func (x *extractor) promoteNested() error {
	for name, parked := range x.nested {
		if _, ok := x.found[name]; ok {
			continue
		}

		dest := filepath.Join(x.destDir, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(dest), extractedDirMode); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}

		if err := os.Rename(parked, dest); err != nil {
			return fmt.Errorf("move %s: %w", name, err)
		}

		x.found[name] = dest
	}

	return nil
}

func (x *extractor) nestedDir() string {
	return filepath.Join(x.destDir, ".nested")
}

func copyEntry(dest, name string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), extractedDirMode); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, extractedFileMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	n, err := io.CopyN(out, r, maxBinarySize+1)
	closeErr := out.Close()

	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return fmt.Errorf("extract %s: %w", name, err)
	case n > maxBinarySize:
		return fmt.Errorf("%w: %s", ErrTooLarge, name)
	case closeErr != nil:
		return fmt.Errorf("close %s: %w", dest, closeErr)
	}

	return nil
}

func (x *extractor) done() bool {
	return len(x.found) == len(x.wanted)
}

// isSafe rejects absolute paths and any ".." component.
func isSafe(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.IsAbs(name) {
		return false
	}

	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}

	return true
}
