package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body string
}

func writeTar(t *testing.T, w io.Writer, entries []entry) {
	t.Helper()

	tw := tar.NewWriter(w)

	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0o755,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}))

		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
}

func buildArchive(t *testing.T, format Format, entries []entry) string {
	t.Helper()

	var buf bytes.Buffer

	switch format {
	case FormatZip:
		zw := zip.NewWriter(&buf)

		for _, e := range entries {
			w, err := zw.Create(e.name)
			require.NoError(t, err)

			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}

		require.NoError(t, zw.Close())
	case FormatTarGz:
		gz := gzip.NewWriter(&buf)
		writeTar(t, gz, entries)
		require.NoError(t, gz.Close())
	case FormatTarZst:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		writeTar(t, zw, entries)
		require.NoError(t, zw.Close())
	case FormatTarXz:
		xw, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		writeTar(t, xw, entries)
		require.NoError(t, xw.Close())
	case FormatTar:
		writeTar(t, &buf, entries)
	case FormatRaw:
		buf.WriteString(entries[0].body)
	}

	path := filepath.Join(t.TempDir(), "archive."+string(format))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}

// TestExtract_AllFormats pulls the same binary out of every supported layout.
func TestExtract_AllFormats(t *testing.T) {
	t.Parallel()

	entries := []entry{
		{name: "README.md", body: "docs"},
		{name: "proto", body: "#!/bin/sh\necho proto\n"},
	}

	for _, format := range []Format{FormatZip, FormatTarGz, FormatTarZst, FormatTarXz, FormatTar} {
		src := buildArchive(t, format, entries)
		dest := t.TempDir()

		found, err := Extract(context.Background(), src, format, []string{"proto"}, dest)
		require.NoError(t, err, format)
		require.Equal(t, map[string]string{"proto": filepath.Join(dest, "proto")}, found)

		body, err := os.ReadFile(found["proto"])
		require.NoError(t, err)
		require.Equal(t, "#!/bin/sh\necho proto\n", string(body))
	}
}

// TestExtract_TopLevelDirectory matches binaries below a single wrapping directory.
func TestExtract_TopLevelDirectory(t *testing.T) {
	t.Parallel()

	src := buildArchive(t, FormatTarGz, []entry{
		{name: "proto_1.1.2_linux_amd64/proto", body: "bin"},
		{name: "proto_1.1.2_linux_amd64/proto-shim", body: "shim"},
	})

	found, err := Extract(context.Background(), src, FormatTarGz, []string{"proto", "proto-shim"}, t.TempDir())
	require.NoError(t, err)
	require.Len(t, found, 2)
}

// TestExtract_RootEntryWins keeps the root binary over a same-named file in a subdirectory.
func TestExtract_RootEntryWins(t *testing.T) {
	t.Parallel()

	entries := []entry{
		{name: "completions/proto", body: "complete -F _proto proto\n"},
		{name: "proto", body: "ELF"},
	}

	for _, format := range []Format{FormatZip, FormatTarGz} {
		src := buildArchive(t, format, entries)
		dest := t.TempDir()

		found, err := Extract(context.Background(), src, format, []string{"proto"}, dest)
		require.NoError(t, err, format)

		body, err := os.ReadFile(found["proto"])
		require.NoError(t, err)
		require.Equal(t, "ELF", string(body), format)

		_, err = os.Stat(filepath.Join(dest, ".nested"))
		require.True(t, os.IsNotExist(err))
	}
}

// TestExtract_NestedFallback uses the first nested match when the root has none.
func TestExtract_NestedFallback(t *testing.T) {
	t.Parallel()

	src := buildArchive(t, FormatTar, []entry{
		{name: "proto_1.1.2/proto", body: "ELF"},
		{name: "proto_1.1.2/proto-shim", body: "shim"},
		{name: "extra/proto", body: "other"},
	})
	dest := t.TempDir()

	found, err := Extract(context.Background(), src, FormatTar, []string{"proto", "proto-shim"}, dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dest, "proto"), found["proto"])

	body, err := os.ReadFile(found["proto"])
	require.NoError(t, err)
	require.Equal(t, "ELF", string(body))
}

// TestExtract_Raw treats a non-archive download as the binary itself.
func TestExtract_Raw(t *testing.T) {
	t.Parallel()

	src := buildArchive(t, FormatRaw, []entry{{body: "ELF"}})
	dest := t.TempDir()

	found, err := Extract(context.Background(), src, FormatRaw, []string{"proto"}, dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dest, "proto"), found["proto"])

	_, err = Extract(context.Background(), src, FormatRaw, []string{"a", "b"}, dest)
	require.Error(t, err)
}

// TestExtract_Errors covers missing binaries and path traversal.
func TestExtract_Errors(t *testing.T) {
	t.Parallel()

	src := buildArchive(t, FormatZip, []entry{{name: "other", body: "x"}})

	_, err := Extract(context.Background(), src, FormatZip, []string{"proto"}, t.TempDir())
	require.ErrorIs(t, err, ErrBinaryNotInArchive)

	_, err = Extract(context.Background(), src, FormatZip, []string{"../proto"}, t.TempDir())
	require.ErrorIs(t, err, ErrUnsafePath)

	evil := buildArchive(t, FormatTar, []entry{{name: "../../etc/proto", body: "x"}})

	_, err = Extract(context.Background(), evil, FormatTar, []string{"proto"}, t.TempDir())
	require.ErrorIs(t, err, ErrUnsafePath)

	_, err = Extract(context.Background(), src, FormatZip, nil, t.TempDir())
	require.Error(t, err)
}

// TestDetectFormat maps archive names onto formats.
func TestDetectFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{
		"proto_1.1.2_linux_amd64.zip": FormatZip,
		"proto.tar.gz":                FormatTarGz,
		"proto.TGZ":                   FormatTarGz,
		"proto.tar.zst":               FormatTarZst,
		"proto.tar.xz":                FormatTarXz,
		"proto.tar":                   FormatTar,
		"proto_linux_amd64":           FormatRaw,
		"proto.zip?token=abc":         FormatZip,
	}

	for name, want := range cases {
		require.Equal(t, want, DetectFormat(name), name)
	}
}
