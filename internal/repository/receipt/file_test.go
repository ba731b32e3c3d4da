package receipt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/formula-resolver/internal/domain/receipt"
)

func sampleReceipt(name string) *domain.Receipt {
	return &domain.Receipt{
		Name:        name,
		Version:     "1.1.2",
		Platform:    "linux/amd64",
		URL:         "https://github.com/Blooym/proto/releases/download/v1.1.2/proto_1.1.2_linux_amd64.zip",
		SHA256:      "2f1d20b25182c27b1bdb0196aa06217e6ab73727b3fd2c6285e738cde0f53271",
		Dir:         "/home/o.shokin/.local/bin",
		Binaries:    []domain.Binary{{Name: name, Size: 4096, SHA256: "ab"}},
		InstalledAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		InstalledBy: &domain.Actor{
			Hostname: "build-01",
			Username: "o.shokin",
		},
	}
}

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing receipts.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "receipts"))

	r, err := repo.Load(context.Background(), "proto")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, r)

	require.ErrorIs(t, repo.Delete(context.Background(), "proto"), ErrNotFound)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal receipt.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "receipts")
	repo := NewFileRepository(dir)

	want := sampleReceipt("proto")
	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background(), "proto")
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(filepath.Join(dir, "proto.yaml"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestFileRepository_ListDelete checks ordering and removal.
func TestFileRepository_ListDelete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo := NewFileRepository(dir)

	for _, name := range []string{"wine", "proto"} {
		require.NoError(t, repo.Save(context.Background(), sampleReceipt(name)))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "proto", list[0].Name)
	require.Equal(t, "wine", list[1].Name)

	require.NoError(t, repo.Delete(context.Background(), "wine"))

	list, err = repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

// TestFileRepository_InvalidName rejects names that would escape the directory.
func TestFileRepository_InvalidName(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(t.TempDir())

	_, err := repo.Load(context.Background(), "../proto")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
