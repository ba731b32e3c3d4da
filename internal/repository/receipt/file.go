package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/formula-resolver/internal/config"
	domain "github.com/oshokin/formula-resolver/internal/domain/receipt"
)

// Repository defines persistence operations for install receipts.
type Repository interface {
	Load(ctx context.Context, name string) (*domain.Receipt, error)
	Save(ctx context.Context, r *domain.Receipt) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*domain.Receipt, error)
}

// FileRepository persists receipts as YAML files in one directory.
type FileRepository struct {
	// dir is the directory holding <name>.yaml receipts.
	dir string
	// mu protects concurrent access to the receipt files.
	mu sync.Mutex
}

const receiptExtension = ".yaml"

var (
	// ErrNotFound is returned when no receipt exists for a formula.
	ErrNotFound = errors.New("receipt not found")
	// errInvalidName is returned for names that cannot be used as file names.
	errInvalidName = errors.New("invalid receipt name")
)

// NewFileRepository creates a repository that reads and writes receipts in dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// Dir returns the receipt directory.
func (r *FileRepository) Dir() string {
	return r.dir
}

// Load reads the receipt of name.
func (r *FileRepository) Load(_ context.Context, name string) (*domain.Receipt, error) {
	path, err := r.path(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return readReceipt(path)
}

// Save writes the receipt, replacing any previous one for the same formula.
func (r *FileRepository) Save(_ context.Context, receipt *domain.Receipt) error {
	path, err := r.path(receipt.Name)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err = os.MkdirAll(r.dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create receipt directory: %w", err)
	}

	// Write then rename so a crash never leaves a truncated receipt.
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace receipt file: %w", err)
	}

	return nil
}

// Delete removes the receipt of name.
func (r *FileRepository) Delete(_ context.Context, name string) error {
	path, err := r.path(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err = os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("remove receipt file: %w", err)
	}

	return nil
}

// List returns every receipt sorted by formula name.
func (r *FileRepository) List(_ context.Context) ([]*domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read receipt directory: %w", err)
	}

	var result []*domain.Receipt

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != receiptExtension {
			continue
		}

		receipt, err := readReceipt(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		result = append(result, receipt)
	}

	slices.SortFunc(result, func(a, b *domain.Receipt) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

func (r *FileRepository) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidName, name)
	}

	return filepath.Join(r.dir, name+receiptExtension), nil
}

func readReceipt(path string) (*domain.Receipt, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var receipt domain.Receipt
	if err = yaml.Unmarshal(contents, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt file %s: %w", filepath.Base(path), err)
	}

	return &receipt, nil
}
