package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	domain "github.com/oshokin/formula-resolver/internal/domain/receipt"
	"github.com/oshokin/formula-resolver/internal/logger"
	"github.com/oshokin/formula-resolver/internal/repository/receipt"
)

// UninstallOptions are inputs accepted by Uninstall.
type UninstallOptions struct {
	// Name is the formula name.
	Name string
	// BinDir overrides the directory recorded in the receipt.
	BinDir string
	// StateDir holds receipts and the install lock.
	StateDir string
}

// Uninstall removes the binaries listed in the receipt and the receipt itself.
func Uninstall(ctx context.Context, opts *UninstallOptions) (*domain.Receipt, error) {
	if opts == nil || opts.Name == "" {
		return nil, errRefRequired
	}

	if opts.StateDir == "" {
		return nil, errStateDirRequired
	}

	ctx = logger.WithKV(logger.WithName(ctx, "uninstaller"), "formula", opts.Name)

	lock, err := acquireLock(opts.StateDir)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = lock.Unlock()
	}()

	receipts := receipt.NewFileRepository(filepath.Join(opts.StateDir, ReceiptDirname))

	installed, err := receipts.Load(ctx, opts.Name)
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, opts.Name)
		}

		return nil, err
	}

	dir := installed.Dir
	if opts.BinDir != "" {
		dir = opts.BinDir
	}

	for _, name := range installed.BinaryNames() {
		target := filepath.Join(dir, name)

		err = os.Remove(target)

		switch {
		case err == nil:
			logger.InfoKV(ctx, "Removed binary", "path", target)
		case errors.Is(err, os.ErrNotExist):
			logger.WarnKV(ctx, "Binary already removed", "path", target)
		default:
			return nil, fmt.Errorf("remove %s: %w", target, err)
		}
	}

	if err = receipts.Delete(ctx, opts.Name); err != nil {
		return nil, fmt.Errorf("delete receipt: %w", err)
	}

	return installed, nil
}

// Installed returns every receipt in the state directory.
func Installed(ctx context.Context, stateDir string) ([]*domain.Receipt, error) {
	return receipt.NewFileRepository(filepath.Join(stateDir, ReceiptDirname)).List(ctx)
}
