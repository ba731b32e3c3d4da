package installer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	domain "github.com/oshokin/formula-resolver/internal/domain/receipt"
	"github.com/oshokin/formula-resolver/internal/logger"
)

const (
	// DefaultFileMode is the mode of installed binaries.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction verifies the bytes go-update writes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA256
)

// staged is one extracted binary waiting to be applied.
type staged struct {
	// source is the extracted file.
	source string
	// target is the final path in the install directory.
	target string
}

// applied remembers how to undo one applied binary.
type applied struct {
	target   string
	rollback string
	existed  bool
}

// rollbackPath is where the previous version of target is kept during an install.
func rollbackPath(target string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".rollback")
}

// applyAll swaps every staged binary into place. On failure the ones already
// applied are restored and the error is returned.
func applyAll(ctx context.Context, binaries []staged) ([]domain.Binary, error) {
	var (
		done   = make([]applied, 0, len(binaries))
		result = make([]domain.Binary, 0, len(binaries))
	)

	for _, b := range binaries {
		step, installed, err := applyOne(ctx, b)
		if err != nil {
			if rollbackErr := rollback(ctx, done); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}

			return nil, err
		}

		done = append(done, step)
		result = append(result, installed)
	}

	for _, step := range done {
		_ = os.Remove(step.rollback)
	}

	return result, nil
}

func applyOne(ctx context.Context, b staged) (applied, domain.Binary, error) {
	step := applied{
		target:   b.target,
		rollback: rollbackPath(b.target),
	}

	data, err := os.ReadFile(filepath.Clean(b.source))
	if err != nil {
		return step, domain.Binary{}, fmt.Errorf("read extracted binary: %w", err)
	}

	checksum := sha256.Sum256(data)

	if _, err = os.Stat(b.target); err == nil {
		step.existed = true
	} else if errors.Is(err, os.ErrNotExist) {
		// go-update renames the current target away, so it must exist.
		placeholder, createErr := os.OpenFile(b.target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFileMode)
		if createErr != nil {
			return step, domain.Binary{}, fmt.Errorf("create %s: %w", b.target, createErr)
		}

		_ = placeholder.Close()
	} else {
		return step, domain.Binary{}, fmt.Errorf("stat %s: %w", b.target, err)
	}

	logger.DebugKV(ctx, "Applying binary", "target", b.target, "existed", step.existed)

	options := goupdate.Options{
		TargetPath:  b.target,
		TargetMode:  DefaultFileMode,
		Checksum:    checksum[:],
		Hash:        DefaultChecksumFunction,
		OldSavePath: step.rollback,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		// go-update stages the new file as .<name>.new and leaves it behind on failure.
		_ = os.Remove(filepath.Join(filepath.Dir(b.target), "."+filepath.Base(b.target)+".new"))

		if !step.existed {
			_ = os.Remove(b.target)
		}

		_ = os.Remove(step.rollback)

		return step, domain.Binary{}, fmt.Errorf("apply %s: %w", filepath.Base(b.target), err)
	}

	return step, domain.Binary{
		Name:   filepath.Base(b.target),
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(checksum[:]),
	}, nil
}

// rollback undoes applied steps in reverse order.
func rollback(ctx context.Context, done []applied) error {
	var errs []error

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]

		if !step.existed {
			if err := os.Remove(step.target); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", step.target, err))
			}

			_ = os.Remove(step.rollback)

			continue
		}

		if err := os.Rename(step.rollback, step.target); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", step.target, err))
			continue
		}

		logger.WarnKV(ctx, "Restored previous binary", "target", step.target)
	}

	return errors.Join(errs...)
}
