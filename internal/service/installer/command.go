package installer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oshokin/formula-resolver/internal/archive"
	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	domain "github.com/oshokin/formula-resolver/internal/domain/receipt"
	"github.com/oshokin/formula-resolver/internal/logger"
	"github.com/oshokin/formula-resolver/internal/repository/catalog"
	"github.com/oshokin/formula-resolver/internal/repository/receipt"
	"github.com/oshokin/formula-resolver/internal/service/common"
)

var (
	// ErrChecksumMismatch is returned when the downloaded archive does not match the formula checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNotInstalled is returned by Uninstall when no receipt exists.
	ErrNotInstalled = errors.New("formula is not installed")

	errRefRequired      = errors.New("formula reference must be provided")
	errBinDirRequired   = errors.New("install directory must be provided")
	errStateDirRequired = errors.New("state directory must be provided")
)

// ReceiptDirname is the state subdirectory holding receipts.
const ReceiptDirname = "receipts"

// Downloader fetches formula files and archives.
type Downloader interface {
	catalog.Fetcher
	Download(ctx context.Context, rawURL, dest string) (string, int64, error)
}

// Options are inputs accepted by Install.
type Options struct {
	// Ref is "name", "name@latest" or "name@version".
	Ref string
	// Sources are the formula sources to resolve Ref against.
	Sources []string
	// Platform overrides the detected platform when set.
	Platform *formula.Platform
	// BinDir receives the binaries.
	BinDir string
	// StateDir holds receipts and the install lock.
	StateDir string
	// TempDir is the parent of the private download directory; empty means the system default.
	TempDir string
	// Force reinstalls even when the receipt records the same version.
	Force bool
	// KillRunning terminates running copies of the binaries before replacing them.
	KillRunning bool
	// Client downloads files; nil means a client with default settings.
	Client Downloader
}

// Result describes what Install did.
type Result struct {
	// Receipt is the new receipt, or the existing one when the install was skipped.
	Receipt *domain.Receipt
	// Skipped is true when the requested version was already installed.
	Skipped bool
	// Dependencies are formula dependencies that were not installed.
	Dependencies []string
}

// runner holds the state of a single install execution.
type runner struct {
	opts       *Options
	client     Downloader
	platform   formula.Platform
	receipts   *receipt.FileRepository
	resolution *catalog.Resolution
	// temporaryDirectory is where the archive is downloaded and extracted.
	temporaryDirectory string
}

// Install resolves, downloads, verifies and applies a formula.
func Install(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "installer")

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	lock, err := acquireLock(opts.StateDir)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = lock.Unlock()
	}()

	r := newRunner(opts)
	defer r.cleanup(ctx)

	result, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "ref", opts.Ref, "error", err)
		return nil, err
	}

	return result, nil
}

func validateOptions(opts *Options) error {
	switch {
	case opts == nil || strings.TrimSpace(opts.Ref) == "":
		return errRefRequired
	case opts.BinDir == "":
		return errBinDirRequired
	case opts.StateDir == "":
		return errStateDirRequired
	default:
		return nil
	}
}

func newRunner(opts *Options) *runner {
	r := &runner{
		opts:     opts,
		client:   opts.Client,
		platform: formula.Detect(),
		receipts: receipt.NewFileRepository(filepath.Join(opts.StateDir, ReceiptDirname)),
	}

	if opts.Platform != nil {
		r.platform = *opts.Platform
	}

	if r.client == nil {
		r.client = common.NewClient()
	}

	return r
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	cat, err := catalog.Load(ctx, r.opts.Sources, r.client)
	if err != nil {
		return nil, fmt.Errorf("load formulas: %w", err)
	}

	r.resolution, err = cat.Resolve(r.opts.Ref, r.platform)
	if err != nil {
		return nil, err
	}

	f := r.resolution.Formula
	ctx = logger.WithFields(ctx, "formula", f.Name, "version", f.Version, "platform", r.platform.String())

	logger.InfoKV(ctx, "Resolved artifact", "url", r.resolution.Artifact.URL)

	result := &Result{Dependencies: f.Dependencies}
	if len(f.Dependencies) > 0 {
		logger.WarnKV(ctx, "Formula dependencies are not installed automatically", "dependencies", f.Dependencies)
	}

	previous, err := r.receipts.Load(ctx, f.Name)
	if err != nil && !errors.Is(err, receipt.ErrNotFound) {
		return nil, err
	}

	if previous != nil && !r.opts.Force &&
		catalog.SameVersion(previous.Version, f.Version) && previous.Dir == r.opts.BinDir {
		logger.Info(ctx, "Requested version is already installed")

		result.Receipt = previous
		result.Skipped = true

		return result, nil
	}

	archivePath, err := r.download(ctx)
	if err != nil {
		return nil, err
	}

	binaries, err := r.extract(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	if err = r.checkRunning(ctx, binaries); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(r.opts.BinDir, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create install directory: %w", err)
	}

	installed, err := applyAll(ctx, binaries)
	if err != nil {
		return nil, err
	}

	r.removeStale(ctx, previous, installed)

	result.Receipt = r.newReceipt(installed)
	if err = r.receipts.Save(ctx, result.Receipt); err != nil {
		return nil, fmt.Errorf("save receipt: %w", err)
	}

	logger.InfoKV(ctx, "Installed", "dir", r.opts.BinDir, "binaries", result.Receipt.BinaryNames())

	return result, nil
}

// download fetches the archive into the private temporary directory and checks its checksum.
func (r *runner) download(ctx context.Context) (string, error) {
	temporaryDirectory, err := os.MkdirTemp(r.opts.TempDir, config.AppName+"-")
	if err != nil {
		return "", fmt.Errorf("create temporary directory: %w", err)
	}

	r.temporaryDirectory = temporaryDirectory

	artifact := r.resolution.Artifact
	archivePath := filepath.Join(temporaryDirectory, archiveName(artifact.URL))

	logger.InfoKV(ctx, "Downloading archive", "path", archivePath)

	sum, size, err := r.client.Download(ctx, artifact.URL, archivePath)
	if err != nil {
		return "", fmt.Errorf("download archive: %w", err)
	}

	if !strings.EqualFold(sum, artifact.SHA256) {
		return "", fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, archiveName(artifact.URL), artifact.SHA256, sum)
	}

	logger.DebugKV(ctx, "Checksum verified", "sha256", sum, "bytes", size)

	return archivePath, nil
}

// extract pulls every binary named by the install actions out of the archive.
func (r *runner) extract(ctx context.Context, archivePath string) ([]staged, error) {
	installs := r.resolution.Artifact.Install
	if len(installs) == 0 {
		// GoReleaser formulas without an install block ship one binary named after the formula.
		installs = []formula.BinaryInstall{{Source: r.resolution.Formula.Name}}
	}

	sources := make([]string, 0, len(installs))
	for _, in := range installs {
		if !slices.Contains(sources, in.Source) {
			sources = append(sources, in.Source)
		}
	}

	extracted, err := archive.Extract(ctx, archivePath,
		archive.DetectFormat(archivePath), sources,
		filepath.Join(r.temporaryDirectory, "extracted"))
	if err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	binaries := make([]staged, 0, len(installs))
	for _, in := range installs {
		binaries = append(binaries, staged{
			source: extracted[in.Source],
			target: filepath.Join(r.opts.BinDir, path.Base(in.TargetName())),
		})
	}

	return binaries, nil
}

// checkRunning reports processes that run one of the binaries being replaced.
func (r *runner) checkRunning(ctx context.Context, binaries []staged) error {
	names := make([]string, 0, len(binaries))
	for _, b := range binaries {
		names = append(names, filepath.Base(b.target))
	}

	running, err := RunningProcesses(names)
	if err != nil {
		logger.WarnKV(ctx, "Could not list running processes", "error", err)
		return nil
	}

	if len(running) == 0 {
		return nil
	}

	for _, process := range running {
		logger.WarnKV(ctx, "Binary is running", "executable", process.Executable, "pid", process.PID)
	}

	if !r.opts.KillRunning {
		logger.Warn(ctx, "Running copies keep the old binary until restarted, use --kill-running to stop them")
		return nil
	}

	logger.Info(ctx, "Terminating running processes")

	return terminate(running)
}

// removeStale deletes binaries of the previous install that this one no longer
// provides. A previous install in another directory is removed entirely.
func (r *runner) removeStale(ctx context.Context, previous *domain.Receipt, installed []domain.Binary) {
	if previous == nil || previous.Dir == "" {
		return
	}

	moved := filepath.Clean(previous.Dir) != filepath.Clean(r.opts.BinDir)
	if moved {
		logger.InfoKV(ctx, "Removing previous install from another directory", "dir", previous.Dir)
	}

	current := make([]string, 0, len(installed))
	for _, b := range installed {
		current = append(current, b.Name)
	}

	for _, name := range previous.BinaryNames() {
		if !moved && slices.Contains(current, name) {
			continue
		}

		if err := os.Remove(filepath.Join(previous.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Could not remove stale binary", "dir", previous.Dir, "name", name, "error", err)
		}
	}
}

func (r *runner) newReceipt(installed []domain.Binary) *domain.Receipt {
	actor, err := common.DetectActor()
	if err != nil {
		actor = nil
	}

	return &domain.Receipt{
		Name:        r.resolution.Formula.Name,
		Version:     r.resolution.Formula.Version,
		Platform:    r.platform.String(),
		URL:         r.resolution.Artifact.URL,
		SHA256:      strings.ToLower(r.resolution.Artifact.SHA256),
		Dir:         r.opts.BinDir,
		Binaries:    installed,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
		InstalledBy: actor,
	}
}

// cleanup removes the temporary download directory.
func (r *runner) cleanup(ctx context.Context) {
	if r.temporaryDirectory == "" {
		return
	}

	if err := os.RemoveAll(r.temporaryDirectory); err != nil {
		logger.WarnKV(ctx, "Could not remove temporary directory", "path", r.temporaryDirectory, "error", err)
	}
}

// archiveName returns the file name part of a download URL.
func archiveName(rawURL string) string {
	name := path.Base(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}

	if name == "" || name == "." || name == "/" {
		return "download"
	}

	return name
}
