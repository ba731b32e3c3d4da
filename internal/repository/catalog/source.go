package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/formula-resolver/internal/codec/descriptor"
	"github.com/oshokin/formula-resolver/internal/codec/rubyformula"
	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/logger"
)

// Fetcher retrieves remote formula files.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

var (
	// ErrNoSources is returned when nothing was configured to load from.
	ErrNoSources = errors.New("no formula sources configured")
	// errNoFetcher is returned for remote sources without an HTTP client.
	errNoFetcher = errors.New("remote source requires an HTTP client")
)

// Collect reads every descriptor reachable from sources, keeping duplicates.
func Collect(ctx context.Context, sources []string, fetcher Fetcher) ([]*formula.Formula, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	var result []*formula.Formula

	for _, source := range sources {
		loaded, err := collectSource(ctx, source, fetcher)
		if err != nil {
			return nil, err
		}

		result = append(result, loaded...)
	}

	return result, nil
}

func collectSource(ctx context.Context, source string, fetcher Fetcher) ([]*formula.Formula, error) {
	if config.IsRemote(source) {
		f, err := fetchRemote(ctx, source, fetcher)
		if err != nil {
			return nil, err
		}

		return []*formula.Formula{f}, nil
	}

	local := config.ExpandHome(source)

	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}

	if !info.IsDir() {
		f, err := ReadFile(local)
		if err != nil {
			return nil, err
		}

		return []*formula.Formula{f}, nil
	}

	var result []*formula.Formula

	err = filepath.WalkDir(local, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if p != local && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if !IsDescriptorFile(p) {
			return nil
		}

		f, err := ReadFile(p)
		if err != nil {
			return err
		}

		result = append(result, f)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", source, err)
	}

	logger.DebugKV(ctx, "scanned formula directory", "source", source, "formulas", len(result))

	return result, nil
}

func fetchRemote(ctx context.Context, source string, fetcher Fetcher) (*formula.Formula, error) {
	if fetcher == nil {
		return nil, errNoFetcher
	}

	data, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	name := source
	if u, err := url.Parse(source); err == nil {
		name = path.Base(u.Path)
	}

	f, err := Decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	f.Source = source

	return f, nil
}

// IsDescriptorFile reports whether the file name has a formula extension.
func IsDescriptorFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".rb", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ReadFile parses one local descriptor and records its path as the source.
func ReadFile(name string) (*formula.Formula, error) {
	data, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	f, err := Decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	f.Source = name

	return f, nil
}

// Decode picks the codec by extension and falls back to sniffing the content.
func Decode(name string, data []byte) (*formula.Formula, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".rb":
		return rubyformula.Parse(bytes.NewReader(data))
	case ".yaml", ".yml":
		return descriptor.Decode(data)
	}

	if bytes.Contains(data, []byte("< Formula")) {
		return rubyformula.Parse(bytes.NewReader(data))
	}

	return descriptor.Decode(data)
}
