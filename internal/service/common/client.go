//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/logger"
	"github.com/oshokin/formula-resolver/internal/version"
)

// Client downloads formula files and release archives over HTTP with retries.
type Client struct {
	// timeout bounds a whole request including the body transfer.
	timeout time.Duration
	// retries is the number of extra attempts after a failed request.
	retries int
	// retryWait is the minimum delay between attempts.
	retryWait time.Duration
	// progress receives a progress bar for downloads; nil disables it.
	progress io.Writer
	// userAgent is sent with every request.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithTimeout sets a timeout for every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries sets the number of extra attempts for failed requests.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithRetryWait sets the minimum delay between attempts.
func WithRetryWait(wait time.Duration) Option {
	return func(c *Client) {
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithProgress renders a download progress bar into w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) {
		c.progress = w
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

var (
	// ErrBadHTTPStatus is returned for responses other than 200 OK.
	ErrBadHTTPStatus = errors.New("unexpected HTTP status")
	// errURLRequired is returned when a request URL is missing.
	errURLRequired = errors.New("url must be provided")
)

const (
	defaultRetryWait    = 500 * time.Millisecond
	maxRetryWait        = 10 * time.Second
	progressBarWidth    = 40
	progressBarThrottle = 100 * time.Millisecond
)

// NewClient creates a client with defaults from the config package.
func NewClient(opts ...Option) *Client {
	client := &Client{
		timeout:   config.DefaultTimeout,
		retries:   config.DefaultRetries,
		retryWait: defaultRetryWait,
		userAgent: config.AppName + "/" + version.Version,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Fetch returns the body of a small document such as a formula file.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	return body, nil
}

// Download streams rawURL into dest and returns the hex SHA-256 and size of what was written.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (string, int64, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", 0, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	file, err := os.OpenFile(filepath.Clean(dest), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", dest, err)
	}

	var (
		hasher  = sha256.New()
		writers = []io.Writer{file, hasher}
		bar     *progressbar.ProgressBar
	)

	if c.progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription("downloading "+path.Base(resp.Request.URL.Path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(progressBarWidth),
			progressbar.OptionThrottle(progressBarThrottle),
		)
		writers = append(writers, bar)
	}

	size, copyErr := io.Copy(io.MultiWriter(writers...), resp.Body)
	closeErr := file.Close()

	if bar != nil {
		_ = bar.Finish()
		_, _ = fmt.Fprintln(c.progress)
	}

	if copyErr != nil {
		return "", 0, fmt.Errorf("download %s: %w", rawURL, copyErr)
	}

	if closeErr != nil {
		return "", 0, fmt.Errorf("close %s: %w", dest, closeErr)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))

	logger.DebugKV(ctx, "download finished", "url", rawURL, "bytes", size, "sha256", sum)

	return sum, size, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if rawURL == "" {
		return nil, errURLRequired
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("get %s: %w: %s", rawURL, ErrBadHTTPStatus, resp.Status)
	}

	return resp, nil
}

func (c *Client) httpClient(ctx context.Context) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = c.timeout
	client.RetryMax = c.retries
	client.RetryWaitMin = c.retryWait
	client.RetryWaitMax = max(c.retryWait, maxRetryWait)
	client.Logger = newLeveledLogger(ctx)
	// Hand the last response back so non-200 statuses surface as ErrBadHTTPStatus.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return client
}

// leveledLogger adapts the context logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	ctx context.Context //nolint:containedctx // The adapter only forwards the context to the logger package.
}

func newLeveledLogger(ctx context.Context) retryablehttp.LeveledLogger {
	// Per-attempt messages only show up with debug logging.
	level := max(logger.Level(), zapcore.WarnLevel)
	if logger.Level() == zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	scoped := logger.FromContext(ctx).Named("http").WithOptions(logger.WithLevel(level))

	return &leveledLogger{ctx: logger.ToContext(ctx, scoped)}
}

func (l *leveledLogger) Error(msg string, kvs ...any) {
	logger.WarnKV(l.ctx, msg, kvs...)
}

func (l *leveledLogger) Info(msg string, kvs ...any) {
	logger.DebugKV(l.ctx, msg, kvs...)
}

func (l *leveledLogger) Debug(msg string, kvs ...any) {
	logger.DebugKV(l.ctx, msg, kvs...)
}

func (l *leveledLogger) Warn(msg string, kvs ...any) {
	logger.WarnKV(l.ctx, msg, kvs...)
}
