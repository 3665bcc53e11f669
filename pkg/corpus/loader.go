package corpus

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/telemetry"
)

var (
	// DefaultInclude selects every Markdown file under the root
	DefaultInclude = []string{"**/*.md"}
	// DefaultExclude skips VCS metadata and vendored JavaScript packages
	DefaultExclude = []string{"**/.git/**", "**/node_modules/**"}
)

const (
	// DefaultReadTimeout bounds a single file read
	DefaultReadTimeout = 10 * time.Second
	// DefaultReadRetries is the number of attempts made for a transient read error
	DefaultReadRetries = 3
)

var tracer = telemetry.Tracer("corpuscheck.corpus")

// ReadFunc reads a whole file
type ReadFunc func(path string) ([]byte, error)

// Loader walks a directory tree and parses every selected Markdown file
type Loader struct {
	include     []string
	exclude     []string
	workers     int
	readTimeout time.Duration
	readRetries uint
	readFile    ReadFunc
}

// Option is a function that configures a Loader
type Option func(*Loader) error

// WithInclude sets the doublestar patterns a file must match to be loaded
func WithInclude(patterns ...string) Option {
	return func(l *Loader) error {
		if len(patterns) == 0 {
			return errors.New("at least one include pattern must be specified")
		}
		if err := validatePatterns(patterns); err != nil {
			return err
		}
		l.include = patterns
		return nil
	}
}

// WithExclude sets the doublestar patterns that remove files from the load.
// A pattern ending in "/**" also stops the walk from descending into the
// matching directory.
func WithExclude(patterns ...string) Option {
	return func(l *Loader) error {
		if err := validatePatterns(patterns); err != nil {
			return err
		}
		l.exclude = patterns
		return nil
	}
}

// WithWorkers sets the number of files read concurrently
func WithWorkers(n int) Option {
	return func(l *Loader) error {
		if n < 1 {
			return errors.Errorf("workers must be at least 1, got %d", n)
		}
		l.workers = n
		return nil
	}
}

// WithReadTimeout bounds each file read. Zero disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Loader) error {
		if d < 0 {
			return errors.Errorf("read timeout cannot be negative: %s", d)
		}
		l.readTimeout = d
		return nil
	}
}

// WithReadRetries sets how many attempts are made when a read fails with a
// transient error such as EINTR or EAGAIN
func WithReadRetries(n int) Option {
	return func(l *Loader) error {
		if n < 1 {
			return errors.Errorf("read retries must be at least 1, got %d", n)
		}
		l.readRetries = uint(n)
		return nil
	}
}

// WithReadFunc replaces os.ReadFile as the file reader
func WithReadFunc(fn ReadFunc) Option {
	return func(l *Loader) error {
		if fn == nil {
			return errors.New("read function cannot be nil")
		}
		l.readFile = fn
		return nil
	}
}

// NewLoader creates a loader with defaults overridden by opts
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		include:     DefaultInclude,
		exclude:     DefaultExclude,
		workers:     runtime.NumCPU(),
		readTimeout: DefaultReadTimeout,
		readRetries: DefaultReadRetries,
		readFile:    os.ReadFile,
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, errors.Wrap(err, "failed to apply loader option")
		}
	}

	return l, nil
}

// LoadCorpus loads the tree under root with a loader built from opts
func LoadCorpus(ctx context.Context, root string, opts ...Option) (*Corpus, error) {
	l, err := NewLoader(opts...)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, root)
}

type fileResult struct {
	record  *DocumentRecord
	loadErr *LoadError
}

// Load walks root and parses every selected file concurrently. Problems with
// individual files are collected into the returned corpus; an error is only
// returned when root itself cannot be walked or ctx is cancelled.
func (l *Loader) Load(ctx context.Context, root string) (*Corpus, error) {
	ctx, span := tracer.Start(ctx, "corpus.load", trace.WithAttributes(
		attribute.String("corpus.root", root),
		attribute.Int("corpus.workers", l.workers),
	))
	defer span.End()

	c, err := l.load(ctx, root)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("corpus.documents", c.Len()),
		attribute.Int("corpus.load_errors", len(c.Errors)),
	)
	span.SetStatus(codes.Ok, "")
	return c, nil
}

func (l *Loader) load(ctx context.Context, root string) (*Corpus, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to access corpus root '%s'", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("corpus root '%s' is not a directory", root)
	}

	files, walkErrors, err := l.collectFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"root":  root,
		"files": len(files),
	}).Debug("Collected corpus files")

	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			results[i] = l.loadFile(gctx, root, rel)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "corpus load cancelled")
	}

	records := make([]*DocumentRecord, 0, len(results))
	loadErrors := walkErrors
	for _, r := range results {
		if r.record != nil {
			records = append(records, r.record)
		}
		if r.loadErr != nil {
			loadErrors = append(loadErrors, *r.loadErr)
		}
	}

	c := NewCorpus(root, records, loadErrors)

	counts := c.CountByKind()
	logger.G(ctx).WithFields(map[string]interface{}{
		"root":        root,
		"documents":   c.Len(),
		"skills":      counts[KindSkill],
		"agents":      counts[KindAgent],
		"references":  counts[KindReference],
		"load_errors": len(c.Errors),
	}).Info("Loaded corpus")

	return c, nil
}

// collectFiles returns the selected files as sorted slash-separated paths
// relative to root, plus ReadFailed errors for unreadable subdirectories
func (l *Loader) collectFiles(ctx context.Context, root string) ([]string, []LoadError, error) {
	var files []string
	var loadErrors []LoadError

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			if rel == "." {
				return walkErr
			}
			logger.G(ctx).WithError(walkErr).WithField("path", rel).Warn("Failed to read corpus entry")
			loadErrors = append(loadErrors, LoadError{
				Kind:    ReadFailed,
				Path:    rel,
				Message: walkErr.Error(),
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if rel != "." && l.excludesDir(rel) {
				logger.G(ctx).WithField("directory", rel).Debug("Skipping excluded directory")
				return filepath.SkipDir
			}
			return nil
		}

		if l.selects(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to walk corpus root '%s'", root)
	}

	return files, loadErrors, nil
}

func (l *Loader) selects(rel string) bool {
	if !matchAny(l.include, rel) {
		return false
	}
	return !matchAny(l.exclude, rel)
}

func (l *Loader) excludesDir(rel string) bool {
	for _, pattern := range l.exclude {
		dirPattern, ok := strings.CutSuffix(pattern, "/**")
		if !ok {
			continue
		}
		if matched, _ := doublestar.Match(dirPattern, rel); matched {
			return true
		}
	}
	return false
}

func (l *Loader) loadFile(ctx context.Context, root, rel string) fileResult {
	full := filepath.Join(root, filepath.FromSlash(rel))

	content, err := l.read(ctx, full)
	if err != nil {
		if ctx.Err() != nil {
			return fileResult{}
		}

		kind := ReadFailed
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			kind = Timeout
			msg = "read did not complete within " + l.readTimeout.String()
		}

		logger.G(ctx).WithError(err).WithField("path", rel).Warn("Failed to load document")
		return fileResult{loadErr: &LoadError{Kind: kind, Path: rel, Message: msg}}
	}

	record, loadErr := ParseDocument(rel, content)
	if loadErr != nil {
		logger.G(ctx).WithField("path", rel).WithField("reason", loadErr.Message).Warn("Malformed frontmatter")
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"path":  rel,
		"kind":  record.Kind,
		"links": len(record.OutboundLinks),
	}).Debug("Loaded document")

	return fileResult{record: record, loadErr: loadErr}
}

// read reads path, giving up with context.DeadlineExceeded once the read
// timeout elapses. A read stuck in the filesystem keeps its goroutine until
// the underlying call returns.
func (l *Loader) read(ctx context.Context, p string) ([]byte, error) {
	if l.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.readTimeout)
		defer cancel()
	}

	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)

	go func() {
		data, err := l.readWithRetry(ctx, p)
		done <- readResult{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) readWithRetry(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			var err error
			data, err = l.readFile(p)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(l.readRetries),
		retry.Delay(10*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransientReadError),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("path", p).WithField("attempt", n+1).Debug("retrying file read")
		}),
	)
	return data, err
}

func isTransientReadError(err error) bool {
	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid glob pattern '%s'", pattern)
		}
		if path.IsAbs(pattern) {
			return errors.Errorf("glob pattern '%s' must be relative to the corpus root", pattern)
		}
	}
	return nil
}
