// Package blob uploads local source files into a named container of an
// afs-addressable store (local file system, gs://, s3://).
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
)

// DefaultWorkers is the number of concurrent uploads.
const DefaultWorkers = 4

var ErrContainerRequired = errors.New("container name is required")

// Uploader copies files to {baseURL}/{container}/{file name}. Files sharing a
// base name within one upload are given distinct names.
type Uploader struct {
	fs      afs.Service
	baseURL string
	workers int
	logger  *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithWorkers bounds the number of concurrent uploads.
func WithWorkers(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.workers = n
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUploader creates an Uploader rooted at baseURL.
func NewUploader(fs afs.Service, baseURL string, opts ...Option) *Uploader {
	if fs == nil {
		fs = afs.New()
	}
	u := &Uploader{
		fs:      fs,
		baseURL: baseURL,
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With("component", "blob")
	return u
}

// Upload stores every path in container and returns their URLs in input order.
// The first failure, in input order, is returned.
func (u *Uploader) Upload(ctx context.Context, container string, paths []string) ([]string, error) {
	if container == "" {
		return nil, ErrContainerRequired
	}
	if len(paths) == 0 {
		return []string{}, nil
	}

	containerURL := url.Join(u.baseURL, container)
	if err := u.ensureContainer(ctx, containerURL); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(min(u.workers, len(paths)))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload pool: %w", err)
	}
	defer pool.Release()

	names := blobNames(paths)
	refs := make([]string, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					refs[i], errs[i] = "", fmt.Errorf("upload panicked: %v", r)
				}
			}()
			refs[i], errs[i] = u.uploadFile(ctx, url.Join(containerURL, names[i]), path)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", paths[i], err)
		}
	}

	return refs, nil
}

// blobNames assigns each path a distinct object name. The first file with a
// given base name keeps it; later ones get a numeric suffix before the
// extension, e.g. README-2.md.
func blobNames(paths []string) []string {
	names := make([]string, len(paths))
	taken := make(map[string]bool, len(paths))
	for _, p := range paths {
		taken[filepath.Base(p)] = true
	}

	assigned := make(map[string]bool, len(paths))
	for i, p := range paths {
		name := filepath.Base(p)
		if assigned[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
				if !taken[candidate] {
					name = candidate
					break
				}
			}
		}
		names[i] = name
		taken[name] = true
		assigned[name] = true
	}
	return names
}

func (u *Uploader) uploadFile(ctx context.Context, target, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := u.fs.Upload(ctx, target, file.DefaultFileOsMode, f); err != nil {
		return "", err
	}

	u.logger.Debug("uploaded", "path", path, "url", target)
	return target, nil
}

func (u *Uploader) ensureContainer(ctx context.Context, containerURL string) error {
	exists, err := u.fs.Exists(ctx, containerURL)
	if err != nil {
		return fmt.Errorf("failed to check container %s: %w", containerURL, err)
	}
	if exists {
		return nil
	}
	if err := u.fs.Create(ctx, containerURL, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create container %s: %w", containerURL, err)
	}
	return nil
}
