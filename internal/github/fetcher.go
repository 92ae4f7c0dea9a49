// Package github fetches source documents from a directory of a GitHub
// repository so they can be ingested like local files.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v81/github"
)

var ErrInvalidSource = errors.New("github source must be owner/repo[/dir]")

// DefaultExtensions are the file types the extractors understand.
var DefaultExtensions = []string{".pdf", ".md", ".markdown"}

// Source identifies a directory within a repository.
type Source struct {
	Owner    string
	Repo     string
	BasePath string
}

// ParseSource parses "owner/repo" or "owner/repo/some/dir".
func ParseSource(s string) (Source, error) {
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Source{}, fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
	src := Source{Owner: parts[0], Repo: parts[1]}
	if len(parts) == 3 {
		src.BasePath = parts[2]
	}
	return src, nil
}

func (s Source) String() string {
	return path.Join(s.Owner, s.Repo, s.BasePath)
}

// Fetcher lists and downloads documents from a repository directory
type Fetcher struct {
	client     *Client
	src        Source
	extensions []string
}

// NewFetcher creates a fetcher. With no extensions, DefaultExtensions apply.
func NewFetcher(client *Client, src Source, extensions ...string) *Fetcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Fetcher{
		client:     client,
		src:        src,
		extensions: extensions,
	}
}

// ListDocs recursively lists supported files below the base path. Paths are
// relative to the base path.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.src.BasePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.src.Owner,
		f.src.Repo,
		fullPath,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if f.supported(*item.Name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

func (f *Fetcher) supported(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Download writes one document below destDir, keeping its relative path,
// and returns the local file path.
func (f *Fetcher) Download(ctx context.Context, relativePath, destDir string) (string, error) {
	fullPath := path.Join(f.src.BasePath, relativePath)

	rc, _, err := f.client.Repositories.DownloadContents(ctx, f.src.Owner, f.src.Repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()

	local := filepath.Join(destDir, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(local)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write %s: %w", local, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return local, nil
}

// DownloadAll lists and downloads every supported document, returning local
// paths in listing order.
func (f *Fetcher) DownloadAll(ctx context.Context, destDir string) ([]string, error) {
	docs, err := f.ListDocs(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		local, err := f.Download(ctx, doc, destDir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, local)
	}
	return paths, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base path
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.src.Owner,
		f.src.Repo,
		&github.CommitsListOptions{
			Path: f.src.BasePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.src.BasePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
