package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

func writeFiles(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("doc-%02d.pdf", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(fmt.Sprintf("content %d", i)), 0o644))
	}
	return paths
}

// TestUpload_PreservesOrder verifies references match input order and content.
func TestUpload_PreservesOrder(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	paths := writeFiles(t, src, 10)

	fs := afs.New()
	uploader := NewUploader(fs, "file://"+dst, WithWorkers(3))

	refs, err := uploader.Upload(context.Background(), "pdfdocuments", paths)
	require.NoError(t, err)
	require.Len(t, refs, len(paths))

	for i, ref := range refs {
		assert.Equal(t, "file://"+filepath.Join(dst, "pdfdocuments", filepath.Base(paths[i])), ref)

		data, err := fs.DownloadWithURL(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("content %d", i), string(data))
	}
}

func TestUpload_Empty(t *testing.T) {
	uploader := NewUploader(nil, "file://"+t.TempDir())

	refs, err := uploader.Upload(context.Background(), "pdfdocuments", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestUpload_MissingContainer(t *testing.T) {
	uploader := NewUploader(nil, "file://"+t.TempDir())

	_, err := uploader.Upload(context.Background(), "", []string{"a.pdf"})
	assert.ErrorIs(t, err, ErrContainerRequired)
}

// TestUpload_MissingFile verifies a failure names the offending path.
func TestUpload_MissingFile(t *testing.T) {
	src := t.TempDir()
	paths := writeFiles(t, src, 2)
	missing := filepath.Join(src, "missing.pdf")
	paths = append(paths, missing)

	uploader := NewUploader(nil, "file://"+t.TempDir())

	refs, err := uploader.Upload(context.Background(), "pdfdocuments", paths)
	require.Error(t, err)
	assert.Nil(t, refs)
	assert.Contains(t, err.Error(), missing)
}

// TestUpload_SameBaseName verifies files sharing a name in different
// directories are stored separately.
func TestUpload_SameBaseName(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	var paths []string
	for _, dir := range []string{"guide", "api"} {
		require.NoError(t, os.MkdirAll(filepath.Join(src, dir), 0o755))
		p := filepath.Join(src, dir, "README.md")
		require.NoError(t, os.WriteFile(p, []byte(dir+" content"), 0o644))
		paths = append(paths, p)
	}

	fs := afs.New()
	uploader := NewUploader(fs, "file://"+dst, WithWorkers(2))

	refs, err := uploader.Upload(context.Background(), "pdfdocuments", paths)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0], refs[1])
	assert.Equal(t, "file://"+filepath.Join(dst, "pdfdocuments", "README.md"), refs[0])
	assert.Equal(t, "file://"+filepath.Join(dst, "pdfdocuments", "README-2.md"), refs[1])

	for i, dir := range []string{"guide", "api"} {
		data, err := fs.DownloadWithURL(context.Background(), refs[i])
		require.NoError(t, err)
		assert.Equal(t, dir+" content", string(data))
	}
}

func TestBlobNames(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"distinct", []string{"a/x.pdf", "b/y.pdf"}, []string{"x.pdf", "y.pdf"}},
		{"repeated", []string{"a/README.md", "b/README.md", "c/README.md"}, []string{"README.md", "README-2.md", "README-3.md"}},
		{"suffix already used", []string{"a/README.md", "b/README.md", "c/README-2.md"}, []string{"README.md", "README-3.md", "README-2.md"}},
		{"no extension", []string{"a/LICENSE", "b/LICENSE"}, []string{"LICENSE", "LICENSE-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blobNames(tt.paths))
		})
	}
}

// panickingFS fails every upload with a panic.
type panickingFS struct {
	afs.Service
}

func (panickingFS) Upload(context.Context, string, os.FileMode, io.Reader, ...storage.Option) error {
	panic("connection reset")
}

func TestUpload_PanicBecomesError(t *testing.T) {
	paths := writeFiles(t, t.TempDir(), 2)
	uploader := NewUploader(panickingFS{Service: afs.New()}, "file://"+t.TempDir())

	refs, err := uploader.Upload(context.Background(), "pdfdocuments", paths)
	require.Error(t, err)
	assert.Nil(t, refs)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), paths[0])
}
