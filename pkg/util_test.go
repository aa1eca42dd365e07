package pkg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBytesToString(t *testing.T) {
	want := "test"
	stringBytes := []byte(want)
	got := BytesToString(stringBytes)
	assert.Equal(t, want, got)
}

func TestPathExists(t *testing.T) {
	exists, err := PathExists("/invalid/path/some-dir", true)
	assert.NoError(t, err)
	assert.False(t, exists)
	exists, err = PathExists("/invalid/path/some-file", false)
	assert.NoError(t, err)
	assert.False(t, exists)

	tempDir := t.TempDir()
	exists, err = PathExists(tempDir, true)
	assert.NoError(t, err)
	assert.True(t, exists)
	exists, err = PathExists(tempDir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
	assert.False(t, exists)

	filePath := filepath.Join(tempDir, "index.html")
	require.NoError(t, os.WriteFile(filePath, []byte("<html></html>"), 0o644))
	exists, err = PathExists(filePath, false)
	assert.NoError(t, err)
	assert.True(t, exists)
	exists, err = PathExists(filePath, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
	assert.False(t, exists)
}

func TestCompress(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "blog", "p1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "blog", "p1", "index.html"), []byte("post"), 0o644))

	buf := &bytes.Buffer{}
	require.NoError(t, Compress(srcDir, buf))

	gzipReader, err := gzip.NewReader(buf)
	require.NoError(t, err)
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	var names []string
	contents := map[string]string{}
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
		if header.Typeflag == tar.TypeReg {
			b, err := io.ReadAll(tarReader)
			require.NoError(t, err)
			contents[header.Name] = string(b)
		}
	}

	sort.Strings(names)
	assert.Equal(t, []string{"blog", "blog/p1", "blog/p1/index.html", "index.html"}, names)
	assert.Equal(t, "home", contents["index.html"])
	assert.Equal(t, "post", contents["blog/p1/index.html"])
}
