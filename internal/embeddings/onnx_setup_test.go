//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlatformArchive(t *testing.T) {
	tests := []struct {
		goos    string
		goarch  string
		want    string
		wantErr bool
	}{
		{"linux", "amd64", "linux-x64", false},
		{"linux", "arm64", "linux-aarch64", false},
		{"darwin", "amd64", "osx-x86_64", false},
		{"darwin", "arm64", "osx-arm64", false},
		{"windows", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := getPlatformArchive(tt.goos, tt.goarch)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedPlatform)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", getLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", getLibraryName("darwin"))
	assert.Equal(t, "libonnxruntime.so", getLibraryName("plan9"))
}

func TestBuildDownloadURL(t *testing.T) {
	url := buildDownloadURL("1.23.0", "linux-x64")
	assert.Equal(t, "https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", url)
}

func TestGetONNXLibraryPath_EnvOverride(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/custom/libonnxruntime.so")
	assert.Equal(t, "/opt/custom/libonnxruntime.so", GetONNXLibraryPath())
}

// makeONNXArchive builds an in-memory tar.gz with the given entries,
// mimicking the layout of an ONNX runtime release tarball.
func makeONNXArchive(t *testing.T, entries map[string]string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return &buf
}

func TestExtractTarGz(t *testing.T) {
	version := "1.23.0"
	platform := "linux-x64"
	libName := getLibraryName(runtime.GOOS)
	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)

	archive := makeONNXArchive(t, map[string]string{
		prefix + libName:                       "fake shared library",
		prefix + "libonnxruntime_providers.so": "provider library",
		"onnxruntime-linux-x64-1.23.0/VERSION": "metadata outside lib, skipped",
	})

	destDir := t.TempDir()
	require.NoError(t, extractTarGz(archive, destDir, version, platform))

	data, err := os.ReadFile(filepath.Join(destDir, libName))
	require.NoError(t, err)
	assert.Equal(t, "fake shared library", string(data))

	_, err = os.Stat(filepath.Join(destDir, "VERSION"))
	assert.True(t, os.IsNotExist(err), "files outside lib/ should not be extracted")
}

func TestExtractTarGz_MissingLibrary(t *testing.T) {
	version := "1.23.0"
	platform := "linux-x64"
	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)

	archive := makeONNXArchive(t, map[string]string{
		prefix + "README": "no library here",
	})

	err := extractTarGz(archive, t.TempDir(), version, platform)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}

func TestExtractTarGz_NotGzip(t *testing.T) {
	err := extractTarGz(strings.NewReader("plain text"), t.TempDir(), "1.23.0", "linux-x64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}
