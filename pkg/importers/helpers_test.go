package importers

import (
	"archive/tar"
	"archive/zip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

type member struct {
	name string
	body string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, members []member) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeTar(t *testing.T, path string, members []member, compress bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var tw *tar.Writer
	var gw *gzip.Writer
	if compress {
		gw = gzip.NewWriter(f)
		tw = tar.NewWriter(gw)
	} else {
		tw = tar.NewWriter(f)
	}
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.name,
			Mode:     0o644,
			Size:     int64(len(m.body)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	if gw != nil {
		require.NoError(t, gw.Close())
	}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func csvRow(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = ftoa(v)
	}
	return strings.Join(parts, ",")
}
