package importers

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

var errNotArchive = errors.New("importers: not a recognized archive")

// memberSource lists and reads the members of a waveform or leakage store:
// a plain directory, a ZIP or a TAR (optionally gzip-compressed).
type memberSource interface {
	Kind() string
	Names() []string
	ReadFile(name string) ([]byte, error)
	Close() error
}

type archiveKind int

const (
	notArchive archiveKind = iota
	zipArchive
	tarArchive
	tarGzArchive
)

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// sniff recognizes an archive by its signature. File extensions are never
// consulted.
func sniff(path string) (archiveKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return notArchive, err
	}
	defer f.Close()

	head, err := readHead(f)
	if err != nil {
		return notArchive, err
	}
	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return zipArchive, nil
	case isUstar(head):
		return tarArchive, nil
	case bytes.HasPrefix(head, gzipMagic):
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return notArchive, err
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			return notArchive, nil
		}
		defer zr.Close()
		inner, err := readHead(zr)
		if err != nil {
			return notArchive, nil
		}
		if isUstar(inner) {
			return tarGzArchive, nil
		}
	}
	return notArchive, nil
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func isUstar(head []byte) bool {
	return len(head) >= 262 && string(head[257:262]) == "ustar"
}

// openSource opens path as a directory or a recognized archive.
func openSource(path string) (memberSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &dirSource{dir: path}, nil
	}
	kind, err := sniff(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case zipArchive:
		return openZip(path)
	case tarArchive:
		return openTar(path, false)
	case tarGzArchive:
		return openTar(path, true)
	default:
		return nil, fmt.Errorf("%w: %s", errNotArchive, path)
	}
}

// locate returns the first candidate that exists, can be opened and holds
// at least one member accepted by match. A nil source with a nil error
// means no candidate qualifies.
func (b base) locate(match func(name string) bool, candidates ...string) (memberSource, string, error) {
	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		src, err := openSource(c)
		if errors.Is(err, errNotArchive) {
			b.log.Debug("skipping unrecognized file", zap.String("path", c))
			continue
		}
		if err != nil {
			return nil, c, err
		}
		if !hasMember(src, match) {
			b.log.Debug("skipping store without members", zap.String("path", c), zap.String("kind", src.Kind()))
			src.Close()
			continue
		}
		b.log.Debug("found members", zap.String("path", c), zap.String("kind", src.Kind()))
		return src, c, nil
	}
	return nil, "", nil
}

func hasMember(src memberSource, match func(string) bool) bool {
	for _, name := range src.Names() {
		if match(name) {
			return true
		}
	}
	return false
}

// csvMember accepts members whose base name contains ".csv".
func csvMember(name string) bool {
	return strings.Contains(path.Base(name), ".csv")
}

type dirSource struct {
	dir string
}

func (s *dirSource) Kind() string { return "directory" }

func (s *dirSource) Names() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}

func (s *dirSource) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s *dirSource) Close() error { return nil }

type zipSource struct {
	rc    *zip.ReadCloser
	files map[string]*zip.File
	names []string
}

func openZip(path string) (*zipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	s := &zipSource{rc: rc, files: make(map[string]*zip.File)}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		s.files[f.Name] = f
		s.names = append(s.names, f.Name)
	}
	return s, nil
}

func (s *zipSource) Kind() string    { return "zip" }
func (s *zipSource) Names() []string { return append([]string(nil), s.names...) }

func (s *zipSource) ReadFile(name string) ([]byte, error) {
	f, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("importers: zip member %s: %w", name, fs.ErrNotExist)
	}
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *zipSource) Close() error { return s.rc.Close() }

// tarSource holds the regular members of a tar archive in memory. Tar is a
// sequential format, so members are read once when the archive is opened
// and the file is closed right away.
type tarSource struct {
	kind  string
	files map[string][]byte
	names []string
}

func openTar(path string, gz bool) (*tarSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	kind := "tar"
	if gz {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
		kind = "tar.gz"
	}

	s := &tarSource{kind: kind, files: make(map[string][]byte)}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importers: read %s: %w", path, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("importers: read %s member %s: %w", path, hdr.Name, err)
		}
		s.files[hdr.Name] = data
		s.names = append(s.names, hdr.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

func (s *tarSource) Kind() string    { return s.kind }
func (s *tarSource) Names() []string { return append([]string(nil), s.names...) }

func (s *tarSource) ReadFile(name string) ([]byte, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("importers: tar member %s: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

func (s *tarSource) Close() error { return nil }
