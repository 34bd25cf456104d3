package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// Mode selects how Open accesses an existing container.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

type options struct {
	compression    Compression
	compressionSet bool
	log            *zap.Logger
}

// Option configures Create and Open.
type Option func(*options)

// WithCompression sets the codec used for chunks written by this handle.
// Open defaults to the codec recorded in the file header.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
		o.compressionSet = true
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(opts []Option) options {
	o := options{compression: DefaultCompression}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Container is an open OEF file holding named measurement records.
//
// A Container is not safe for concurrent use, and a file must have at most
// one writing handle at a time. Appends are buffered; Close flushes them,
// so a Container must always be closed.
type Container struct {
	path        string
	mode        Mode
	f           *os.File
	w           *bufio.Writer
	compression Compression
	log         *zap.Logger

	// end is the offset of the next frame; tail counts the bytes past the
	// last complete group, discarded before the first append.
	end  int64
	tail int64

	groups map[string]*group
	order  []string
	closed bool
}

// Create creates an empty container at path, replacing any existing file.
func Create(path string, opts ...Option) (*Container, error) {
	o := buildOptions(opts)
	if !o.compression.valid() {
		return nil, fmt.Errorf("storage: unknown compression %d", o.compression)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", path, err)
	}
	hdr := fileHeader{version: formatVersion, compression: o.compression}
	if _, err := f.WriteAt(hdr.marshal(), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: write header: %w", err)
	}
	c := &Container{
		path:        path,
		mode:        ReadWrite,
		f:           f,
		compression: o.compression,
		log:         o.log.With(zap.String("container", path)),
		end:         headerSize,
		groups:      make(map[string]*group),
	}
	c.log.Debug("created", zap.Stringer("compression", c.compression))
	return c, nil
}

// Open opens an existing container. Groups whose frames are incomplete
// (an interrupted append) are ignored; in ReadWrite mode they are cut off
// before the first append.
func Open(path string, mode Mode, opts ...Option) (*Container, error) {
	o := buildOptions(opts)
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	hdr, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	c := &Container{
		path:        path,
		mode:        mode,
		f:           f,
		compression: hdr.compression,
		log:         o.log.With(zap.String("container", path)),
		groups:      make(map[string]*group),
	}
	if o.compressionSet {
		if !o.compression.valid() {
			f.Close()
			return nil, fmt.Errorf("storage: unknown compression %d", o.compression)
		}
		c.compression = o.compression
	}
	if err := c.scan(); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	c.log.Debug("opened", zap.Stringer("mode", mode), zap.Int("records", len(c.order)))
	return c, nil
}

// scan indexes the group frames of the file.
func (c *Container) scan() error {
	info, err := c.f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	off := int64(headerSize)
	valid := off
	for off < size {
		fh, err := readFrameHeader(c.f, off, size)
		if errors.Is(err, errTruncated) {
			break
		}
		if err != nil {
			return err
		}
		next := off + frameHeaderSize + int64(fh.length)
		switch fh.kind {
		case frameChunk:
			// checked when read
		case frameGroup:
			g, err := c.readGroupFrame(off, fh)
			if err != nil {
				c.log.Warn("skipping unreadable group frame", zap.Int64("offset", off), zap.Error(err))
				break
			}
			if _, dup := c.groups[g.name]; dup {
				c.log.Warn("skipping duplicate group", zap.String("group", g.name), zap.Int64("offset", off))
				break
			}
			g.offset = off
			c.groups[g.name] = g
			c.order = append(c.order, g.name)
			valid = next
		default:
			c.log.Warn("skipping unknown frame", zap.Stringer("kind", fh.kind), zap.Int64("offset", off))
		}
		off = next
	}
	c.end = valid
	c.tail = size - valid
	if c.tail > 0 {
		c.log.Warn("ignoring incomplete tail", zap.Int64("offset", valid), zap.Int64("bytes", c.tail))
	}
	return nil
}

func (c *Container) readGroupFrame(off int64, fh frameHeader) (*group, error) {
	payload, err := readFramePayload(c.f, off, fh)
	if err != nil {
		return nil, err
	}
	return unmarshalGroup(payload)
}

// Path returns the file path of the container.
func (c *Container) Path() string { return c.path }

// Compression returns the codec used for new chunks.
func (c *Container) Compression() Compression { return c.compression }

// Names returns the record names in the order they were appended.
func (c *Container) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Container) Len() int { return len(c.order) }

func (c *Container) Has(name string) bool {
	_, ok := c.groups[name]
	return ok
}

// DeriveName returns the record name used when Append is given none: the
// base name of the source file without its extension.
func DeriveName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "record"
	}
	return name
}

// Append validates raw, stores it as a new record and returns the record
// name. An empty name is derived from raw.SourcePath with DeriveName.
// Existing records are never replaced: a taken name yields a
// *NamingConflictError.
func (c *Container) Append(name string, raw *tlp.RawData) (string, error) {
	d, err := tlp.NewDroplet(raw)
	if err != nil {
		return "", fmt.Errorf("storage: append: %w", err)
	}
	return c.AppendDroplet(name, d)
}

// AppendDroplet stores an already validated record.
func (c *Container) AppendDroplet(name string, d *tlp.Droplet) (string, error) {
	return c.appendSchema(name, d, schemaCurrent)
}

func (c *Container) appendSchema(name string, d *tlp.Droplet, schema int) (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	if c.mode != ReadWrite {
		return "", ErrReadOnly
	}
	if name == "" {
		name = DeriveName(d.OriginalFilePath())
	}
	if c.Has(name) {
		return "", &NamingConflictError{Name: name}
	}
	if err := c.prepareWrite(); err != nil {
		return "", err
	}

	g, err := c.encodeDroplet(name, d, schema)
	if err != nil {
		return "", err
	}
	g.offset = c.end
	if err := c.writeFrame(frameGroup, g.marshal()); err != nil {
		return "", err
	}
	c.groups[name] = g
	c.order = append(c.order, name)
	c.log.Info("appended", zap.String("record", name),
		zap.String("tester", d.TesterName()), zap.Int("points", d.TLPCurve().Len()))
	return name, nil
}

// prepareWrite cuts off an incomplete tail and sets up the buffered writer.
func (c *Container) prepareWrite() error {
	if c.w != nil {
		return nil
	}
	if c.tail > 0 {
		if err := c.f.Truncate(c.end); err != nil {
			return fmt.Errorf("storage: discard incomplete tail: %w", err)
		}
		c.log.Warn("discarded incomplete tail", zap.Int64("offset", c.end), zap.Int64("bytes", c.tail))
		c.tail = 0
	}
	c.w = bufio.NewWriterSize(io.NewOffsetWriter(c.f, c.end), 1<<16)
	return nil
}

func (c *Container) writeFrame(kind frameKind, payload []byte) error {
	if len(payload) > maxFramePayload {
		return fmt.Errorf("storage: %s frame of %d bytes is too large", kind, len(payload))
	}
	n, err := c.w.Write(appendFrame(nil, kind, payload))
	c.end += int64(n)
	if err != nil {
		return fmt.Errorf("storage: write %s frame: %w", kind, err)
	}
	return nil
}

// flushBuffer makes buffered frames visible to reads through the file.
func (c *Container) flushBuffer() error {
	if c.w == nil || c.w.Buffered() == 0 {
		return nil
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("storage: flush: %w", err)
	}
	return nil
}

// Read returns the record stored under name. Waveform samples stay on disk
// until requested through the returned record's Pulses.
func (c *Container) Read(name string) (*tlp.Droplet, error) {
	if c.closed {
		return nil, ErrClosed
	}
	g, ok := c.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	if err := c.flushBuffer(); err != nil {
		return nil, err
	}
	return c.decodeDroplet(g)
}

// Walk calls fn for every record in append order. A record that fails to
// load is passed with its error (a *StructureError for a malformed group)
// and the walk goes on. Walk stops at the first error fn returns.
func (c *Container) Walk(fn func(name string, d *tlp.Droplet, err error) error) error {
	if c.closed {
		return ErrClosed
	}
	for _, name := range c.Names() {
		d, err := c.Read(name)
		if err := fn(name, d, err); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered appends to the file and syncs it.
func (c *Container) Flush() error {
	if c.closed {
		return ErrClosed
	}
	if c.mode != ReadWrite {
		return nil
	}
	if err := c.flushBuffer(); err != nil {
		return err
	}
	if err := c.f.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}
	return nil
}

// Close flushes pending appends and releases the file. Records read from
// the container can no longer load waveform samples afterwards.
func (c *Container) Close() error {
	if c.closed {
		return ErrClosed
	}
	flushErr := c.Flush()
	c.closed = true
	closeErr := c.f.Close()
	c.log.Debug("closed", zap.Int("records", len(c.order)))
	return errors.Join(flushErr, closeErr)
}
