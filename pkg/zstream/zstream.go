// Package zstream presents a block-compressed geometry file as a forward-only
// byte stream, so a sequential parser can consume it without decompressing
// the whole file up front.
package zstream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// Compressed geometry file extensions.
const (
	ExtZstd = ".obj-zstd"
	ExtLZ4  = ".obj-lz4"
)

// Default buffer sizes. They match the recommended zstd streaming sizes
// closely enough that one decode step usually fills the output buffer.
const (
	DefaultInSize  = 128 << 10
	DefaultOutSize = 128 << 10
)

// Format identifies the block compression of a file.
type Format int

const (
	FormatZstd Format = iota
	FormatLZ4
)

// String returns the format name as used in configuration.
func (f Format) String() string {
	switch f {
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Ext returns the file extension for compressed geometry in this format.
func (f Format) Ext() string {
	if f == FormatLZ4 {
		return ExtLZ4
	}
	return ExtZstd
}

// ParseFormat converts a configuration name ("zstd", "lz4") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "zstd", "zst":
		return FormatZstd, nil
	case "lz4":
		return FormatLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression format %q", name)
	}
}

// FormatFromPath derives the format from a compressed file's extension.
func FormatFromPath(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ExtZstd):
		return FormatZstd, true
	case strings.HasSuffix(path, ExtLZ4):
		return FormatLZ4, true
	default:
		return 0, false
	}
}

// engine is a decompression engine pulling compressed bytes from the
// Reader's input buffer.
type engine interface {
	io.Reader
	Close()
}

type lz4Engine struct {
	*lz4.Reader
}

func (lz4Engine) Close() {}

type zstdEngine struct {
	*zstd.Decoder
}

// Reader is a sequential, non-seekable view of the decompressed content of
// a file. It is not safe for concurrent use.
type Reader struct {
	path   string
	file   *os.File
	format Format

	// compressed input, filled one block at a time from file
	in      []byte
	inPos   int
	inLen   int
	fileEOF bool
	blocks  int
	ioErr   error

	// decompressed output
	out    []byte
	outPos int
	outLen int

	dec  engine
	done bool
	err  error

	// first and last bytes handed to the engine, for the lz4 end mark check
	head     []byte
	tail     [8]byte
	consumed int64
}

// Option configures Open.
type Option func(*options)

type options struct {
	inSize, outSize int
	format          Format
	formatSet       bool
}

// WithBufferSizes overrides the input and output buffer sizes.
func WithBufferSizes(in, out int) Option {
	return func(o *options) {
		if in > 0 {
			o.inSize = in
		}
		if out > 0 {
			o.outSize = out
		}
	}
}

// WithFormat forces the compression format instead of deriving it from the
// file extension.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
		o.formatSet = true
	}
}

// Open opens a compressed file. On success the first decompressed bytes are
// already buffered. Missing or unreadable files fail with bakeerr.ErrIO,
// undecodable data with bakeerr.ErrCompression.
func Open(path string, opts ...Option) (*Reader, error) {
	o := options{inSize: DefaultInSize, outSize: DefaultOutSize}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.formatSet {
		f, ok := FormatFromPath(path)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unrecognized compressed extension", bakeerr.ErrCompression, path)
		}
		o.format = f
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, bakeerr.IO("opening "+path, err)
	}

	r := &Reader{
		path:   path,
		file:   file,
		format: o.format,
		in:     make([]byte, o.inSize),
		out:    make([]byte, o.outSize),
	}

	// Fill the input buffer once before the engine sees any data.
	if err := r.readBlock(); err != nil {
		file.Close()
		return nil, err
	}

	src := blockSource{r}
	switch o.format {
	case FormatLZ4:
		r.dec = lz4Engine{lz4.NewReader(src)}
	default:
		d, err := zstd.NewReader(src,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
		if err != nil {
			file.Close()
			return nil, r.classify(err)
		}
		r.dec = zstdEngine{d}
	}

	// Decompress once so the first byte is available.
	if err := r.underflow(); err != nil && !errors.Is(err, io.EOF) {
		r.Close()
		return nil, err
	}

	return r, nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.outPos == r.outLen {
		if err := r.underflow(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.out[r.outPos:r.outLen])
	r.outPos += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if r.outPos == r.outLen {
		if err := r.underflow(); err != nil {
			return 0, err
		}
	}
	b := r.out[r.outPos]
	r.outPos++
	return b, nil
}

// Blocks returns how many times the underlying file has been read.
func (r *Reader) Blocks() int {
	return r.blocks
}

// Close releases the decompression engine and the file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// underflow refills the output buffer with one decompression step. The
// engine pulls from the input buffer first; the file is only read once that
// buffer is exhausted.
func (r *Reader) underflow() error {
	if r.err != nil {
		return r.err
	}
	if r.done || r.dec == nil {
		return io.EOF
	}

	for {
		n, err := r.dec.Read(r.out)
		r.outPos, r.outLen = 0, n

		switch {
		case err == nil && n == 0:
			continue
		case err == nil:
			return nil
		case errors.Is(err, io.EOF):
			r.done = true
			if r.format == FormatLZ4 && !r.lz4FrameEnded() {
				// the lz4 reader takes a source EOF between blocks as the end
				r.err = fmt.Errorf("%w: %s: lz4 frame truncated before its end mark", bakeerr.ErrCompression, r.path)
				if n == 0 {
					return r.err
				}
				return nil
			}
			if n == 0 {
				return io.EOF
			}
			return nil
		default:
			r.outLen = 0
			r.err = r.classify(err)
			return r.err
		}
	}
}

// readBlock reads the next block of compressed bytes into the input buffer.
func (r *Reader) readBlock() error {
	if r.fileEOF {
		return io.EOF
	}
	n, err := io.ReadFull(r.file, r.in)
	r.blocks++
	r.inPos, r.inLen = 0, n
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.fileEOF = true
		return nil
	default:
		r.ioErr = bakeerr.IO("reading "+r.path, err)
		return r.ioErr
	}
}

func (r *Reader) classify(err error) error {
	if r.ioErr != nil {
		return r.ioErr
	}
	if errors.Is(err, bakeerr.ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", bakeerr.ErrCompression, r.path, err)
}

// blockSource feeds the engine from the Reader's input buffer.
type blockSource struct {
	r *Reader
}

func (s blockSource) Read(p []byte) (int, error) {
	r := s.r
	if r.inPos == r.inLen {
		if r.fileEOF {
			return 0, io.EOF
		}
		if err := r.readBlock(); err != nil {
			return 0, err
		}
		if r.inLen == 0 {
			return 0, io.EOF
		}
	}
	n := copy(p, r.in[r.inPos:r.inLen])
	r.inPos += n
	r.track(p[:n])
	return n, nil
}

// track records the frame header and the last bytes given to the engine.
func (r *Reader) track(b []byte) {
	if len(r.head) < lz4HeaderPrefix {
		need := min(lz4HeaderPrefix-len(r.head), len(b))
		r.head = append(r.head, b[:need]...)
	}
	if len(b) >= len(r.tail) {
		copy(r.tail[:], b[len(b)-len(r.tail):])
	} else {
		copy(r.tail[:], r.tail[len(b):])
		copy(r.tail[len(r.tail)-len(b):], b)
	}
	r.consumed += int64(len(b))
}

const (
	lz4HeaderPrefix   = 5    // magic and FLG
	lz4FlagContentSum = 0x04 // FLG bit: content checksum follows the end mark
	lz4EndMarkSize    = 4
	lz4ChecksumSize   = 4
)

// lz4FrameEnded reports whether the bytes consumed so far end with the
// frame's zero end mark, followed by the content checksum when the frame
// header announces one.
func (r *Reader) lz4FrameEnded() bool {
	if len(r.head) < lz4HeaderPrefix {
		return false
	}
	trailer := lz4EndMarkSize
	if r.head[4]&lz4FlagContentSum != 0 {
		trailer += lz4ChecksumSize
	}
	if r.consumed < int64(lz4HeaderPrefix+trailer) {
		return false
	}
	start := len(r.tail) - trailer
	for _, b := range r.tail[start : start+lz4EndMarkSize] {
		if b != 0 {
			return false
		}
	}
	return true
}
