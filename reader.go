// Package dsv reads delimiter-separated text files one record at a time
// through a fixed-size block buffer, and indexes files whose records are
// already arranged in contiguous runs per key.
//
// Fields are returned as spans into the reader's buffer rather than copies,
// records that straddle a block boundary are stitched together in place, and
// Seek can jump to any byte offset without rescanning from the start of the
// file. Lines may end in LF or CRLF, the last line may omit its terminator,
// and a leading UTF-8 signature is skipped.
//
// A Reader is not safe for concurrent use.
package dsv

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DefaultBlockSize is the block read size used when Config.BlockSize is zero.
const DefaultBlockSize = 4096

// Config holds reader configuration. Zero values select the defaults.
type Config struct {
	BlockSize          uint32     // Bytes per read (default 4096)
	Delimiter          byte       // Field delimiter (default tab)
	CollapseDelimiters bool       // Treat runs of delimiters as one
	MaxFields          int        // Field limit per record (0 = unbounded)
	Opener             Opener     // Stream factory (default OpenFile)
	Logger             log.Logger // Default: no logging
	Metrics            *Metrics   // Optional
}

// Reader reads records from one open file at a time.
type Reader struct {
	config Config
	logger log.Logger

	stream Stream
	path   string
	size   int64
	buf    blockBuffer

	pos       int   // cursor, relative to buf.start
	recStart  int   // start of the current record, relative to buf.start
	recOffset int64 // file offset of the current record
	eof       bool
	last      byte // last raw byte consumed
	fields    []Field
	fieldOpen bool   // the last field has not been given a length yet
	gen       uint64 // bumped whenever outstanding Records become invalid
}

// NewReader validates config and returns a closed reader.
func NewReader(config Config) (*Reader, error) {
	if config.BlockSize == 0 {
		config.BlockSize = DefaultBlockSize
	}
	if config.Delimiter == 0 {
		config.Delimiter = '\t'
	}
	if config.Opener == nil {
		config.Opener = OpenFile
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}

	switch d := config.Delimiter; {
	case isSignatureByte(d):
		return nil, fmt.Errorf("%w: delimiter %#x is part of the UTF-8 signature", ErrInvalidConfig, d)
	case d == '\r' || d == '\n':
		return nil, fmt.Errorf("%w: delimiter %q is a line terminator", ErrInvalidConfig, d)
	}
	if config.MaxFields < 0 {
		return nil, fmt.Errorf("%w: negative field limit %d", ErrInvalidConfig, config.MaxFields)
	}

	r := &Reader{config: config, logger: config.Logger}
	r.reset()
	return r, nil
}

// reset returns the reader to its post-construction state.
func (r *Reader) reset() {
	r.stream = nil
	r.path = ""
	r.size = 0
	r.buf.release()
	r.pos = 0
	r.recStart = 0
	r.recOffset = 0
	r.eof = true
	r.last = terminator
	r.fields = nil
	r.fieldOpen = false
	r.gen++
}

// Open opens path for reading.
func (r *Reader) Open(path string) error {
	if r.stream != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, r.path)
	}

	s, err := r.config.Opener(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrCannotOpen, path, err)
	}

	r.stream = s
	r.path = path
	r.size = s.Size()
	r.eof = r.Ftell() == r.size

	level.Debug(r.logger).Log("msg", "opened", "path", path, "size", r.size, "block", r.config.BlockSize)
	return nil
}

// Close releases the file and all buffered state. The reader can then open
// another file. Closing a reader that is not open does nothing.
func (r *Reader) Close() error {
	if r.stream == nil {
		return nil
	}

	path := r.path
	err := r.stream.Close()
	r.reset()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrClose, path, err)
	}

	level.Debug(r.logger).Log("msg", "closed", "path", path)
	return nil
}

// Seek positions the reader at offset, interpreted according to whence as
// in io.Seeker, and returns the new offset. The target must lie in
// [0, Size()]. The buffer is reloaded only when the target falls in a
// different block than the one the buffer starts with. On error the reader
// is left where it was. Outstanding Records become invalid.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	target := offset
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		target += r.Ftell()
	case io.SeekEnd:
		target += r.size
	default:
		return r.Ftell(), fmt.Errorf("%w: whence %d", ErrOutOfRange, whence)
	}
	if target < 0 || target > r.size {
		return r.Ftell(), fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, target, r.size)
	}

	block := int64(r.config.BlockSize)
	aligned := target / block * block
	reload := aligned != r.buf.start
	if reload {
		if _, err := r.stream.Seek(aligned, io.SeekStart); err != nil {
			return r.Ftell(), fmt.Errorf("%w: %s at %d: %w", ErrSeek, r.path, aligned, err)
		}
	}

	r.gen++
	r.fields = r.fields[:0]
	r.fieldOpen = false
	r.last = terminator
	r.pos = int(target - aligned)
	r.eof = target == r.size

	if !reload {
		r.skipSignature()
		r.config.Metrics.seek(seekBuffered)
		return r.Ftell(), nil
	}

	r.buf.reset(aligned)
	r.config.Metrics.seek(seekReload)
	level.Debug(r.logger).Log("msg", "seek reloads buffer", "offset", target, "block_start", aligned)
	return target, nil
}

// ReadRecord returns the next record. At end of file it returns an empty
// record and io.EOF.
func (r *Reader) ReadRecord() (Record, error) {
	err := r.next(true)
	rec := Record{r: r, gen: r.gen, offset: r.recOffset}
	if err != nil {
		return rec, err
	}
	rec.fields = r.fields
	r.config.Metrics.record(opRead)
	return rec, nil
}

// SkipRecord advances past the next record exactly as ReadRecord would,
// without collecting its fields. At end of file it returns io.EOF.
func (r *Reader) SkipRecord() error {
	if err := r.next(false); err != nil {
		return err
	}
	r.config.Metrics.record(opSkip)
	return nil
}

// Ftell returns the file offset of the next read.
func (r *Reader) Ftell() int64 {
	return r.buf.start + int64(r.pos)
}

// EOF reports whether the final record has been consumed.
func (r *Reader) EOF() bool {
	return r.eof
}

// IsOpen reports whether a file is open.
func (r *Reader) IsOpen() bool {
	return r.stream != nil
}

// Size returns the size of the open file.
func (r *Reader) Size() int64 {
	return r.size
}

// Path returns the path of the open file.
func (r *Reader) Path() string {
	return r.path
}

// refill makes room for and reads the next block. The in-progress record
// is moved to the front of the buffer first, and its field spans are
// rebased in the same step.
func (r *Reader) refill(build bool) error {
	if drop := min(r.recStart, r.buf.n); drop > 0 {
		check(r.pos >= drop, "cursor inside the retained record")
		if build {
			for i := range r.fields {
				check(r.fields[i].Off >= drop, "field inside the retained record")
				r.fields[i].Off -= drop
			}
		}
		r.buf.shift(drop)
		r.pos -= drop
		r.recStart -= drop
	}

	m, err := r.buf.fill(r.stream, int(r.config.BlockSize))
	r.config.Metrics.block(m)
	if err != nil {
		return fmt.Errorf("%w: %s at %d: %w", ErrRead, r.path, r.buf.end(), err)
	}
	if m == 0 {
		return fmt.Errorf("%w: %s ended at %d, expected %d bytes", ErrTruncated, r.path, r.buf.end(), r.size)
	}

	r.skipSignature()
	return nil
}

var signature = [...]byte{0xEF, 0xBB, 0xBF}

func isSignatureByte(c byte) bool {
	return c == signature[0] || c == signature[1] || c == signature[2]
}

// skipSignature moves the cursor past a UTF-8 signature at the start of the
// file. A block smaller than the signature can leave a one-field record
// started inside it; that record is discarded.
func (r *Reader) skipSignature() bool {
	const size = len(signature)
	if r.buf.start != 0 || r.pos >= size || r.buf.n < size || [size]byte(r.buf.data[:size]) != signature {
		return false
	}

	r.pos = size
	r.recStart = size
	r.recOffset = int64(size)
	r.eof = r.Ftell() == r.size

	if len(r.fields) > 0 {
		ensure(len(r.fields) == 1, "only one field can start inside the signature")
		check(r.config.BlockSize < uint32(size), "record inside the signature needs a block smaller than it")
		r.fields = r.fields[:0]
		r.fieldOpen = false
	}
	r.last = terminator
	return true
}
