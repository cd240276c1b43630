// Input stream abstraction for the reader.
//
// The reader only ever reads forward from the current stream position and
// repositions with an absolute io.SeekStart seek, always to a block boundary. Keeping the
// surface this small lets tests substitute failing or in-memory streams
// through Config.Opener.
package dsv

import (
	"errors"
	"io"
	"os"
)

// Stream is a sequential, seekable byte source of known size. The reader
// only ever seeks with io.SeekStart.
type Stream interface {
	io.ReadSeekCloser
	// Size reports the total number of bytes in the stream.
	Size() int64
}

// Opener opens the stream for a path.
type Opener func(path string) (Stream, error)

// fileStream is the os.File backed Stream returned by OpenFile.
type fileStream struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only and records its size.
func OpenFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.New(path + " is a directory")
	}

	advise(f)
	return &fileStream{f: f, size: info.Size()}, nil
}

func (s *fileStream) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

func (s *fileStream) Size() int64 {
	return s.size
}

func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *fileStream) Close() error {
	return s.f.Close()
}

// readBlock fills p from s. A short count is only returned at end of
// stream, in which case the error is nil.
func readBlock(s Stream, p []byte) (int, error) {
	n, err := io.ReadFull(s, p)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}
