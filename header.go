// Header of an index snapshot file.
//
// The header is exactly HeaderSize bytes: a JSON object padded with spaces
// and terminated with a newline, so `head -1` shows it. The compressed body
// starts immediately after it.
package dsv

import (
	"bytes"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// HeaderSize is the fixed size of the snapshot header in bytes.
const HeaderSize = 128

// SnapshotVersion is written to new snapshots.
const SnapshotVersion = 1

// Header describes a snapshot file.
type Header struct {
	Version   int    `json:"_v"`   // Format version
	Algorithm int    `json:"_alg"` // Checksum algorithm (1=xxHash3, 2=FNV1a, 3=Blake2b)
	KeyField  int    `json:"_k"`   // Field the index groups by
	Entries   int    `json:"_n"`   // Number of groups
	Source    int64  `json:"_s"`   // Size of the indexed file
	Checksum  string `json:"_c"`   // Digest of the uncompressed body
	Timestamp int64  `json:"_ts"`  // Unix milliseconds when written
}

// header reads and parses the header from a snapshot file.
func header(f *os.File) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, ErrCorruptHeader
	}
	if buf[HeaderSize-1] != '\n' {
		return nil, ErrCorruptHeader
	}

	var hdr Header
	if err := json.Unmarshal(bytes.TrimSpace(buf), &hdr); err != nil {
		return nil, ErrCorruptHeader
	}
	if hdr.Version != SnapshotVersion || !validAlgorithm(hdr.Algorithm) || hdr.Entries < 0 || hdr.KeyField < 0 {
		return nil, ErrCorruptHeader
	}
	return &hdr, nil
}

// encode serialises the header to exactly HeaderSize bytes with padding.
func (h *Header) encode() ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}

	// Pad with spaces to HeaderSize-1, then add newline
	if len(data) > HeaderSize-1 {
		return nil, ErrCorruptHeader // header too large
	}

	buf := bytes.Repeat([]byte{' '}, HeaderSize)
	copy(buf, data)
	buf[HeaderSize-1] = '\n'
	return buf, nil
}

// now returns the current time in unix milliseconds.
func now() int64 {
	return time.Now().UnixMilli()
}
