// Block buffer for the reader.
//
// The buffer holds the unconsumed tail of the previous block (a record that
// straddles the boundary) followed by one freshly read block, plus one
// terminator byte past the valid data so the tokenizer can always look one
// byte ahead when testing for CRLF. The stream is never read out of order:
// its position always equals start+n, so fill appends the bytes that follow
// the buffer in the file.
package dsv

// terminator is written just past the valid data.
const terminator = 0

type blockBuffer struct {
	data  []byte // n valid bytes and the terminator; empty when unloaded
	n     int    // number of valid bytes
	start int64  // file offset of data[0]
}

// end returns the file offset just past the valid data.
func (b *blockBuffer) end() int64 {
	return b.start + int64(b.n)
}

// reset unloads the buffer and rebases it at start. Storage is kept for reuse.
func (b *blockBuffer) reset(start int64) {
	b.data = b.data[:0]
	b.n = 0
	b.start = start
}

// release drops the storage as well.
func (b *blockBuffer) release() {
	*b = blockBuffer{}
}

// shift discards the first drop bytes, moving the rest to the front.
func (b *blockBuffer) shift(drop int) {
	check(drop >= 0 && drop <= b.n, "shift within valid data")
	copy(b.data, b.data[drop:b.n])
	b.n -= drop
	b.start += int64(drop)
}

// fill reads up to size more bytes from s onto the end of the valid data
// and rewrites the terminator. It returns the number of bytes added, which
// is less than size only at the end of the stream.
func (b *blockBuffer) fill(s Stream, size int) (int, error) {
	need := b.n + size + 1
	if cap(b.data) < need {
		grown := make([]byte, need)
		copy(grown, b.data[:b.n])
		b.data = grown
	}
	b.data = b.data[:need]

	m, err := readBlock(s, b.data[b.n:b.n+size])
	b.n += m
	b.data[b.n] = terminator
	b.data = b.data[:b.n+1]
	return m, err
}
