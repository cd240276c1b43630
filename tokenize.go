// Record tokenizer.
//
// ReadRecord and SkipRecord share one scanning loop; build selects whether
// field spans are collected. Both advance the cursor identically, so the
// offsets seen by SkipRecord are exactly those seen by ReadRecord.
//
// The loop keeps one byte of lookahead in the buffer so that a CR at the
// end of a block can be paired with an LF at the start of the next. When
// the file's last byte is at the cursor, the terminator written past the
// valid data serves as the lookahead.
package dsv

import "io"

// next scans one record starting at the cursor.
func (r *Reader) next(build bool) error {
	r.gen++
	r.fields = r.fields[:0]
	r.fieldOpen = false
	r.last = terminator
	r.recStart = r.pos
	r.recOffset = r.Ftell()

	if r.eof {
		return io.EOF
	}

	for {
		for r.pos+1 >= r.buf.n && r.buf.end() < r.size {
			if err := r.refill(build); err != nil {
				return err
			}
		}

		// A skipped signature can leave nothing of the record to read.
		if r.eof && r.pos == r.recStart {
			return io.EOF
		}

		if build {
			r.startField()
		}
		if !r.advance(build) {
			return nil
		}
	}
}

// startField opens a new field at the cursor when the previous byte ended a
// field or the record is just starting. With CollapseDelimiters set, no
// field opens in front of another delimiter or the end of the data.
func (r *Reader) startField() {
	if len(r.fields) > 0 && !r.splits(r.last) {
		return
	}
	if r.config.CollapseDelimiters && (r.pos >= r.buf.n || r.buf.data[r.pos] == r.config.Delimiter) {
		return
	}
	r.fields = append(r.fields, Field{Off: r.pos})
	r.fieldOpen = true
}

// splits reports whether c separates fields. Once the record holds
// MaxFields fields, delimiters become part of the last one.
func (r *Reader) splits(c byte) bool {
	return c == r.config.Delimiter && (r.config.MaxFields == 0 || len(r.fields) < r.config.MaxFields)
}

// advance consumes the byte at the cursor. It returns false once the record
// has ended, in which case the cursor is already past the line terminator.
func (r *Reader) advance(build bool) bool {
	if r.endOfRecord(build) {
		return false
	}

	if build && r.splits(r.last) {
		r.closeField()
	}

	r.pos++
	r.eof = r.Ftell() == r.size
	return true
}

// endOfRecord recognises CRLF, a lone LF and the end of the file. A lone CR
// is ordinary content.
func (r *Reader) endOfRecord(build bool) bool {
	if r.eof {
		r.last = terminator
		if build {
			r.closeField()
		}
		return true
	}

	check(r.pos < r.buf.n, "cursor within valid data")
	c := r.buf.data[r.pos]
	r.last = c

	switch {
	case c == '\r' && r.buf.data[r.pos+1] == '\n':
		if build {
			r.closeField()
		}
		r.pos += 2
	case c == '\n':
		if build {
			r.closeField()
		}
		r.pos++
	default:
		return false
	}

	r.eof = r.Ftell() == r.size
	return true
}

// closeField ends the open field at the cursor.
func (r *Reader) closeField() {
	if !r.fieldOpen {
		return
	}
	f := &r.fields[len(r.fields)-1]
	f.Len = r.pos - f.Off
	r.fieldOpen = false
}
