// Records and field spans.
//
// A Record does not own its bytes. Fields are (offset, length) spans into
// the reader's block buffer, which the next ReadRecord, SkipRecord, Seek or
// Close may overwrite or move. Each Record remembers the reader generation
// it was produced in and refuses byte access once the reader has moved on.
// Use Strings or Clone to keep field values.
package dsv

// Field is a span of the reader's buffer.
type Field struct {
	Off int // offset from the start of the buffer
	Len int
}

// Record is one line of the file, valid until the reader's next mutating call.
type Record struct {
	r      *Reader
	gen    uint64
	offset int64
	fields []Field
}

// Len returns the number of fields. An end-of-file record has none.
func (rec Record) Len() int {
	return len(rec.fields)
}

// Offset returns the file offset the record started at.
func (rec Record) Offset() int64 {
	return rec.offset
}

// Span returns the buffer span of field i.
func (rec Record) Span(i int) Field {
	rec.live()
	return rec.fields[i]
}

// Field returns the bytes of field i. The slice aliases the reader's buffer.
func (rec Record) Field(i int) []byte {
	rec.live()
	f := rec.fields[i]
	end := f.Off + f.Len
	return rec.r.buf.data[f.Off:end:end]
}

// String returns a copy of field i.
func (rec Record) String(i int) string {
	return string(rec.Field(i))
}

// Strings copies every field out of the buffer.
func (rec Record) Strings() []string {
	out := make([]string, len(rec.fields))
	for i := range rec.fields {
		out[i] = rec.String(i)
	}
	return out
}

// Clone copies every field into one freshly allocated backing array.
func (rec Record) Clone() [][]byte {
	rec.live()
	total := 0
	for _, f := range rec.fields {
		total += f.Len
	}
	backing := make([]byte, 0, total)
	out := make([][]byte, len(rec.fields))
	for i, f := range rec.fields {
		start := len(backing)
		backing = append(backing, rec.r.buf.data[f.Off:f.Off+f.Len]...)
		out[i] = backing[start:len(backing):len(backing)]
	}
	return out
}

func (rec Record) live() {
	ensure(rec.r != nil && rec.gen == rec.r.gen, "record used after its reader advanced")
}
