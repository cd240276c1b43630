// Group index over files arranged in contiguous runs per key.
//
// The input does not have to be sorted, only grouped: every record sharing a
// key value must sit next to the others. CreateIndex makes one forward pass
// and records, for each key, the byte range and number of records of its
// run, so a later lookup is a map access followed by a single Seek.
package dsv

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Group is the half-open byte range [Begin, End) covering one run of
// records with the same key. The zero Group means "not found"; a real group
// always has Count >= 1.
type Group struct {
	Begin uint64
	End   uint64
	Count uint64
}

// IndexConfig holds index options. Zero values select the defaults.
type IndexConfig struct {
	HashAlgorithm int        // Snapshot checksum (default AlgXXHash3)
	Logger        log.Logger // Default: no logging
	Metrics       *Metrics   // Optional
}

func (c IndexConfig) withDefaults() (IndexConfig, error) {
	if c.HashAlgorithm == 0 {
		c.HashAlgorithm = AlgXXHash3
	}
	if !validAlgorithm(c.HashAlgorithm) {
		return c, fmt.Errorf("%w: hash algorithm %d", ErrInvalidConfig, c.HashAlgorithm)
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	return c, nil
}

// GroupIndex maps key values to their groups. It is immutable once built
// and safe for concurrent lookups.
type GroupIndex struct {
	catalogue map[string]Group
	keyField  int
	source    int64 // size of the indexed file
	config    IndexConfig
}

// CreateIndex builds an index of r grouped by the field at keyField. The
// first record is a header and is skipped. r is rewound first and is left at
// end of file.
//
// A key that reappears after its run has ended fails with ErrDuplicateKey;
// a record without the key field fails with ErrMalformedRecord.
func CreateIndex(r *Reader, keyField int, config IndexConfig) (*GroupIndex, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	if keyField < 0 {
		return nil, fmt.Errorf("%w: negative key field %d", ErrInvalidConfig, keyField)
	}

	ix := &GroupIndex{
		catalogue: make(map[string]Group),
		keyField:  keyField,
		source:    r.Size(),
		config:    config,
	}
	if err := ix.build(r); err != nil {
		level.Error(config.Logger).Log("msg", "index build failed", "path", r.Path(), "key_field", keyField, "err", err)
		return nil, err
	}

	config.Metrics.groups(len(ix.catalogue))
	level.Info(config.Logger).Log("msg", "index built", "path", r.Path(), "key_field", keyField, "groups", len(ix.catalogue))
	return ix, nil
}

func (ix *GroupIndex) build(r *Reader) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}

	// skip the header row
	if err := r.SkipRecord(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	var (
		key   string
		group Group
	)
	for !r.EOF() {
		begin := r.Ftell()
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ix.keyField >= rec.Len() {
			return fmt.Errorf("%w: record at offset %d has %d fields, key field is %d",
				ErrMalformedRecord, rec.Offset(), rec.Len(), ix.keyField)
		}

		field := rec.Field(ix.keyField)
		end := uint64(r.Ftell())
		if group.Count > 0 && string(field) == key {
			group.End = end
			group.Count++
			continue
		}

		if group.Count > 0 {
			if err := ix.commit(key, group); err != nil {
				return err
			}
		}
		key = string(field)
		group = Group{Begin: uint64(begin), End: end, Count: 1}
	}

	if group.Count > 0 {
		return ix.commit(key, group)
	}
	return nil
}

// commit stores a finished group. Keys are expected not to repeat once
// their run has closed.
func (ix *GroupIndex) commit(key string, g Group) error {
	if prev, ok := ix.catalogue[key]; ok {
		return fmt.Errorf("%w: %q at [%d, %d) already grouped at [%d, %d)",
			ErrDuplicateKey, key, g.Begin, g.End, prev.Begin, prev.End)
	}
	ix.catalogue[key] = g
	return nil
}

// Find returns the group for key, or the zero Group if there is none.
func (ix *GroupIndex) Find(key string) Group {
	return ix.catalogue[key]
}

// Len returns the number of groups.
func (ix *GroupIndex) Len() int {
	return len(ix.catalogue)
}

// Keys returns every key in ascending order.
func (ix *GroupIndex) Keys() []string {
	return slices.Sorted(maps.Keys(ix.catalogue))
}

// KeyField returns the field index the catalogue is keyed by.
func (ix *GroupIndex) KeyField() int {
	return ix.keyField
}

// SourceSize returns the size of the file the index was built from.
func (ix *GroupIndex) SourceSize() int64 {
	return ix.source
}

// Records seeks r to the group for key and passes each of its records to
// fn. Records are only valid for the duration of the call. A missing key
// calls fn zero times. r must have the indexed file open.
func (ix *GroupIndex) Records(r *Reader, key string, fn func(Record) error) error {
	if r.Size() != ix.source {
		return fmt.Errorf("%w: index built from %d bytes, file has %d", ErrStaleIndex, ix.source, r.Size())
	}

	g := ix.Find(key)
	if g.Count == 0 {
		return nil
	}
	if _, err := r.Seek(int64(g.Begin), io.SeekStart); err != nil {
		return err
	}

	for range g.Count {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: group %q ends past end of file", ErrStaleIndex, key)
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// entries returns the catalogue ordered by position in the file.
func (ix *GroupIndex) entries() []entry {
	out := make([]entry, 0, len(ix.catalogue))
	for k, g := range ix.catalogue {
		out = append(out, entry{Key: k, Begin: g.Begin, End: g.End, Count: g.Count})
	}
	slices.SortFunc(out, func(a, b entry) int {
		return cmp.Compare(a.Begin, b.Begin)
	})
	return out
}
