// Index snapshots.
//
// A snapshot lets a large file be indexed once and the catalogue reloaded
// later without another pass. The file is a fixed-size Header followed by
// the zstd-compressed JSON list of groups in file order. The header carries
// the size of the indexed file so callers can tell a snapshot is stale, and
// a checksum of the uncompressed body.
package dsv

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log/level"
	json "github.com/goccy/go-json"
)

// entry is one group as stored in a snapshot body.
type entry struct {
	Key   string `json:"k"`
	Begin uint64 `json:"b"`
	End   uint64 `json:"e"`
	Count uint64 `json:"n"`
}

// Save writes the index to path, replacing any existing snapshot.
func (ix *GroupIndex) Save(path string) error {
	body, err := json.Marshal(ix.entries())
	if err != nil {
		return fmt.Errorf("save: encode: %w", err)
	}

	hdr := Header{
		Version:   SnapshotVersion,
		Algorithm: ix.config.HashAlgorithm,
		KeyField:  ix.keyField,
		Entries:   len(ix.catalogue),
		Source:    ix.source,
		Checksum:  hash(body, ix.config.HashAlgorithm),
		Timestamp: now(),
	}
	head, err := hdr.encode()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer f.Close()

	lock := fileLock{f: f}
	if err := lock.Lock(LockExclusive); err != nil {
		return fmt.Errorf("save: lock: %w", err)
	}
	defer lock.Unlock()

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if _, err := f.WriteAt(head, 0); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if _, err := f.WriteAt(compress(body), HeaderSize); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	level.Debug(ix.config.Logger).Log("msg", "snapshot saved", "path", path, "groups", hdr.Entries, "bytes", len(body))
	return nil
}

// LoadIndex reads a snapshot written by Save. The checksum algorithm is
// taken from the snapshot; config.HashAlgorithm only applies to later Saves.
func LoadIndex(path string, config IndexConfig) (*GroupIndex, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()

	lock := fileLock{f: f}
	if err := lock.Lock(LockShared); err != nil {
		return nil, fmt.Errorf("load: lock: %w", err)
	}
	defer lock.Unlock()

	hdr, err := header(f)
	if err != nil {
		return nil, err
	}

	compressed, err := io.ReadAll(io.NewSectionReader(f, HeaderSize, 1<<62))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	body, err := decompress(compressed)
	if err != nil {
		return nil, err
	}
	if sum := hash(body, hdr.Algorithm); sum != hdr.Checksum {
		return nil, fmt.Errorf("%w: checksum %s, header says %s", ErrCorruptIndex, sum, hdr.Checksum)
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if len(entries) != hdr.Entries {
		return nil, fmt.Errorf("%w: %d groups, header says %d", ErrCorruptIndex, len(entries), hdr.Entries)
	}

	ix := &GroupIndex{
		catalogue: make(map[string]Group, len(entries)),
		keyField:  hdr.KeyField,
		source:    hdr.Source,
		config:    config,
	}
	for _, e := range entries {
		if e.Count == 0 || e.End < e.Begin {
			return nil, fmt.Errorf("%w: group %q has range [%d, %d) and %d records", ErrCorruptIndex, e.Key, e.Begin, e.End, e.Count)
		}
		if err := ix.commit(e.Key, Group{Begin: e.Begin, End: e.End, Count: e.Count}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
		}
	}

	config.Metrics.groups(len(ix.catalogue))
	level.Debug(config.Logger).Log("msg", "snapshot loaded", "path", path, "groups", len(ix.catalogue), "source", hdr.Source)
	return ix, nil
}
