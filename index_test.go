package dsv

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupedFile has a header and three runs keyed by field 1: a at [9, 21),
// b at [21, 27) and c at [27, 44). The last line has no terminator.
const groupedFile = "id\tgrp\tv\n" +
	"1\ta\tx\n" +
	"2\ta\tx\n" +
	"3\tb\tx\n" +
	"4\tc\tx\n" +
	"5\tc\tx\n" +
	"6\tc\tx"

func buildIndex(t *testing.T, content string, keyField int, config Config) (*GroupIndex, *Reader, error) {
	t.Helper()
	r := openReader(t, writeFixture(t, content), config)
	ix, err := CreateIndex(r, keyField, IndexConfig{})
	return ix, r, err
}

func TestCreateIndexGroups(t *testing.T) {
	for block := uint32(1); block < 50; block++ {
		ix, r, err := buildIndex(t, groupedFile, 1, Config{BlockSize: block})
		require.NoError(t, err, "block %d", block)

		assert.Equal(t, 3, ix.Len())
		assert.Equal(t, Group{Begin: 9, End: 21, Count: 2}, ix.Find("a"), "block %d", block)
		assert.Equal(t, Group{Begin: 21, End: 27, Count: 1}, ix.Find("b"), "block %d", block)
		assert.Equal(t, Group{Begin: 27, End: 44, Count: 3}, ix.Find("c"), "block %d", block)
		assert.True(t, r.EOF(), "reader left at end of file")
	}
}

// TestCreateIndexSmallFile indexes the signature-prefixed CRLF fixture, in
// which every group holds one record.
func TestCreateIndexSmallFile(t *testing.T) {
	ix, _, err := buildIndex(t, smallFile(), 1, Config{BlockSize: 17})
	require.NoError(t, err)

	want := map[string]Group{
		"abc": {43, 76, 1},
		"bce": {76, 109, 1},
		"cef": {109, 142, 1},
		"efg": {142, 175, 1},
		"fgh": {175, 208, 1},
		"ghi": {208, 239, 1},
	}
	assert.Equal(t, len(want), ix.Len())
	for k, g := range want {
		assert.Equal(t, g, ix.Find(k), k)
	}
	assert.Equal(t, []string{"abc", "bce", "cef", "efg", "fgh", "ghi"}, ix.Keys())
	assert.Equal(t, 1, ix.KeyField())
	assert.Equal(t, int64(239), ix.SourceSize())
}

func TestCreateIndexRewinds(t *testing.T) {
	r := openReader(t, writeFixture(t, groupedFile), Config{})
	r.SkipRecord()
	r.SkipRecord()

	ix, err := CreateIndex(r, 1, IndexConfig{})
	require.NoError(t, err)
	assert.Equal(t, Group{Begin: 9, End: 21, Count: 2}, ix.Find("a"))
}

func TestCreateIndexNoData(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"signature only", bom},
		{"header only", "id\tgrp\n"},
		{"header without terminator", "id\tgrp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, _, err := buildIndex(t, tt.content, 1, Config{})
			require.NoError(t, err)
			assert.Equal(t, 0, ix.Len())
			assert.Empty(t, ix.Keys())
		})
	}
}

func TestFindMissing(t *testing.T) {
	ix, _, err := buildIndex(t, groupedFile, 1, Config{})
	require.NoError(t, err)

	assert.Equal(t, Group{}, ix.Find("zzz"))
	assert.Equal(t, Group{}, ix.Find(""))
}

// TestCreateIndexEmptyKey verifies an empty key field is a key like any
// other.
func TestCreateIndexEmptyKey(t *testing.T) {
	ix, _, err := buildIndex(t, "h\tk\n1\t\n2\t\n3\tz\n", 1, Config{})
	require.NoError(t, err)

	assert.Equal(t, Group{Begin: 4, End: 10, Count: 2}, ix.Find(""))
	assert.Equal(t, uint64(1), ix.Find("z").Count)
}

func TestCreateIndexErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		keyField int
		want     error
	}{
		{"key reappears", "h\na\nb\na\n", 0, ErrDuplicateKey},
		{"key reappears at end of file", "h\na\nb\nb\na", 0, ErrDuplicateKey},
		{"record without key field", "h\tx\na\tb\nc\n", 1, ErrMalformedRecord},
		{"negative key field", groupedFile, -1, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, _, err := buildIndex(t, tt.content, tt.keyField, Config{})
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, ix)
		})
	}
}

func TestCreateIndexMalformedOffset(t *testing.T) {
	_, _, err := buildIndex(t, "h\tx\na\tb\nc\n", 1, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 8")
}

func TestCreateIndexInvalidAlgorithm(t *testing.T) {
	r := openReader(t, writeFixture(t, groupedFile), Config{})
	_, err := CreateIndex(r, 1, IndexConfig{HashAlgorithm: 42})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCreateIndexReadError(t *testing.T) {
	s := &memStream{data: []byte(groupedFile), size: 100}
	r, err := NewReader(Config{BlockSize: 8, Opener: memOpener(s)})
	require.NoError(t, err)
	require.NoError(t, r.Open("mem"))

	_, err = CreateIndex(r, 1, IndexConfig{})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestRecords(t *testing.T) {
	ix, r, err := buildIndex(t, groupedFile, 1, Config{BlockSize: 4})
	require.NoError(t, err)

	var got [][]string
	err = ix.Records(r, "c", func(rec Record) error {
		got = append(got, rec.Strings())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"4", "c", "x"}, {"5", "c", "x"}, {"6", "c", "x"}}, got)

	got = nil
	err = ix.Records(r, "a", func(rec Record) error {
		got = append(got, rec.Strings())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "a", "x"}, {"2", "a", "x"}}, got)
}

func TestRecordsMissingKey(t *testing.T) {
	ix, r, err := buildIndex(t, groupedFile, 1, Config{})
	require.NoError(t, err)

	calls := 0
	err = ix.Records(r, "nope", func(Record) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Zero(t, calls)
}

func TestRecordsCallbackError(t *testing.T) {
	ix, r, err := buildIndex(t, groupedFile, 1, Config{})
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = ix.Records(r, "c", func(Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRecordsStaleIndex(t *testing.T) {
	ix, _, err := buildIndex(t, groupedFile, 1, Config{})
	require.NoError(t, err)

	other := openReader(t, writeFixture(t, groupedFile+"\n7\tc\tx\n"), Config{})
	err = ix.Records(other, "c", func(Record) error { return nil })
	assert.ErrorIs(t, err, ErrStaleIndex)
}

// TestIndexLogging verifies the build is reported through the configured
// go-kit logger.
func TestIndexLogging(t *testing.T) {
	var buf bytes.Buffer
	r := openReader(t, writeFixture(t, groupedFile), Config{})

	_, err := CreateIndex(r, 1, IndexConfig{Logger: log.NewLogfmtLogger(&buf)})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="index built"`)
	assert.Contains(t, buf.String(), "groups=3")

	buf.Reset()
	_, err = CreateIndex(r, 5, IndexConfig{Logger: log.NewLogfmtLogger(&buf)})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=error")
}

func TestIndexMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := openReader(t, writeFixture(t, groupedFile), Config{})

	_, err := CreateIndex(r, 1, IndexConfig{Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexGroups))
}

// TestIndexLargeFile cross-checks CreateIndex against groups computed
// while generating the file.
func TestIndexLargeFile(t *testing.T) {
	var content bytes.Buffer
	content.WriteString("seq\tgroup\tpayload\r\n")
	want := make(map[string]Group)
	for g := range 300 {
		key := "group" + string(rune('A'+g%26)) + string(rune('a'+g/26))
		begin := uint64(content.Len())
		n := g%7 + 1
		for i := range n {
			content.WriteString("0\t" + key + "\t" + string(bytes.Repeat([]byte{'p'}, (g*i)%53)) + "\r\n")
		}
		want[key] = Group{Begin: begin, End: uint64(content.Len()), Count: uint64(n)}
	}

	path := filepath.Join(t.TempDir(), "large.tsv")
	require.NoError(t, os.WriteFile(path, content.Bytes(), 0644))

	for _, block := range []uint32{3, 100, 4096} {
		r := openReader(t, path, Config{BlockSize: block})
		ix, err := CreateIndex(r, 1, IndexConfig{})
		require.NoError(t, err)
		require.Equal(t, len(want), ix.Len())
		for k, g := range want {
			require.Equal(t, g, ix.Find(k), "block %d key %s", block, k)
		}

		_, err = r.ReadRecord()
		assert.ErrorIs(t, err, io.EOF)
	}
}
