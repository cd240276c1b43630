// Command dsvgroup indexes a delimited file that is grouped by one of its
// fields and prints the byte range and record count of each group.
//
//	dsvgroup -file data.tsv -field 2
//	dsvgroup -file data.csv -delim , -field 0 -save data.idx
//	dsvgroup -file data.csv -load data.idx -find batch0 -records
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpl-au/dsv"
)

func main() {
	var (
		file      string
		field     int
		delim     string
		block     uint
		collapse  bool
		maxFields int
		find      string
		records   bool
		save      string
		load      string
		stats     bool
		verbose   bool
	)

	flag.StringVar(&file, "file", "", "Delimited file to index")
	flag.IntVar(&field, "field", 0, "Zero-based index of the key field")
	flag.StringVar(&delim, "delim", "\t", "Single-byte field delimiter (\\t for tab)")
	flag.UintVar(&block, "block", dsv.DefaultBlockSize, "Block read size in bytes")
	flag.BoolVar(&collapse, "collapse", false, "Treat runs of delimiters as one")
	flag.IntVar(&maxFields, "max-fields", 0, "Maximum fields per record (0 = unbounded)")
	flag.StringVar(&find, "find", "", "Print only the group for this key")
	flag.BoolVar(&records, "records", false, "With -find, print the group's records")
	flag.StringVar(&save, "save", "", "Write the index snapshot to this path")
	flag.StringVar(&load, "load", "", "Read the index from this snapshot instead of scanning")
	flag.BoolVar(&stats, "stats", false, "Log reader metrics on exit")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	if file == "" {
		fmt.Fprintf(os.Stderr, "error: -file must be specified\n")
		flag.Usage()
		os.Exit(1)
	}
	d, err := parseDelimiter(delim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	blockSize, err := parseBlockSize(block)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics := dsv.NewMetrics(reg)

	r, err := dsv.NewReader(dsv.Config{
		BlockSize:          blockSize,
		Delimiter:          d,
		CollapseDelimiters: collapse,
		MaxFields:          maxFields,
		Logger:             logger,
		Metrics:            metrics,
	})
	if err != nil {
		level.Error(logger).Log("msg", "invalid reader configuration", "err", err)
		os.Exit(1)
	}
	if err := r.Open(file); err != nil {
		level.Error(logger).Log("msg", "failed to open file", "err", err)
		os.Exit(1)
	}

	opts := options{field: field, delim: d, find: find, records: records, save: save, load: load}
	err = run(os.Stdout, r, opts, logger, metrics)
	if cerr := r.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if stats {
		logStats(reg, logger)
	}
	if err != nil {
		level.Error(logger).Log("msg", "failed", "err", err)
		os.Exit(1)
	}
}

// options are the flags run acts on.
type options struct {
	field   int
	delim   byte
	find    string
	records bool
	save    string
	load    string
}

func run(out io.Writer, r *dsv.Reader, opts options, logger log.Logger, metrics *dsv.Metrics) error {
	config := dsv.IndexConfig{Logger: logger, Metrics: metrics}

	var (
		ix  *dsv.GroupIndex
		err error
	)
	if opts.load != "" {
		ix, err = dsv.LoadIndex(opts.load, config)
		if err != nil {
			return err
		}
		if ix.SourceSize() != r.Size() {
			level.Warn(logger).Log("msg", "snapshot was built from a different file size", "snapshot", ix.SourceSize(), "file", r.Size())
		}
	} else {
		ix, err = dsv.CreateIndex(r, opts.field, config)
		if err != nil {
			return err
		}
	}

	if opts.save != "" {
		if err := ix.Save(opts.save); err != nil {
			return err
		}
	}

	if opts.find == "" {
		for _, k := range ix.Keys() {
			printGroup(out, k, ix.Find(k))
		}
		return nil
	}

	g := ix.Find(opts.find)
	if g.Count == 0 {
		return fmt.Errorf("key %q not found", opts.find)
	}
	printGroup(out, opts.find, g)
	if !opts.records {
		return nil
	}
	sep := string(opts.delim)
	return ix.Records(r, opts.find, func(rec dsv.Record) error {
		_, err := fmt.Fprintln(out, strings.Join(rec.Strings(), sep))
		return err
	})
}

func printGroup(w io.Writer, key string, g dsv.Group) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", key, g.Begin, g.End, g.Count)
}

func parseDelimiter(s string) (byte, error) {
	switch s {
	case `\t`, "\t":
		return '\t', nil
	}
	if len(s) != 1 {
		return 0, errors.New("delimiter must be a single byte")
	}
	return s[0], nil
}

func parseBlockSize(n uint) (uint32, error) {
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("block size %d exceeds %d", n, uint32(math.MaxUint32))
	}
	return uint32(n), nil
}

func logStats(reg *prometheus.Registry, logger log.Logger) {
	families, err := reg.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to gather metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				kv = append(kv, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				kv = append(kv, "value", m.GetGauge().GetValue())
			}
			level.Info(logger).Log(kv...)
		}
	}
}
