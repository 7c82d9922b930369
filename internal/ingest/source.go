package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// Table is the raw content of one export: a header row and data rows.
// Line numbers are 1-based, header included.
type Table struct {
	Name   string
	Header []string
	Rows   []Row
}

// Row is one data row with its position in the source.
type Row struct {
	Line   int
	Values []string
}

// Source yields one export table.
type Source interface {
	Name() string
	Read(ctx context.Context) (Table, error)
}

// FileSource reads a CSV export from disk.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Read(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ParseCSV(s.Path, bytes.NewReader(data))
}

// ParseCSV reads a UTF-8 CSV stream into a Table. A leading byte-order
// mark is dropped and short rows are allowed.
func ParseCSV(name string, r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{Name: name}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("%s: read header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	t := Table{Name: name, Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Values: record})
	}
	return t, nil
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}

// StaticSource serves an in-memory table, used for sheets already fetched
// and for tests.
type StaticSource struct {
	Table Table
}

func (s StaticSource) Name() string { return s.Table.Name }

func (s StaticSource) Read(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	return s.Table, nil
}

// DiscoverFiles returns a FileSource per file in dir matching pattern,
// in lexical order.
func DiscoverFiles(dir, pattern string) ([]Source, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	slices.Sort(matches)

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		sources = append(sources, NewFileSource(m))
	}
	return sources, nil
}
