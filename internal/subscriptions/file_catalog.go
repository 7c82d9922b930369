package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileCatalog loads a catalog from a JSON array of entries:
//
//	[{"name": "Netflix", "patterns": ["NETFLIX"], "expectedAmount": 15.49,
//	  "cycle": "monthly", "tolerance": 2, "category": "Streaming"}]
type FileCatalog struct {
	Path string
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{Path: path}
}

func (f *FileCatalog) Load(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", f.Path, err)
	}
	cat, err := DecodeCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", f.Path, err)
	}
	return cat, nil
}

// DecodeCatalog reads and validates a JSON catalog. Cycle names are
// normalised.
func DecodeCatalog(r io.Reader) (Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i := range cat {
		cycle, err := ParseCycle(string(cat[i].Cycle))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", cat[i].Name, err)
		}
		cat[i].Cycle = cycle
		cat[i].Name = strings.TrimSpace(cat[i].Name)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// EncodeCatalog writes cat as indented JSON.
func EncodeCatalog(w io.Writer, cat Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cat)
}
