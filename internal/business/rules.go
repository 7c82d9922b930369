// Package business picks side-project expenses out of a card statement by
// description pattern and totals them per service.
package business

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"cardspend/internal/core"
)

// Rule maps descriptions to a service of the project.
type Rule struct {
	Service  string   `json:"service"`
	Category string   `json:"category"`
	Patterns []string `json:"patterns"`
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Service) == "" {
		return core.ErrEmptyServiceName
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("%s: %w", r.Service, core.ErrEmptyPattern)
	}
	for _, p := range r.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s: %w", r.Service, core.ErrEmptyPattern)
		}
	}
	return nil
}

func (r Rule) Matches(description string) bool {
	return core.MatchesAnyPattern(description, r.Patterns)
}

// Rules is ordered; the first matching rule classifies a transaction.
type Rules []Rule

func (rs Rules) Validate() error {
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(r.Service))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateService, r.Service)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Classify returns the first rule matching description.
func (rs Rules) Classify(description string) (Rule, bool) {
	for _, r := range rs {
		if r.Matches(description) {
			return r, true
		}
	}
	return Rule{}, false
}

// Source loads the rules.
type Source interface {
	Load(ctx context.Context) (Rules, error)
}

// Static serves fixed rules.
type Static Rules

func (s Static) Load(context.Context) (Rules, error) {
	return Rules(s), nil
}

// FileRules loads rules from a JSON array:
//
//	[{"service": "Hosting Provider", "category": "Infrastructure",
//	  "patterns": ["EXAMPLE HOSTING"]}]
type FileRules struct {
	Path string
}

func NewFileRules(path string) *FileRules {
	return &FileRules{Path: path}
}

func (f *FileRules) Load(ctx context.Context) (Rules, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read business rules %s: %w", f.Path, err)
	}
	rules, err := DecodeRules(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("business rules %s: %w", f.Path, err)
	}
	return rules, nil
}

// DecodeRules reads and validates JSON rules. Blank categories become
// Uncategorized.
func DecodeRules(r io.Reader) (Rules, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var rules Rules
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i := range rules {
		rules[i].Service = strings.TrimSpace(rules[i].Service)
		rules[i].Category = core.NormalizeCategory(rules[i].Category)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}
