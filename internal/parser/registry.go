package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser // extension -> parser
}

func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds p under each of its extensions, replacing earlier registrations.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// ForFile returns the parser for a given file path, or nil if none matches.
func (r *Registry) ForFile(path string) Parser {
	ext := strings.ToLower(filepath.Ext(path))
	return r.parsers[ext]
}

// Supports reports whether some parser handles path.
func (r *Registry) Supports(path string) bool {
	return r.ForFile(path) != nil
}

// ParseFile detects the parser and parses the file.
func (r *Registry) ParseFile(input FileInput) (*Document, error) {
	p := r.ForFile(input.Path)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", input.Path, ErrUnsupported)
	}
	return p.Parse(input)
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
