// Package parser turns raw document bytes into a title and plain text.
package parser

import "errors"

// ErrUnsupported is returned when no parser handles a file's extension.
var ErrUnsupported = errors.New("unsupported document type")

// Parser extracts a document's title and readable text.
type Parser interface {
	Parse(input FileInput) (*Document, error)

	// Extensions returns the lower-case file extensions (with dot) this parser handles.
	Extensions() []string
}

// FileInput is a raw document to be parsed.
type FileInput struct {
	Path    string
	Content []byte
}

// Document is the parser output.
type Document struct {
	Title string
	Text  string
}
