// Package html extracts the title and visible text of HTML documents.
package html

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/maraichr/docpipe/internal/parser"
)

// DefaultTitle is used when a document has no usable <title>.
const DefaultTitle = "Untitled"

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Noscript: true,
	atom.Template: true,
}

// blocks start and end a line of text. Everything else is inline.
var blocks = map[atom.Atom]bool{
	atom.Title: true, atom.Body: true,
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Caption: true,
	atom.Blockquote: true, atom.Pre: true, atom.Figure: true, atom.Figcaption: true,
	atom.Address: true, atom.Form: true, atom.Fieldset: true, atom.Details: true, atom.Summary: true,
	atom.Br: true, atom.Hr: true,
}

type Parser struct{}

var _ parser.Parser = (*Parser)(nil)

func New() *Parser { return &Parser{} }

func (p *Parser) Extensions() []string { return []string{".html", ".htm"} }

// Parse walks the DOM and returns the title plus the visible text, one line
// per block element. Inline runs inside a block keep their source spacing, so
// "<a>docs</a>." stays "docs.". Title text is also part of the body text.
func (p *Parser) Parse(input parser.FileInput) (*parser.Document, error) {
	root, err := html.Parse(bytes.NewReader(input.Content))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", input.Path, err)
	}

	var title []string
	var text lineBuilder
	var walk func(n *html.Node, inTitle bool)
	walk = func(n *html.Node, inTitle bool) {
		block := false
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Title {
				inTitle = true
			}
			block = blocks[n.DataAtom]
		}
		if block {
			text.flush()
		}
		if n.Type == html.TextNode {
			if inTitle {
				title = append(title, n.Data)
			}
			text.write(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTitle)
		}
		if block {
			text.flush()
		}
	}
	walk(root, false)
	text.flush()

	t := normalizeLine(strings.Join(title, " "))
	if t == "" {
		t = DefaultTitle
	}
	return &parser.Document{
		Title: t,
		Text:  strings.Join(text.lines, "\n"),
	}, nil
}

// lineBuilder accumulates raw text for the current block.
type lineBuilder struct {
	cur   strings.Builder
	lines []string
}

func (b *lineBuilder) write(s string) { b.cur.WriteString(s) }

func (b *lineBuilder) flush() {
	line := normalizeLine(b.cur.String())
	b.cur.Reset()
	if line != "" {
		b.lines = append(b.lines, line)
	}
}

// normalizeLine collapses whitespace runs to one space and drops a space left
// in front of closing punctuation, as in "docs ." from "<a>docs </a>.".
func normalizeLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && i+1 < len(s) && isClosingPunct(s[i+1]) && (i+2 == len(s) || s[i+2] == ' ') {
			continue
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

func isClosingPunct(c byte) bool {
	switch c {
	case '.', ',', ';', ':', '!', '?':
		return true
	}
	return false
}
