// ABOUTME: Markdown to plain text extraction using goldmark
// ABOUTME: Button annotation offsets are measured against this rendering

package plaintext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extract renders markdown to the plain text a reader sees: formatting
// markers are dropped, link text is kept, code spans and fenced blocks keep
// their literal content. Block boundaries become single newlines.
//
// Annotation offsets are defined over this rendering, so it must be stable:
// the same content always extracts to the same text.
func Extract(markdown string) string {
	source := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var sb strings.Builder
	writeNode(&sb, doc, source)
	return strings.TrimRight(sb.String(), "\n")
}

func writeNode(sb *strings.Builder, n ast.Node, source []byte) {
	switch node := n.(type) {
	case *ast.Text:
		sb.Write(node.Segment.Value(source))
		if node.HardLineBreak() || node.SoftLineBreak() {
			sb.WriteByte('\n')
		}
		return
	case *ast.CodeSpan:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
			}
		}
		return
	case *ast.CodeBlock:
		writeLines(sb, node, source)
		return
	case *ast.FencedCodeBlock:
		writeLines(sb, node, source)
		return
	case *ast.AutoLink:
		sb.Write(node.URL(source))
		return
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeNode(sb, c, source)
	}

	// One newline per block boundary; nested blocks (list > item > text)
	// collapse into a single separator so offsets stay predictable
	if _, isDoc := n.(*ast.Document); !isDoc && n.Type() == ast.TypeBlock {
		if s := sb.String(); !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}
}

func writeLines(sb *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
}
