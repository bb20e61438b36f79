package parser

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	mdparser "github.com/gomarkdown/markdown/parser"
)

// titleFromMarkdown returns the text of the first top-level heading in
// markdown content, or "" when the document has none.
func titleFromMarkdown(content string) string {
	p := mdparser.New()
	doc := p.Parse([]byte(content))

	var title string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		heading, ok := node.(*ast.Heading)
		if !ok || !entering || heading.Level != 1 {
			return ast.GoToNext
		}
		title = strings.TrimSpace(nodeText(heading))
		return ast.Terminate
	})

	return title
}

// nodeText concatenates the literal text under a node.
func nodeText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if t, ok := n.(*ast.Text); ok && entering {
			sb.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}
