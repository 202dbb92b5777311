package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// isElement reports whether n is an element of the given type
func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// nodeText concatenates the text under n, trimmed
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

// findAll returns the nodes under n matching predicate, in document order
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// tableRows reads every row under a table, dropping rows whose cells are all empty.
// Rows of nested tables are read as rows of the outer table.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	for _, tr := range findAll(table, func(n *html.Node) bool { return isElement(n, atom.Tr) }) {
		var cells []string
		nonEmpty := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if !isElement(c, atom.Td) && !isElement(c, atom.Th) {
				continue
			}
			text := nodeText(c)
			if text != "" {
				nonEmpty = true
			}
			cells = append(cells, text)
		}
		if nonEmpty {
			rows = append(rows, cells)
		}
	}
	return rows
}

// inScript reports whether a text node sits inside script or style content
func inScript(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p, atom.Script) || isElement(p, atom.Style) {
			return true
		}
	}
	return false
}
