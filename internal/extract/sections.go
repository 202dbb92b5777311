// Package extract maps detail documents onto labeled sections of tables.
//
// The mapping is a heuristic: each occurrence of a section label in the text is attributed
// the nearest table that follows it in document order. Pages without stable ids or classes
// leave nothing more exact to anchor on, so a wrong vocabulary falls back to keeping every
// table under a catch-all section rather than dropping data.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/casecrawl/internal/model"
)

// DefaultFallbackLabel names the catch-all section
const DefaultFallbackLabel = "所有表格"

// ExtractionError means a detail document held nothing to extract
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return "extract: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor applies an ordered list of section rules to detail documents
type Extractor struct {
	rules         []Rule
	fallbackLabel string
}

// New creates an extractor. An empty fallback label uses DefaultFallbackLabel.
func New(rules []Rule, fallbackLabel string) *Extractor {
	if fallbackLabel == "" {
		fallbackLabel = DefaultFallbackLabel
	}
	return &Extractor{rules: rules, fallbackLabel: fallbackLabel}
}

// ExtractHTML parses content and extracts its sections
func (e *Extractor) ExtractHTML(content string) (model.Sections, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ExtractionError{Reason: "empty document"}
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, &ExtractionError{Reason: "parse document", Err: err}
	}
	return e.Extract(root)
}

// Extract maps the document under root onto sections.
// Sections without tables are left out; when no rule yields a table every table goes to the catch-all section.
func (e *Extractor) Extract(root *html.Node) (model.Sections, error) {
	// text nodes and tables in document order
	order := findAll(root, func(n *html.Node) bool {
		return (n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" && !inScript(n)) || isElement(n, atom.Table)
	})

	nextTable := make([]int, len(order))
	next := -1
	for i := len(order) - 1; i >= 0; i-- {
		nextTable[i] = next
		if order[i].Type == html.ElementNode {
			next = i
		}
	}

	var tables []*html.Node
	for _, n := range order {
		if n.Type == html.ElementNode {
			tables = append(tables, n)
		}
	}
	if len(tables) == 0 {
		return nil, &ExtractionError{Reason: "no tables in document"}
	}

	rowsOf := make(map[*html.Node][][]string)
	rows := func(table *html.Node) [][]string {
		r, ok := rowsOf[table]
		if !ok {
			r = tableRows(table)
			rowsOf[table] = r
		}
		return r
	}

	var sections model.Sections
	for _, rule := range e.rules {
		section := model.Section{Label: rule.Label}
		used := make(map[*html.Node]bool)

		for i, n := range order {
			if n.Type != html.TextNode || !rule.Matcher.Match(n.Data) {
				continue
			}
			j := nextTable[i]
			if j < 0 {
				continue
			}
			table := order[j]
			if used[table] {
				continue
			}
			used[table] = true

			if r := rows(table); len(r) > 0 {
				section.Tables = append(section.Tables, model.Table{Title: rule.Label, Rows: r})
			}
		}

		if len(section.Tables) > 0 {
			sections = append(sections, section)
		}
	}

	if len(sections) > 0 {
		return sections, nil
	}

	fallback := model.Section{Label: e.fallbackLabel}
	for i, table := range tables {
		if r := rows(table); len(r) > 0 {
			fallback.Tables = append(fallback.Tables, model.Table{Title: fmt.Sprintf("表格%d", i+1), Rows: r})
		}
	}
	if len(fallback.Tables) == 0 {
		return nil, &ExtractionError{Reason: "all tables are empty"}
	}
	return model.Sections{fallback}, nil
}
