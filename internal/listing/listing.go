// Package listing enumerates the items of a portal list view.
package listing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/ppiankov/casecrawl/internal/model"
)

// ErrConsumed is yielded when an item sequence is ranged a second time
var ErrConsumed = errors.New("listing: item sequence already consumed")

// Lister produces the items of a list view. Its sequence is lazy and may be ranged once.
type Lister interface {
	Items(ctx context.Context) iter.Seq2[model.ListItem, error]
}

// EnumerationError means a list page could not be read. Enumeration stops at that page.
type EnumerationError struct {
	Page   int
	Reason string
	Err    error
}

func (e *EnumerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enumerate page %d: %s: %v", e.Page, e.Reason, e.Err)
	}
	return fmt.Sprintf("enumerate page %d: %s", e.Page, e.Reason)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// Enumerate collects every item of l. On error no items are returned.
// Each item's Occurrence counts earlier items with the same identifier.
func Enumerate(ctx context.Context, l Lister) ([]model.ListItem, error) {
	var items []model.ListItem
	seen := make(map[string]int)

	for item, err := range l.Items(ctx) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[item.ID]++
		item.Occurrence = seen[item.ID]
		items = append(items, item)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// once guards a sequence against being ranged twice
type once struct {
	used bool
}

func (o *once) claim() bool {
	if o.used {
		return false
	}
	o.used = true
	return true
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func expand(template, base string, values map[string]string) string {
	pairs := []string{"{base}", strings.TrimRight(base, "/")}
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
