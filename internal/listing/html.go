package listing

import (
	"context"
	"iter"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

// DefaultDetailPhrases are the anchor texts that lead to a detail page
var DefaultDetailPhrases = []string{"案件在办", "详情", "查看"}

// HTMLLister reads items from the rows of a list table.
// A table qualifies when its header row contains the first three expected column labels.
type HTMLLister struct {
	session *session.Session
	baseURL string
	cfg     model.ListConfig
	once    once
}

// NewHTMLLister creates a lister for the list view described by cfg
func NewHTMLLister(s *session.Session, baseURL string, cfg model.ListConfig) *HTMLLister {
	if len(cfg.DetailPhrases) == 0 {
		cfg.DetailPhrases = DefaultDetailPhrases
	}
	if cfg.IDColumn == "" && len(cfg.ExpectedHeaders) > 0 {
		cfg.IDColumn = cfg.ExpectedHeaders[0]
	}
	if cfg.FirstPage <= 0 {
		cfg.FirstPage = 1
	}

	return &HTMLLister{
		session: s,
		baseURL: baseURL,
		cfg:     cfg,
	}
}

func (l *HTMLLister) Items(ctx context.Context) iter.Seq2[model.ListItem, error] {
	return func(yield func(model.ListItem, error) bool) {
		if !l.once.claim() {
			yield(model.ListItem{}, ErrConsumed)
			return
		}

		listURL, err := l.listURL(ctx)
		if err != nil {
			yield(model.ListItem{}, &EnumerationError{Page: l.cfg.FirstPage, Reason: "list view not found", Err: err})
			return
		}

		var previous []string
		for page := l.cfg.FirstPage; ; page++ {
			req := session.Request{Method: http.MethodGet, URL: listURL}
			if l.cfg.PageParam != "" {
				req.Query = map[string]string{l.cfg.PageParam: strconv.Itoa(page)}
			}

			resp, err := l.session.Fetch(ctx, req)
			if err != nil {
				yield(model.ListItem{}, &EnumerationError{Page: page, Reason: "list request failed", Err: err})
				return
			}
			doc, err := resp.Document()
			if err != nil {
				yield(model.ListItem{}, &EnumerationError{Page: page, Reason: "list page is not HTML", Err: err})
				return
			}

			items, rows := ParseListTables(doc, l.cfg)
			log.Info().Int("page", page).Int("rows", rows).Int("items", len(items)).Msg("list page parsed")

			ids := make([]string, len(items))
			for i, item := range items {
				ids[i] = item.ID
			}
			if page > l.cfg.FirstPage && len(ids) > 0 && slices.Equal(ids, previous) {
				// portal ignored the page parameter
				return
			}
			previous = ids

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if l.cfg.PageParam == "" || rows == 0 || (l.cfg.PageSize > 0 && rows < l.cfg.PageSize) {
				return
			}
		}
	}
}

// listURL finds the list view through a home-page link when configured, else uses the configured URL
func (l *HTMLLister) listURL(ctx context.Context) (string, error) {
	fallback := expand(l.cfg.URL, l.baseURL, nil)
	if l.cfg.DiscoverLinkText == "" {
		return fallback, nil
	}

	doc, _, err := l.session.Document(ctx, l.baseURL)
	if err != nil {
		if fallback != "" {
			log.Warn().Err(err).Str("url", fallback).Msg("home page unavailable, using configured list url")
			return fallback, nil
		}
		return "", err
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(strings.TrimSpace(a.Text()), l.cfg.DiscoverLinkText) {
			href, _ := a.Attr("href")
			found = resolveURL(docURL(doc, l.baseURL), href)
			return false
		}
		return true
	})

	if found != "" {
		log.Info().Str("url", found).Msg("list view discovered")
		return found, nil
	}
	return fallback, nil
}

// ParseListTables extracts items from every qualifying table of doc.
// It also returns the number of qualifying rows, counted before empty identifiers are dropped.
func ParseListTables(doc *goquery.Document, cfg model.ListConfig) ([]model.ListItem, int) {
	phrases := cfg.DetailPhrases
	if len(phrases) == 0 {
		phrases = DefaultDetailPhrases
	}
	base := docURL(doc, "")

	var items []model.ListItem
	rowCount := 0

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		// Own rows only; a layout table must not count the rows of tables nested in it
		rows := table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr").
			AddSelection(table.ChildrenFiltered("tr"))
		if rows.Length() < 2 {
			return
		}

		var headers []string
		rows.First().ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})
		if !headerMatches(headers, cfg.ExpectedHeaders) {
			return
		}

		rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.ChildrenFiltered("td, th")
			if cells.Length() < len(headers) {
				return
			}
			rowCount++

			var item model.ListItem
			cells.Each(func(i int, cell *goquery.Selection) {
				if i < len(headers) {
					item.Fields.Set(headers[i], strings.TrimSpace(cell.Text()))
				}
			})

			cells.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				text := strings.TrimSpace(a.Text())
				for _, phrase := range phrases {
					if strings.Contains(text, phrase) {
						href, _ := a.Attr("href")
						item.DetailURLs = append(item.DetailURLs, resolveURL(base, href))
						return
					}
				}
			})

			id, _ := item.Fields.Get(cfg.IDColumn)
			item.ID = strings.TrimSpace(id)
			if item.ID == "" {
				return
			}
			items = append(items, item)
		})
	})

	return items, rowCount
}

// headerMatches requires every one of the first three expected labels in the header text
func headerMatches(headers, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	joined := strings.Join(headers, "")
	for _, label := range expected[:min(3, len(expected))] {
		if !strings.Contains(joined, label) {
			return false
		}
	}
	return true
}

func docURL(doc *goquery.Document, fallback string) string {
	if doc.Url != nil {
		return doc.Url.String()
	}
	return fallback
}
