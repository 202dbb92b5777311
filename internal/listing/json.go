package listing

import (
	"context"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/phuslu/log"
	"github.com/tidwall/gjson"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

const defaultPageSize = 10

// JSONPaginator pages through a JSON list endpoint.
// It stops after a page with no records or with fewer records than the page size.
type JSONPaginator struct {
	session *session.Session
	baseURL string
	cfg     model.ListConfig
	now     func() time.Time
	once    once
}

// NewJSONPaginator creates a paginator for the endpoint described by cfg
func NewJSONPaginator(s *session.Session, baseURL string, cfg model.ListConfig) *JSONPaginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.FirstPage <= 0 {
		cfg.FirstPage = 1
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "pageNo"
	}
	if cfg.PageSizeParam == "" {
		cfg.PageSizeParam = "pageSize"
	}
	if cfg.IDField == "" {
		cfg.IDField = "id"
	}

	return &JSONPaginator{
		session: s,
		baseURL: baseURL,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (p *JSONPaginator) Items(ctx context.Context) iter.Seq2[model.ListItem, error] {
	return func(yield func(model.ListItem, error) bool) {
		if !p.once.claim() {
			yield(model.ListItem{}, ErrConsumed)
			return
		}

		for page := p.cfg.FirstPage; ; page++ {
			records, err := p.fetchPage(ctx, page)
			if err != nil {
				yield(model.ListItem{}, err)
				return
			}

			log.Info().Int("page", page).Int("records", len(records)).Msg("list page fetched")

			for _, record := range records {
				if !yield(p.item(record), nil) {
					return
				}
			}

			if len(records) == 0 || len(records) < p.cfg.PageSize {
				return
			}
		}
	}
}

func (p *JSONPaginator) fetchPage(ctx context.Context, page int) ([]gjson.Result, error) {
	query := map[string]string{
		p.cfg.PageParam:     strconv.Itoa(page),
		p.cfg.PageSizeParam: strconv.Itoa(p.cfg.PageSize),
	}
	if p.cfg.SortParam != "" && p.cfg.SortColumn != "" {
		query[p.cfg.SortParam] = p.cfg.SortColumn
	}
	if p.cfg.OrderParam != "" && p.cfg.Order != "" {
		query[p.cfg.OrderParam] = p.cfg.Order
	}
	if p.cfg.TimestampParam != "" {
		query[p.cfg.TimestampParam] = strconv.FormatInt(p.now().UnixMilli(), 10)
	}
	for k, v := range p.cfg.ExtraParams {
		query[k] = v
	}

	resp, err := p.session.Fetch(ctx, session.Request{
		Method: http.MethodGet,
		URL:    expand(p.cfg.URL, p.baseURL, nil),
		Query:  query,
	})
	if err != nil {
		return nil, &EnumerationError{Page: page, Reason: "list request failed", Err: err}
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, &EnumerationError{Page: page, Reason: "response is not JSON"}
	}
	body := gjson.ParseBytes(resp.Body)

	if p.cfg.SuccessPath != "" {
		flag := body.Get(p.cfg.SuccessPath)
		want := p.cfg.SuccessEquals
		if want == "" {
			want = "true"
		}
		if !flag.Exists() || flag.String() != want {
			reason := "success flag not set"
			if p.cfg.MessagePath != "" {
				if msg := body.Get(p.cfg.MessagePath).String(); msg != "" {
					reason = msg
				}
			}
			return nil, &EnumerationError{Page: page, Reason: reason}
		}
	}

	records := body
	if p.cfg.RecordsPath != "" {
		records = body.Get(p.cfg.RecordsPath)
	}
	if !records.IsArray() {
		return nil, &EnumerationError{Page: page, Reason: "records array missing"}
	}

	return records.Array(), nil
}

// item converts one record, keeping the record's own key order
func (p *JSONPaginator) item(record gjson.Result) model.ListItem {
	var fields model.Fields
	record.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, model.Field{Label: key.String(), Value: fieldValue(value)})
		return true
	})

	item := model.ListItem{
		ID:     fieldValue(record.Get(p.cfg.IDField)),
		Fields: fields,
	}

	switch {
	case p.cfg.DetailURLField != "":
		if ref := record.Get(p.cfg.DetailURLField).String(); ref != "" {
			item.DetailURLs = []string{resolveURL(p.baseURL+"/", ref)}
		}
	case p.cfg.DetailURLTemplate != "" && item.ID != "":
		item.DetailURLs = []string{expand(p.cfg.DetailURLTemplate, p.baseURL, map[string]string{"id": item.ID})}
	}

	return item
}

func fieldValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.JSON:
		return v.Raw
	default:
		return v.String()
	}
}
