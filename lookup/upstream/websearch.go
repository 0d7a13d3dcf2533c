package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"lookup-gateway/lookup/domain"

	"github.com/tidwall/gjson"
)

const (
	DefaultWebSearchPath = "/api/web-search"

	maxWebBody = 2 << 20
)

// WebSearchClient faz a busca web auxiliar.
type WebSearchClient struct {
	base
	path string
}

func NewWebSearchClient(ep Endpoint, path string, opts ...Option) *WebSearchClient {
	if path == "" {
		path = DefaultWebSearchPath
	}
	return &WebSearchClient{base: newBase("web-search", ep, opts), path: path}
}

func (c *WebSearchClient) WebSearch(ctx context.Context, query string) (domain.WebResults, error) {
	if c.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.endpoint.Timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, http.MethodGet, c.path, url.Values{"q": {query}}, nil, "application/json")
	if err != nil {
		return domain.WebResults{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBody))
	if err != nil {
		return domain.WebResults{}, c.transportErr(ctx, err)
	}
	return ParseWebResults(query, data)
}

// ParseWebResults aceita o formato do gateway ({items, answer}) e os formatos
// comuns de provedores ({results: [...]} e {web: {results: [...]}}).
func ParseWebResults(query string, data []byte) (domain.WebResults, error) {
	if !gjson.ValidBytes(data) {
		return domain.WebResults{}, &domain.DecodeError{Line: string(data[:min(len(data), 120)]), Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(data)

	out := domain.WebResults{Query: query, Items: []domain.WebResult{}}
	if q := doc.Get("query"); q.Type == gjson.String && q.String() != "" {
		out.Query = q.String()
	}
	out.Answer = firstString(doc, "answer", "summary")

	var list gjson.Result
	for _, path := range []string{"items", "results", "web.results"} {
		if r := doc.Get(path); r.IsArray() {
			list = r
			break
		}
	}
	list.ForEach(func(_, item gjson.Result) bool {
		u := firstString(item, "url", "link")
		if u == "" {
			return true
		}
		out.Items = append(out.Items, domain.WebResult{
			Title:   firstString(item, "title", "name"),
			URL:     u,
			Snippet: firstString(item, "snippet", "description", "content"),
			Source:  firstString(item, "source", "profile.name"),
		})
		return true
	})
	return out, nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
