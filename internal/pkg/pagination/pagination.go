// Package pagination turns list query strings into repository queries.
//
//	GET /reception-points?status=APPROVED&wastes.abbreviated_name=PET,GLS&sort=-created_at&page=2
//
// Every non-reserved parameter is an equality filter; comma-separated values
// become IN. A dotted parameter adds an inner join on its relation.
package pagination

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"ecos/internal/pkg/apperr"
	"ecos/internal/repository"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Reserved parameters are never treated as filters.
var Reserved = map[string]bool{
	"page":      true,
	"per_page":  true,
	"sort":      true,
	"search":    true,
	"include":   true,
	"radius":    true,
	"latitude":  true,
	"longitude": true,
}

type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func (p Page) Meta(total int64) Meta {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return Meta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}

// Options tune Parse per endpoint.
type Options struct {
	// SearchField receives "search" as a case-insensitive substring filter.
	SearchField string
	// Include lists the eager loads allowed through "include".
	Include []string
	// Always is prepended to the parsed eager loads.
	Always []string
}

// Parse builds a repository query from values. Field names are validated
// later, when the query is compiled against an entity.
func Parse(values url.Values, opts Options) (repository.Query, Page, error) {
	var q repository.Query
	page, err := parsePage(values)
	if err != nil {
		return q, page, err
	}
	q.Limit = page.PerPage
	q.Offset = page.Offset()

	joined := map[string]bool{}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if Reserved[key] {
			continue
		}
		vals := splitValues(values[key])
		if len(vals) == 0 {
			continue
		}
		if rel, _, dotted := strings.Cut(key, "."); dotted && !joined[rel] {
			joined[rel] = true
			q.Joins = append(q.Joins, repository.Join{Relation: rel, Kind: repository.JoinInner})
		}
		args := make([]any, len(vals))
		for i, v := range vals {
			args[i] = v
		}
		q.Filters = append(q.Filters, repository.Eq(key, args...))
	}

	if s := strings.TrimSpace(values.Get("search")); s != "" && opts.SearchField != "" {
		q.Filters = append(q.Filters, repository.Like(opts.SearchField, s))
	}

	for _, field := range splitValues(values["sort"]) {
		desc := strings.HasPrefix(field, "-")
		q.OrderBy = append(q.OrderBy, repository.Order{Field: strings.TrimPrefix(field, "-"), Desc: desc})
	}

	q.Preload = append(q.Preload, opts.Always...)
	for _, inc := range splitValues(values["include"]) {
		if !contains(opts.Include, inc) {
			return q, page, apperr.InvalidFilter("cannot include %q", inc)
		}
		if !contains(q.Preload, inc) {
			q.Preload = append(q.Preload, inc)
		}
	}
	return q, page, nil
}

func parsePage(values url.Values) (Page, error) {
	p := Page{Page: 1, PerPage: DefaultPerPage}
	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, apperr.InvalidFilter("page must be a positive integer")
		}
		p.Page = n
	}
	if raw := values.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPerPage {
			return p, apperr.InvalidFilter("per_page must be between 1 and %d", MaxPerPage)
		}
		p.PerPage = n
	}
	return p, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
