package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps list endpoints.
const MaxPerPage = 100

// Pagination is the paging block of list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// NewPagination fills TotalPages from the item count.
func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

// ParsePagination reads page and limit (or pageSize) from the query, clamping the size to MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	size := q.Get("limit")
	if size == "" {
		size = q.Get("pageSize")
	}
	if l, err := strconv.Atoi(size); err == nil && l > 0 {
		perPage = l
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Offset converts a 1-based page into a row offset.
func Offset(page, perPage int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * perPage
}
