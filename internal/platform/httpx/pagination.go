package httpx

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

// Pagination carries listing metadata alongside a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ParsePageParams reads page and perPage query parameters, applying defaults
// for absent values and rejecting non-positive or non-numeric input.
func ParsePageParams(r *http.Request, defaultPerPage int) (page, perPage int, err error) {
	page, err = positiveQueryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	perPage, err = positiveQueryInt(r, "perPage", defaultPerPage)
	if err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

func positiveQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}
