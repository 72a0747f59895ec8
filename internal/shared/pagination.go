package shared

import "math"

const (
	DefaultPageSize = 20
	MinPageSize     = 10
	MaxPageSize     = 100
)

// Page is a normalised page request.
type Page struct {
	Page     int
	PageSize int
}

// NewPage clamps page and size to the accepted range.
func NewPage(page, pageSize int) Page {
	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize < MinPageSize:
		pageSize = MinPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Page{Page: page, PageSize: pageSize}
}

// Offset returns the SQL offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(p Page, total int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(p.PageSize)))
	return Pagination{Page: p.Page, PageSize: p.PageSize, Total: total, TotalPages: totalPages}
}

// ListResult wraps a page of items.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Pagination
}
