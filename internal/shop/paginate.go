package shop

import "math"

// MaxPageSize caps the page size a caller may ask for.
const MaxPageSize = 100

type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	PageSize    int `json:"page_size"`
	Total       int `json:"total"`
	Offset      int `json:"-"`
}

// Paginate computes page bounds for total items. Pages below 1 clamp to 1;
// pages past the end are allowed and simply select nothing. pageSize is
// clamped to [1, MaxPageSize].
func Paginate(total, page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	if total < 0 {
		total = 0
	}
	offset := math.MaxInt
	if page-1 <= math.MaxInt/pageSize {
		offset = (page - 1) * pageSize
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  (total + pageSize - 1) / pageSize,
		PageSize:    pageSize,
		Total:       total,
		Offset:      offset,
	}
}
