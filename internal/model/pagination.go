package model

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit: non-positive values fall back to the
// defaults and limit is capped at MaxLimit.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Page is one page of results plus its pagination block.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func NewPage[T any](data []T, total int64, req PageRequest) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return Page[T]{
		Data: data,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: pages,
		},
	}
}
