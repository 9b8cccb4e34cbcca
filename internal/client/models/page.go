package models

// Page is the pagination envelope used by list endpoints.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// HasNext reports whether a page after CurrentPage exists.
func (p Page[T]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// HasPrev reports whether a page before CurrentPage exists.
func (p Page[T]) HasPrev() bool {
	return p.CurrentPage > 1
}
