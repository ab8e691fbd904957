package models

// PageMeta describes the position of a page within the full result set.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
	PageSize    int `json:"items_per_page"`
}

// Page is one page of search results.
type Page struct {
	Data []Article `json:"data"`
	Meta PageMeta  `json:"meta"`
}
