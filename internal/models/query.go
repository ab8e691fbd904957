package models

import "time"

// SearchQuery критерии поиска. Пустые поля не ограничивают выборку.
type SearchQuery struct {
	Keyword    string     `json:"keyword"`
	Categories []string   `json:"categories"`
	Sources    []string   `json:"sources"`
	Authors    []string   `json:"authors"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Page       int        `json:"page"`
}

// PreferenceFilter списки разрешённых значений из пользовательских предпочтений.
type PreferenceFilter struct {
	Sources    []string `json:"sources"`
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
}

// FilterOptions различные категории и авторы во всём корпусе.
type FilterOptions struct {
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
}
