package models

import "time"

// Source тег провайдера, из которого пришла статья.
type Source string

const (
	SourceNewsAPI  Source = "NEWS_ORG"
	SourceGuardian Source = "GUARDIAN_NEWS"
	SourceNYT      Source = "NEW_YORK_TIME_NEWS"
)

// Sources возвращает все известные источники в фиксированном порядке.
func Sources() []Source {
	return []Source{SourceNewsAPI, SourceGuardian, SourceNYT}
}

// Valid сообщает, известен ли источник.
func (s Source) Valid() bool {
	switch s {
	case SourceNewsAPI, SourceGuardian, SourceNYT:
		return true
	}
	return false
}

// DefaultCategory подставляется, если провайдер не прислал категорию.
const DefaultCategory = "General"

// Article нормализованная статья. Title является естественным ключом:
// в хранилище не больше одной записи с данным заголовком.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     *string    `json:"content"`
	Category    string     `json:"category"`
	Source      Source     `json:"source"`
	Author      *string    `json:"author"`
	Description *string    `json:"description"`
	Link        *string    `json:"link"`
	Image       *string    `json:"image"`
	PublishedAt *time.Time `json:"published_at"`
}

// ProviderInfo описывает доступный источник новостей.
type ProviderInfo struct {
	Key    string `json:"key"`
	Source Source `json:"source"`
}
